package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wxbridge/internal/auth"
	"wxbridge/internal/config"
	obsmw "wxbridge/internal/observability/middleware"
)

func NewRouter(h *Handler, guard *auth.Middleware, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	// Login responses can take the full QR poll window.
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(obsmw.WithMetrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Credential exchange is the brute-force surface; rate limit it alone.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, 1*time.Minute))
		r.Get("/access-token", h.accessToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticated)

		r.Get("/login", h.loginStart)
		r.Get("/check-login", h.checkLogin)

		r.Get("/friends", h.friends)
		r.Get("/groups", h.groups)
		r.Get("/groups/{puid}/members", h.groupMembers)
		r.Get("/mps", h.channels)

		r.Get("/messages", h.messages)
		r.Post("/send-message", h.sendMessage)
		r.Get("/update", h.update)
		r.Get("/media/*", h.media)
	})

	return r
}

func allowedOrigins(raw string) []string {
	out := []string{}
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
