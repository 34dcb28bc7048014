package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	obsmw "wxbridge/internal/observability/middleware"
	"wxbridge/internal/token"
)

type appKey struct{}

func contextWithApp(ctx context.Context, app *domain.App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// AppFrom returns the authenticated app placed in the context by one of the
// middlewares below.
func AppFrom(ctx context.Context) (*domain.App, bool) {
	app, ok := ctx.Value(appKey{}).(*domain.App)
	return app, ok
}

type Middleware struct {
	authority *token.Authority
	verifier  *Verifier
	deny      func(w http.ResponseWriter, err error)
}

// NewMiddleware builds the request guards. deny renders an auth failure;
// the transport layer passes its error writer so the payload shape stays in
// one place.
func NewMiddleware(authority *token.Authority, verifier *Verifier, deny func(http.ResponseWriter, error)) *Middleware {
	return &Middleware{authority: authority, verifier: verifier, deny: deny}
}

// AccessToken authenticates via the access_token query parameter, the
// original bridge contract.
func (m *Middleware) AccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := obsmw.RequestIDFromContext(r.Context())

		app, err := m.authority.Validate(r.Context(), r.URL.Query().Get("access_token"))
		if err != nil {
			slog.Warn("access token rejected", "request_id", reqID, "error", err)
			m.deny(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithApp(r.Context(), app)))
	})
}

// Authenticated picks the scheme from the request: signed parameters when a
// signature is present, the access token otherwise.
func (m *Middleware) Authenticated(next http.Handler) http.Handler {
	signed := m.Signed(next)
	byToken := m.AccessToken(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("signature") != "" {
			signed.ServeHTTP(w, r)
			return
		}
		byToken.ServeHTTP(w, r)
	})
}

// Signed authenticates via {app_id, app_secret, timestamp, signature} query
// parameters.
func (m *Middleware) Signed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := obsmw.RequestIDFromContext(r.Context())
		q := r.URL.Query()

		ts, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
		if err != nil {
			m.deny(w, apperr.ErrStaleTimestamp)
			return
		}
		app, err := m.authority.Authenticate(r.Context(), q.Get("app_id"), q.Get("app_secret"))
		if err != nil {
			slog.Warn("signed request rejected", "request_id", reqID, "error", err)
			m.deny(w, err)
			return
		}
		if err := m.verifier.Verify(app.Token, ts, q.Get("signature")); err != nil {
			slog.Warn("signed request rejected", "request_id", reqID, "app_id", app.AppID, "error", err)
			m.deny(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithApp(r.Context(), app)))
	})
}
