package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wxbridge/internal/auth"
	"wxbridge/internal/blob"
	"wxbridge/internal/config"
	"wxbridge/internal/dispatch"
	"wxbridge/internal/ephemeral"
	"wxbridge/internal/forward"
	"wxbridge/internal/login"
	"wxbridge/internal/observability/logging"
	"wxbridge/internal/observability/metrics"
	"wxbridge/internal/pipeline"
	"wxbridge/internal/roster"
	"wxbridge/internal/secret"
	"wxbridge/internal/store"
	"wxbridge/internal/token"
	httpx "wxbridge/internal/transport/http"
	"wxbridge/internal/wx"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "bridge",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("bridge")

	logger.Info("starting service")

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("automigrate", "error", err)
		os.Exit(1)
	}

	cache := ephemeral.NewMemory()
	blobs := blob.NewFS(cfg.MediaPath)

	authority := token.NewAuthority(st, cache, secret.NewArgon2id(), cfg.AccessTokenTTL)
	guard := auth.NewMiddleware(authority, auth.NewVerifier(cfg.SignatureSkew), httpx.Deny)

	// The protocol client is linked in separately; without one, login and
	// sends fail fast and the HTTP surface still serves stored data.
	driver := wx.NewUnavailable()

	pl := pipeline.New(st, blobs)
	coordinator := login.NewCoordinator(
		driver, cache, st,
		login.NewAvatarFetcher(cfg.ProtocolLoginURL),
		cfg.LoginSessionTTL, cfg.LoginPollEvery, cfg.LoginPollMaxWait,
	)
	coordinator.Dispatch = dispatch.New(pl, forward.New(st, &http.Client{Timeout: 10 * time.Second})).Dispatch

	sender := pipeline.NewSender(driver, cache, pl)
	refresher := roster.New(driver, st, blobs)

	h := httpx.NewHandler(authority, coordinator, pl, sender, refresher, st, blobs)
	router := httpx.NewRouter(h, guard, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("bridge listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
