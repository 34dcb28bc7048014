// Package token issues and validates the opaque access tokens gating every
// bridge endpoint. One token is valid per app at any instant: issuing swaps
// the authoritative reverse key atomically and evicts the superseded token.
package token

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/ephemeral"
	"wxbridge/internal/observability/metrics"
	"wxbridge/internal/secret"
	"wxbridge/internal/store"
)

type Authority struct {
	store  *store.Store
	cache  ephemeral.Store
	hasher *secret.Hasher
	ttl    time.Duration
}

func NewAuthority(st *store.Store, cache ephemeral.Store, hasher *secret.Hasher, ttl time.Duration) *Authority {
	return &Authority{store: st, cache: cache, hasher: hasher, ttl: ttl}
}

func reverseKey(appID string) string { return appID + "_access_token" }

// Issue validates the credential pair and mints a fresh token. The reverse
// key swap makes the new token the only authoritative one even when two
// issuances race: each writer deletes exactly the token it displaced.
func (a *Authority) Issue(ctx context.Context, appID, appSecret string) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues(result).Inc()
	}()

	app, err := a.authenticate(ctx, appID, appSecret)
	if err != nil {
		result = "failure"
		return nil, err
	}

	tok := uuid.NewString()
	if err := a.cache.Set(ctx, tok, app.AppID, a.ttl); err != nil {
		result = "failure"
		return nil, err
	}

	prev, had, err := a.cache.GetSet(ctx, reverseKey(app.AppID), tok, a.ttl)
	if err != nil {
		result = "failure"
		return nil, err
	}
	if had && prev != tok {
		// Reclaim the superseded forward entry.
		if err := a.cache.Delete(ctx, prev); err != nil {
			slog.Warn("evict superseded token", "app_id", app.AppID, "error", err)
		}
	}

	slog.Info("issued access token", "app_id", app.AppID, "expire_in", int64(a.ttl.Seconds()))
	return &dto.TokenResponse{
		AccessToken: tok,
		ExpireIn:    int64(a.ttl.Seconds()),
	}, nil
}

// Validate resolves a presented token to its app. The presented token must
// still be the one the reverse key points at; anything else has been
// superseded or expired.
func (a *Authority) Validate(ctx context.Context, tok string) (*domain.App, error) {
	result := "success"
	defer func() {
		metrics.TokenValidationsTotal.WithLabelValues(result).Inc()
	}()

	if tok == "" {
		result = "failure"
		return nil, apperr.ErrInvalidToken
	}
	appID, ok, err := a.cache.Get(ctx, tok)
	if err != nil {
		result = "failure"
		return nil, err
	}
	if !ok {
		result = "failure"
		return nil, apperr.ErrInvalidToken
	}

	app, err := a.store.Apps().GetByAppID(ctx, appID)
	if err != nil {
		result = "failure"
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidToken
		}
		return nil, err
	}

	real, ok, err := a.cache.Get(ctx, reverseKey(appID))
	if err != nil {
		result = "failure"
		return nil, err
	}
	if !ok || real != tok {
		result = "failure"
		return nil, apperr.ErrInvalidToken
	}
	return app, nil
}

// Authenticate verifies the credential pair without issuing a token; the
// signed-request path uses it.
func (a *Authority) Authenticate(ctx context.Context, appID, appSecret string) (*domain.App, error) {
	return a.authenticate(ctx, appID, appSecret)
}

func (a *Authority) authenticate(ctx context.Context, appID, appSecret string) (*domain.App, error) {
	app, err := a.store.Apps().GetByAppID(ctx, appID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, apperr.ErrUnknownIdentity
		}
		return nil, err
	}
	if !a.hasher.Verify(appSecret, app.SecretAlgo, app.SecretHash, app.SecretSalt, app.SecretParams) {
		return nil, apperr.ErrUnknownIdentity
	}
	return app, nil
}
