// Package forward delivers normalized messages to the webhook each app
// configures. Delivery is best effort: a rejected or failed delivery is
// recorded in the forward log and reported to the caller, never retried
// here.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/observability/metrics"
	"wxbridge/internal/store"
)

const (
	bearerIssuer = "wxbridge"
	bearerTTL    = 5 * time.Minute

	// A receiver acknowledges with a literal "ok" body. Anything else,
	// whatever the status code, counts as a rejection.
	ackBody     = "ok"
	maxRespBody = 4 << 10
)

type Gateway struct {
	store  *store.Store
	client *http.Client
}

func New(st *store.Store, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Gateway{store: st, client: client}
}

// Deliver posts the message to the app's configured webhook. The request
// carries a short-lived HS256 bearer signed with the app's shared token so
// the receiver can authenticate the bridge.
func (g *Gateway) Deliver(ctx context.Context, app *domain.App, view *dto.MessageView) error {
	cfg, err := g.store.Forwarding().GetConfig(ctx, app.ID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return apperr.ErrForwardURLMissing
		}
		return err
	}

	body, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode forward payload: %w", err)
	}
	bearer, err := signBearer(app)
	if err != nil {
		return fmt.Errorf("sign forward bearer: %w", err)
	}

	result := "success"
	timer := prometheus.NewTimer(metrics.ForwardDurationSeconds.WithLabelValues())
	defer func() {
		timer.ObserveDuration()
		metrics.ForwardsTotal.WithLabelValues(result).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		result = "failure"
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := g.client.Do(req)
	if err != nil {
		result = "failure"
		g.logFailure(ctx, app, "deliver message "+strconv.FormatInt(view.ID, 10)+": "+err.Error())
		return fmt.Errorf("forward to %s: %w", cfg.URL, err)
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBody))
	if err != nil {
		result = "failure"
		g.logFailure(ctx, app, "deliver message "+strconv.FormatInt(view.ID, 10)+": "+err.Error())
		return fmt.Errorf("read forward response: %w", err)
	}
	if string(ack) != ackBody {
		result = "rejected"
		g.logFailure(ctx, app, "message forward failed")
		slog.Warn("forward rejected", "app_id", app.AppID, "url", cfg.URL, "status", resp.StatusCode)
		return apperr.ErrForwardFailed
	}

	slog.Info("message forwarded", "app_id", app.AppID, "message_id", view.ID)
	return nil
}

// logFailure appends to the forward log. Log failures are swallowed: the
// delivery error is the one the caller needs.
func (g *Gateway) logFailure(ctx context.Context, app *domain.App, content string) {
	if err := g.store.Forwarding().AppendLog(ctx, app.ID, content); err != nil {
		slog.Error("append forward log", "app_id", app.AppID, "error", err)
	}
}

func signBearer(app *domain.App) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": bearerIssuer,
		"sub": app.AppID,
		"iat": now.Unix(),
		"exp": now.Add(bearerTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(app.Token))
}
