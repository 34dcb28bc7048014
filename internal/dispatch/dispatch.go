// Package dispatch runs every live inbound message through the pipeline and
// hands the normalized result to the forwarding gateway.
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/forward"
	"wxbridge/internal/pipeline"
	"wxbridge/internal/wx"
)

type Dispatcher struct {
	pipeline *pipeline.Pipeline
	forwards *forward.Gateway
}

func New(pl *pipeline.Pipeline, forwards *forward.Gateway) *Dispatcher {
	return &Dispatcher{pipeline: pl, forwards: forwards}
}

// Dispatch ingests one message and forwards it. There is no caller to hand
// errors back to, so failures end here, logged.
func (d *Dispatcher) Dispatch(ctx context.Context, app *domain.App, msg wx.Inbound) {
	view, err := d.pipeline.Ingest(ctx, app, msg)
	if err != nil {
		slog.Error("inbound message dropped", "app_id", app.AppID, "error", err)
		return
	}
	if err := d.forwards.Deliver(ctx, app, view); err != nil {
		if errors.Is(err, apperr.ErrForwardURLMissing) {
			slog.Debug("no forward url configured", "app_id", app.AppID)
			return
		}
		slog.Error("forward delivery failed", "app_id", app.AppID, "message_id", view.ID, "error", err)
	}
}
