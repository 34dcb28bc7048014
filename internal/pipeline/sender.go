package pipeline

import (
	"context"
	"log/slog"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/ephemeral"
	"wxbridge/internal/wx"
)

// Sender pushes outbound messages through the live session and persists the
// sent message the same way inbound ones are.
type Sender struct {
	driver   wx.Driver
	cache    ephemeral.Store
	pipeline *Pipeline
}

func NewSender(driver wx.Driver, cache ephemeral.Store, pl *Pipeline) *Sender {
	return &Sender{driver: driver, cache: cache, pipeline: pl}
}

// Send validates the request, resolves the target by puid and delivers.
// Validation and the liveness check run before any send attempt.
func (s *Sender) Send(ctx context.Context, app *domain.App, req dto.SendMessageRequest) (*dto.MessageView, error) {
	if err := validateSend(req); err != nil {
		return nil, err
	}

	alive, ok, err := s.cache.Get(ctx, app.AppID+"_alive")
	if err != nil {
		return nil, err
	}
	if !ok || alive != "1" {
		return nil, apperr.ErrSessionOffline
	}

	_, found, err := s.driver.Search(ctx, req.PUID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.ErrPUIDNotFound
	}

	var sent wx.Inbound
	switch req.Type {
	case "text":
		sent, err = s.driver.SendText(ctx, req.PUID, req.Text)
	case "image":
		sent, err = s.driver.SendImage(ctx, req.PUID, req.File)
	case "video":
		sent, err = s.driver.SendVideo(ctx, req.PUID, req.File)
	case "file":
		sent, err = s.driver.SendFile(ctx, req.PUID, req.File)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("message sent", "app_id", app.AppID, "puid", req.PUID, "type", req.Type)
	return s.pipeline.Ingest(ctx, app, sent)
}

func validateSend(req dto.SendMessageRequest) error {
	switch req.Type {
	case "text":
		if req.Text == "" {
			return apperr.ErrTextRequired
		}
	case "image", "video", "file":
		if req.File == "" {
			return apperr.ErrFileRequired
		}
	default:
		return apperr.ErrUnsupportedSendType
	}
	return nil
}
