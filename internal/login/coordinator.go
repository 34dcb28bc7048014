// Package login runs the QR login state machine for a single attempt. The
// coordinator publishes transient session state into the ephemeral store
// while the HTTP caller polls for it; an abandoned attempt simply expires
// via the store TTL.
package login

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/ephemeral"
	"wxbridge/internal/observability/metrics"
	"wxbridge/internal/store"
	"wxbridge/internal/wx"
)

// Protocol status codes, delivered as strings on the QR callback.
const (
	StatusPending   = "0"
	StatusScanned   = "201"
	StatusConfirmed = "200"
	StatusExpired   = "400"
)

const qrcodeURLBase = "https://login.weixin.qq.com/qrcode/"

type avatarFetcher interface {
	Fetch(ctx context.Context, uuid string) (string, error)
}

type Coordinator struct {
	driver  wx.Driver
	cache   ephemeral.Store
	store   *store.Store
	avatars avatarFetcher

	// Dispatch, when set, receives every inbound message of the live
	// session.
	Dispatch func(ctx context.Context, app *domain.App, msg wx.Inbound)

	sessionTTL time.Duration
	pollEvery  time.Duration
	pollMax    time.Duration
}

func NewCoordinator(driver wx.Driver, cache ephemeral.Store, st *store.Store, avatars avatarFetcher, sessionTTL, pollEvery, pollMax time.Duration) *Coordinator {
	return &Coordinator{
		driver:     driver,
		cache:      cache,
		store:      st,
		avatars:    avatars,
		sessionTTL: sessionTTL,
		pollEvery:  pollEvery,
		pollMax:    pollMax,
	}
}

func aliveKey(appID string) string { return appID + "_alive" }

// Alive reports the session liveness flag for an app.
func (c *Coordinator) Alive(ctx context.Context, app *domain.App) string {
	v, ok, err := c.cache.Get(ctx, aliveKey(app.AppID))
	if err != nil || !ok {
		return "0"
	}
	return v
}

// Start launches the login attempt on its own worker and returns
// immediately. The caller polls with WaitForSession.
func (c *Coordinator) Start(ctx context.Context, app *domain.App, flag string) {
	go func() {
		err := c.driver.Login(ctx, c.hooks(ctx, app, flag))
		outcome := "success"
		switch {
		case errors.Is(err, apperr.ErrLoginTimeout):
			outcome = "expired"
			slog.Warn("qr login expired", "app_id", app.AppID, "flag", flag)
		case err != nil:
			outcome = "error"
			slog.Error("login worker stopped", "app_id", app.AppID, "error", err)
		}
		metrics.LoginSessionsTotal.WithLabelValues(outcome).Inc()
	}()
}

func (c *Coordinator) hooks(ctx context.Context, app *domain.App, flag string) wx.LoginHooks {
	return wx.LoginHooks{
		QR: func(uuid, status, qrcode string) error {
			return c.onStatus(ctx, flag, uuid, status)
		},
		LoggedIn: func(self wx.Peer) {
			c.onLoggedIn(ctx, app, self)
		},
		LoggedOut: func() {
			if err := c.cache.Set(ctx, aliveKey(app.AppID), "0", 0); err != nil {
				slog.Warn("clear alive flag", "app_id", app.AppID, "error", err)
			}
		},
		Message: func(msg wx.Inbound) {
			if c.Dispatch != nil {
				c.Dispatch(ctx, app, msg)
			}
		},
	}
}

// onStatus mirrors the protocol state machine: PENDING records the session
// under the caller's flag only; every later state also republishes under the
// protocol uuid so pollers that only know the uuid can resolve it. EXPIRED
// is terminal and stops further writes.
func (c *Coordinator) onStatus(ctx context.Context, flag, uuid, status string) error {
	switch status {
	case StatusPending:
		return c.publish(ctx, flag, uuid, status)
	case StatusScanned:
		c.fetchAvatar(ctx, uuid)
	case StatusConfirmed:
		// Same update as SCANNED, without the avatar re-fetch.
	case StatusExpired:
		return apperr.ErrLoginTimeout
	}
	if err := c.publish(ctx, flag, uuid, status); err != nil {
		return err
	}
	return c.publish(ctx, uuid, uuid, status)
}

func (c *Coordinator) publish(ctx context.Context, key, uuid, status string) error {
	if err := c.cache.HSet(ctx, key, "uuid", uuid); err != nil {
		return err
	}
	if err := c.cache.HSet(ctx, key, "status", status); err != nil {
		return err
	}
	if err := c.cache.HSet(ctx, key, "qrcode", qrcodeURLBase+uuid); err != nil {
		return err
	}
	return c.cache.Expire(ctx, key, c.sessionTTL)
}

// fetchAvatar is best-effort: a failure leaves the avatar field empty and
// the login proceeds.
func (c *Coordinator) fetchAvatar(ctx context.Context, uuid string) {
	avatar, err := c.avatars.Fetch(ctx, uuid)
	if err != nil {
		slog.Warn("avatar fetch failed", "uuid", uuid, "error", err)
		return
	}
	if err := c.cache.HSet(ctx, uuid, "avatar", avatar); err != nil {
		slog.Warn("store avatar", "uuid", uuid, "error", err)
	}
}

// onLoggedIn binds the authenticated account to the app (first write only)
// and raises the liveness flag.
func (c *Coordinator) onLoggedIn(ctx context.Context, app *domain.App, self wx.Peer) {
	contact := &domain.Contact{
		PUID:       self.PUID,
		Name:       self.Name,
		NickName:   self.NickName,
		UserName:   self.UserName,
		RemarkName: self.RemarkName,
		Signature:  self.Signature,
		Sex:        self.Sex,
		Province:   self.Province,
		City:       self.City,
	}
	if _, err := c.store.Contacts().Ensure(ctx, contact); err != nil {
		slog.Error("ensure bound contact", "puid", self.PUID, "error", err)
	} else if app.BoundPUID == nil {
		if err := c.store.Apps().BindAccount(ctx, app.ID, self.PUID); err != nil {
			slog.Error("bind account", "app_id", app.AppID, "error", err)
		} else {
			puid := self.PUID
			app.BoundPUID = &puid
		}
	}
	if err := c.cache.Set(ctx, aliveKey(app.AppID), "1", 0); err != nil {
		slog.Warn("set alive flag", "app_id", app.AppID, "error", err)
	}
	slog.Info("login complete", "app_id", app.AppID, "puid", self.PUID)
}

// WaitForSession polls the store until the worker has published the session
// record under flag, then renames the key to the protocol uuid so status
// checks use the stable key. The poll is bounded: pollMax without a record
// means the worker never produced a QR code.
func (c *Coordinator) WaitForSession(ctx context.Context, flag string) (*dto.LoginResponse, error) {
	deadline := time.Now().Add(c.pollMax)
	for {
		record, err := c.cache.HGetAll(ctx, flag)
		if err != nil {
			return nil, err
		}
		if len(record) > 0 {
			uuid := record["uuid"]
			if err := c.cache.Rename(ctx, flag, uuid); err != nil && !errors.Is(err, ephemeral.ErrNoKey) {
				return nil, err
			}
			return &dto.LoginResponse{
				UUID:   uuid,
				Status: record["status"],
				QRCode: record["qrcode"],
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, apperr.ErrLoginTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollEvery):
		}
	}
}

// CheckSession resolves the current status for a session uuid.
func (c *Coordinator) CheckSession(ctx context.Context, app *domain.App, uuid string) (*dto.CheckLoginResponse, error) {
	record, err := c.cache.HGetAll(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return &dto.CheckLoginResponse{
		Status: record["status"],
		Avatar: record["avatar"],
		Alive:  c.Alive(ctx, app),
	}, nil
}
