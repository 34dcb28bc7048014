package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wxbridge/internal/apperr"
	"wxbridge/internal/auth"
	"wxbridge/internal/blob"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/login"
	"wxbridge/internal/pipeline"
	"wxbridge/internal/roster"
	"wxbridge/internal/store"
	"wxbridge/internal/token"
)

// Handler carries the collaborators the routes dispatch into.
type Handler struct {
	authority   *token.Authority
	coordinator *login.Coordinator
	pipeline    *pipeline.Pipeline
	sender      *pipeline.Sender
	refresher   *roster.Refresher
	store       *store.Store
	blobs       blob.Store
}

func NewHandler(
	authority *token.Authority,
	coordinator *login.Coordinator,
	pl *pipeline.Pipeline,
	sender *pipeline.Sender,
	refresher *roster.Refresher,
	st *store.Store,
	blobs blob.Store,
) *Handler {
	return &Handler{
		authority:   authority,
		coordinator: coordinator,
		pipeline:    pl,
		sender:      sender,
		refresher:   refresher,
		store:       st,
		blobs:       blobs,
	}
}

func (h *Handler) accessToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.authority.Issue(r.Context(), q.Get("app_id"), q.Get("app_secret"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) loginStart(w http.ResponseWriter, r *http.Request) {
	app := mustApp(r)

	// The worker outlives the request: the QR flow keeps running while the
	// client polls check-login.
	flag := uuid.NewString()
	h.coordinator.Start(context.WithoutCancel(r.Context()), app, flag)

	res, err := h.coordinator.WaitForSession(r.Context(), flag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) checkLogin(w http.ResponseWriter, r *http.Request) {
	app := mustApp(r)
	res, err := h.coordinator.CheckSession(r.Context(), app, r.URL.Query().Get("uuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) friends(w http.ResponseWriter, r *http.Request) {
	owner, err := boundPUID(mustApp(r))
	if err != nil {
		writeError(w, err)
		return
	}
	friends, err := h.store.Contacts().FriendsOf(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

func (h *Handler) groups(w http.ResponseWriter, r *http.Request) {
	owner, err := boundPUID(mustApp(r))
	if err != nil {
		writeError(w, err)
		return
	}
	groups, err := h.store.Groups().ListByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) groupMembers(w http.ResponseWriter, r *http.Request) {
	puid := chi.URLParam(r, "puid")
	if _, err := h.store.Groups().Get(r.Context(), puid); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			writeError(w, apperr.ErrPUIDNotFound)
			return
		}
		writeError(w, err)
		return
	}
	members, err := h.store.Groups().Members(r.Context(), puid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) channels(w http.ResponseWriter, r *http.Request) {
	owner, err := boundPUID(mustApp(r))
	if err != nil {
		writeError(w, err)
		return
	}
	channels, err := h.store.Channels().ListByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	owner, err := boundPUID(mustApp(r))
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	filter := store.ListFilter{
		OwnerPUID:    owner,
		Type:         q.Get("type"),
		SenderPUID:   q.Get("sender"),
		ReceiverPUID: q.Get("receiver"),
	}
	if v := q.Get("is_at"); v != "" {
		isAt := v == "1" || v == "true"
		filter.IsAt = &isAt
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperr.New(apperr.CodeInvalidArgument, "invalid limit"))
			return
		}
		filter.Limit = n
	}

	rows, err := h.store.Messages().List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]*dto.MessageView, 0, len(rows))
	for i := range rows {
		view, err := h.pipeline.View(r.Context(), &rows[i])
		if err != nil {
			writeError(w, err)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	app := mustApp(r)

	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "malformed request body"))
		return
	}
	view, err := h.sender.Send(r.Context(), app, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	owner, err := boundPUID(mustApp(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.refresher.Refresh(r.Context(), owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) media(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	data, err := h.blobs.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, apperr.New(apperr.CodeNotFound, "no such media"))
			return
		}
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// mustApp returns the authenticated app. The auth middleware guarantees it
// is present on every protected route.
func mustApp(r *http.Request) *domain.App {
	app, ok := auth.AppFrom(r.Context())
	if !ok {
		panic("handler reached without authenticated app")
	}
	return app
}

func boundPUID(app *domain.App) (string, error) {
	if app.BoundPUID == nil || *app.BoundPUID == "" {
		return "", apperr.ErrNoBoundAccount
	}
	return *app.BoundPUID, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Deny is the auth middleware's failure writer; it keeps the error payload
// shape identical to every other endpoint.
func Deny(w http.ResponseWriter, err error) { writeError(w, err) }

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeInvalidArgument:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case apperr.CodeFailedPrecondition:
		status = http.StatusConflict
	case apperr.CodeDeadlineExceeded:
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}

	msg := "internal error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	writeJSON(w, status, map[string]string{
		"code":    string(code),
		"message": msg,
	})
}
