package forward

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/observability/metrics"
	"wxbridge/internal/store"
)

func TestMain(m *testing.M) {
	metrics.MustRegister("test")
	os.Exit(m.Run())
}

func setupGateway(t *testing.T) (*Gateway, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return New(st, &http.Client{Timeout: 2 * time.Second}), st
}

func testApp() *domain.App {
	return &domain.App{
		ID:    uuid.New(),
		AppID: "app-1",
		Token: "shared-signing-token",
	}
}

func testView() *dto.MessageView {
	return &dto.MessageView{
		ID:   1001,
		Type: "Text",
		Sender: dto.PeerView{Kind: "user", PUID: "friend-1"},
		Receiver: dto.PeerView{Kind: "user", PUID: "self-puid"},
		Content: &domain.TextMessage{MessageID: 1001, Text: "hello"},
	}
}

func configure(t *testing.T, st *store.Store, app *domain.App, url string) {
	t.Helper()
	err := st.Forwarding().UpsertConfig(context.Background(), &domain.ForwardConfig{
		AppID: app.ID,
		URL:   url,
	})
	if err != nil {
		t.Fatalf("upsert config: %v", err)
	}
}

func logCount(t *testing.T, st *store.Store, app *domain.App) int {
	t.Helper()
	logs, err := st.Forwarding().ListLogs(context.Background(), app.ID, 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	return len(logs)
}

func TestDeliverAcknowledged(t *testing.T) {
	gw, st := setupGateway(t)
	app := testApp()

	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		io.WriteString(w, "ok")
	}))
	defer srv.Close()
	configure(t, st, app, srv.URL)

	if err := gw.Deliver(context.Background(), app, testView()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if logCount(t, st, app) != 0 {
		t.Fatalf("acknowledged delivery must not be logged")
	}
	if !strings.Contains(gotBody, `"puid":"friend-1"`) {
		t.Fatalf("unexpected payload: %s", gotBody)
	}

	// The bearer must verify against the app's shared token.
	raw := strings.TrimPrefix(gotAuth, "Bearer ")
	if raw == gotAuth {
		t.Fatalf("missing bearer, got %q", gotAuth)
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(app.Token), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse bearer: %v", err)
	}
	if claims["sub"] != app.AppID {
		t.Fatalf("expected sub %q, got %v", app.AppID, claims["sub"])
	}
}

func TestDeliverRejectedBodyIsLogged(t *testing.T) {
	gw, st := setupGateway(t)
	app := testApp()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "nope")
	}))
	defer srv.Close()
	configure(t, st, app, srv.URL)

	err := gw.Deliver(context.Background(), app, testView())
	if !errors.Is(err, apperr.ErrForwardFailed) {
		t.Fatalf("expected ErrForwardFailed, got %v", err)
	}
	logs, _ := st.Forwarding().ListLogs(context.Background(), app.ID, 0)
	if len(logs) != 1 {
		t.Fatalf("expected one log row, got %d", len(logs))
	}
	if logs[0].Content != "message forward failed" {
		t.Fatalf("unexpected log content: %s", logs[0].Content)
	}
}

func TestDeliverTransportFailureIsLogged(t *testing.T) {
	gw, st := setupGateway(t)
	app := testApp()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	configure(t, st, app, srv.URL)
	srv.Close()

	err := gw.Deliver(context.Background(), app, testView())
	if err == nil || errors.Is(err, apperr.ErrForwardFailed) {
		t.Fatalf("expected a transport error, got %v", err)
	}
	if logCount(t, st, app) != 1 {
		t.Fatalf("transport failure must be logged")
	}
}

func TestDeliverWithoutConfig(t *testing.T) {
	gw, _ := setupGateway(t)

	err := gw.Deliver(context.Background(), testApp(), testView())
	if !errors.Is(err, apperr.ErrForwardURLMissing) {
		t.Fatalf("expected ErrForwardURLMissing, got %v", err)
	}
}
