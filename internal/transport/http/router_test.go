package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"wxbridge/internal/auth"
	"wxbridge/internal/blob"
	"wxbridge/internal/config"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/ephemeral"
	"wxbridge/internal/login"
	"wxbridge/internal/observability/metrics"
	"wxbridge/internal/pipeline"
	"wxbridge/internal/roster"
	"wxbridge/internal/secret"
	"wxbridge/internal/store"
	"wxbridge/internal/token"
	"wxbridge/internal/wx"
)

func TestMain(m *testing.M) {
	metrics.MustRegister("test")
	os.Exit(m.Run())
}

type memBlobs struct{ puts map[string][]byte }

func (b *memBlobs) Put(ctx context.Context, name string, data []byte) error {
	b.puts[name] = data
	return nil
}
func (b *memBlobs) Get(ctx context.Context, name string) ([]byte, error) {
	d, ok := b.puts[name]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return d, nil
}
func (b *memBlobs) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := b.puts[name]
	return ok, nil
}

type testEnv struct {
	srv    *httptest.Server
	store  *store.Store
	cache  *ephemeral.Memory
	blobs  *memBlobs
	app    *domain.App
	secret string
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cache := ephemeral.NewMemory()
	blobs := &memBlobs{puts: make(map[string][]byte)}
	hasher := secret.NewArgon2id()

	appSecret := "s3cret"
	hash, salt, params, err := hasher.Hash(appSecret)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	owner := "self-puid"
	app := &domain.App{
		AppName:      "test-app",
		AppID:        "app-1",
		SecretAlgo:   hasher.Algo(),
		SecretHash:   hash,
		SecretSalt:   salt,
		SecretParams: params,
		Token:        "shared-token",
		BoundPUID:    &owner,
	}
	if err := st.Apps().Create(context.Background(), app); err != nil {
		t.Fatalf("create app: %v", err)
	}
	if _, err := st.Contacts().Ensure(context.Background(), &domain.Contact{PUID: owner}); err != nil {
		t.Fatalf("ensure owner: %v", err)
	}

	authority := token.NewAuthority(st, cache, hasher, 2*time.Hour)
	guard := auth.NewMiddleware(authority, auth.NewVerifier(3*time.Second), Deny)

	driver := wx.NewUnavailable()
	pl := pipeline.New(st, blobs)
	coordinator := login.NewCoordinator(driver, cache, st, nil,
		10*time.Minute, 10*time.Millisecond, 200*time.Millisecond)
	sender := pipeline.NewSender(driver, cache, pl)
	refresher := roster.New(driver, st, blobs)

	h := NewHandler(authority, coordinator, pl, sender, refresher, st, blobs)
	srv := httptest.NewServer(NewRouter(h, guard, config.Config{TrustProxy: true}))
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: st, cache: cache, blobs: blobs, app: app, secret: appSecret}
}

func (e *testEnv) issueToken(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("%s/access-token?app_id=%s&app_secret=%s",
		e.srv.URL, e.app.AppID, e.secret))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("issue token status %d", resp.StatusCode)
	}
	var tr dto.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return tr.AccessToken
}

func decodeError(t *testing.T, resp *http.Response) (code, message string) {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["code"], body["message"]
}

func TestHealthz(t *testing.T) {
	env := setupServer(t)
	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected healthz reply: %d %q", resp.StatusCode, body)
	}
}

func TestAccessTokenIssuance(t *testing.T) {
	env := setupServer(t)

	tok := env.issueToken(t)
	if tok == "" {
		t.Fatalf("empty access token")
	}

	resp, err := http.Get(env.srv.URL + "/access-token?app_id=app-1&app_secret=wrong")
	if err != nil {
		t.Fatalf("bad secret request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	code, _ := decodeError(t, resp)
	if code != "UNAUTHENTICATED" {
		t.Fatalf("expected UNAUTHENTICATED, got %q", code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	env := setupServer(t)

	resp, err := http.Get(env.srv.URL + "/friends")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestFriendsWithAccessToken(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	for _, puid := range []string{"friend-1", "friend-2"} {
		if _, err := env.store.Contacts().Ensure(ctx, &domain.Contact{PUID: puid}); err != nil {
			t.Fatalf("ensure contact: %v", err)
		}
		if err := env.store.Apps().AddFriend(ctx, "self-puid", puid); err != nil {
			t.Fatalf("add friend: %v", err)
		}
	}

	tok := env.issueToken(t)
	resp, err := http.Get(env.srv.URL + "/friends?access_token=" + url.QueryEscape(tok))
	if err != nil {
		t.Fatalf("friends: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var friends []domain.Contact
	if err := json.NewDecoder(resp.Body).Decode(&friends); err != nil {
		t.Fatalf("decode friends: %v", err)
	}
	if len(friends) != 2 {
		t.Fatalf("expected 2 friends, got %d", len(friends))
	}
}

func TestFriendsWithSignedRequest(t *testing.T) {
	env := setupServer(t)

	ts := time.Now().Unix()
	sig := auth.Signature(env.app.Token, ts)
	u := fmt.Sprintf("%s/friends?app_id=%s&app_secret=%s&timestamp=%d&signature=%s",
		env.srv.URL, env.app.AppID, env.secret, ts, sig)
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("signed request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// A stale timestamp is rejected even with a matching digest.
	old := ts - 60
	u = fmt.Sprintf("%s/friends?app_id=%s&app_secret=%s&timestamp=%d&signature=%s",
		env.srv.URL, env.app.AppID, env.secret, old, auth.Signature(env.app.Token, old))
	resp2, err := http.Get(u)
	if err != nil {
		t.Fatalf("stale request: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", resp2.StatusCode)
	}
}

func TestUnboundAppConflicts(t *testing.T) {
	env := setupServer(t)

	// Drop the binding to simulate an app that never logged in.
	if err := env.store.DB.Model(&domain.App{}).
		Where("id = ?", env.app.ID).
		Update("bound_puid", nil).Error; err != nil {
		t.Fatalf("unbind: %v", err)
	}

	tok := env.issueToken(t)
	resp, err := http.Get(env.srv.URL + "/friends?access_token=" + url.QueryEscape(tok))
	if err != nil {
		t.Fatalf("friends: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	code, _ := decodeError(t, resp)
	if code != "FAILED_PRECONDITION" {
		t.Fatalf("expected FAILED_PRECONDITION, got %q", code)
	}
}

func TestSendMessageOfflineSession(t *testing.T) {
	env := setupServer(t)
	tok := env.issueToken(t)

	body := strings.NewReader(`{"type":"text","puid":"friend-1","text":"hi"}`)
	resp, err := http.Post(env.srv.URL+"/send-message?access_token="+url.QueryEscape(tok),
		"application/json", body)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for offline session, got %d", resp.StatusCode)
	}
}

func TestMediaServing(t *testing.T) {
	env := setupServer(t)
	env.blobs.puts["image/1.jpg"] = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	tok := env.issueToken(t)
	resp, err := http.Get(env.srv.URL + "/media/image/1.jpg?access_token=" + url.QueryEscape(tok))
	if err != nil {
		t.Fatalf("media: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(env.srv.URL + "/media/image/missing.jpg?access_token=" + url.QueryEscape(tok))
	if err != nil {
		t.Fatalf("missing media: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp2.StatusCode)
	}
}

func TestMessagesFilterValidation(t *testing.T) {
	env := setupServer(t)
	tok := env.issueToken(t)

	resp, err := http.Get(env.srv.URL + "/messages?limit=nope&access_token=" + url.QueryEscape(tok))
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
