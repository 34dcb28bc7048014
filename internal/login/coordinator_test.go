package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/ephemeral"
	"wxbridge/internal/store"
	"wxbridge/internal/wx"
)

type fakeAvatars struct {
	avatar string
	err    error
	calls  int
}

func (f *fakeAvatars) Fetch(ctx context.Context, uuid string) (string, error) {
	f.calls++
	return f.avatar, f.err
}

type scriptedDriver struct {
	steps  [][3]string // uuid, status, qrcode
	self   wx.Peer
	login  bool
	logout bool
}

func (d *scriptedDriver) Login(ctx context.Context, hooks wx.LoginHooks) error {
	for _, s := range d.steps {
		if err := hooks.QR(s[0], s[1], s[2]); err != nil {
			return err
		}
	}
	if d.login {
		hooks.LoggedIn(d.self)
	}
	if d.logout {
		hooks.LoggedOut()
	}
	return nil
}

func (d *scriptedDriver) Self(ctx context.Context) (wx.Peer, error) { return d.self, nil }
func (d *scriptedDriver) Search(ctx context.Context, puid string) (wx.Peer, bool, error) {
	return wx.Peer{}, false, nil
}
func (d *scriptedDriver) SendText(ctx context.Context, puid, text string) (wx.Inbound, error) {
	return nil, errors.New("not implemented")
}
func (d *scriptedDriver) SendImage(ctx context.Context, puid, path string) (wx.Inbound, error) {
	return nil, errors.New("not implemented")
}
func (d *scriptedDriver) SendVideo(ctx context.Context, puid, path string) (wx.Inbound, error) {
	return nil, errors.New("not implemented")
}
func (d *scriptedDriver) SendFile(ctx context.Context, puid, path string) (wx.Inbound, error) {
	return nil, errors.New("not implemented")
}
func (d *scriptedDriver) Friends(ctx context.Context) ([]wx.Peer, error)       { return nil, nil }
func (d *scriptedDriver) Groups(ctx context.Context) ([]wx.GroupRoster, error) { return nil, nil }
func (d *scriptedDriver) Channels(ctx context.Context) ([]wx.Peer, error)      { return nil, nil }
func (d *scriptedDriver) Avatar(ctx context.Context, puid string) ([]byte, error) {
	return nil, nil
}

func setupCoordinator(t *testing.T, driver wx.Driver, avatars avatarFetcher) (*Coordinator, *store.Store, *ephemeral.Memory) {
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
	c := NewCoordinator(driver, cache, st, avatars, 10*time.Minute, time.Millisecond, time.Second)
	return c, st, cache
}

func testApp(t *testing.T, st *store.Store) *domain.App {
	t.Helper()
	app := &domain.App{
		AppName:    "demo",
		AppID:      "app-1",
		SecretAlgo: "argon2id",
		SecretHash: []byte{1}, SecretSalt: []byte{2}, SecretParams: []byte(`{}`),
		Token:     "shared",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := st.Apps().Create(context.Background(), app); err != nil {
		t.Fatalf("create app: %v", err)
	}
	return app
}

func TestStatusSequenceLeavesConfirmedWithAvatar(t *testing.T) {
	driver := &scriptedDriver{
		steps: [][3]string{
			{"uuid-1", StatusPending, "qr"},
			{"uuid-1", StatusScanned, "qr"},
			{"uuid-1", StatusConfirmed, "qr"},
		},
		self:  wx.Peer{Kind: domain.PeerUser, PUID: "self-puid", Name: "me"},
		login: true,
	}
	avatars := &fakeAvatars{avatar: "b64-avatar"}
	c, st, cache := setupCoordinator(t, driver, avatars)
	app := testApp(t, st)
	ctx := context.Background()

	if err := driver.Login(ctx, c.hooks(ctx, app, "flag-1")); err != nil {
		t.Fatalf("login: %v", err)
	}

	record, _ := cache.HGetAll(ctx, "uuid-1")
	if record["status"] != StatusConfirmed {
		t.Fatalf("expected status 200, got %q", record["status"])
	}
	if record["avatar"] != "b64-avatar" {
		t.Fatalf("expected avatar from the scanned step, got %q", record["avatar"])
	}
	if avatars.calls != 1 {
		t.Fatalf("avatar must be fetched once (on 201 only), got %d calls", avatars.calls)
	}
	if record["qrcode"] != qrcodeURLBase+"uuid-1" {
		t.Fatalf("unexpected qrcode url %q", record["qrcode"])
	}

	// Login success binds the account and raises the alive flag.
	bound, err := st.Apps().GetByAppID(ctx, "app-1")
	if err != nil {
		t.Fatalf("reload app: %v", err)
	}
	if bound.BoundPUID == nil || *bound.BoundPUID != "self-puid" {
		t.Fatalf("expected bound puid self-puid, got %v", bound.BoundPUID)
	}
	if alive := c.Alive(ctx, app); alive != "1" {
		t.Fatalf("expected alive=1, got %s", alive)
	}
}

func TestExpiredStatusIsTerminal(t *testing.T) {
	driver := &scriptedDriver{
		steps: [][3]string{
			{"uuid-2", StatusPending, "qr"},
			{"uuid-2", StatusExpired, "qr"},
			{"uuid-2", StatusConfirmed, "qr"}, // must never be processed
		},
	}
	c, st, cache := setupCoordinator(t, driver, &fakeAvatars{})
	app := testApp(t, st)
	ctx := context.Background()

	err := driver.Login(ctx, c.hooks(ctx, app, "flag-2"))
	if !errors.Is(err, apperr.ErrLoginTimeout) {
		t.Fatalf("expected ErrLoginTimeout, got %v", err)
	}

	// The terminal state stops writes: only the pending record exists.
	record, _ := cache.HGetAll(ctx, "flag-2")
	if record["status"] != StatusPending {
		t.Fatalf("expected flag record frozen at 0, got %q", record["status"])
	}
	if uuidRecord, _ := cache.HGetAll(ctx, "uuid-2"); len(uuidRecord) != 0 {
		t.Fatalf("expected no uuid record after expiry, got %v", uuidRecord)
	}
}

func TestAvatarFailureIsNonFatal(t *testing.T) {
	driver := &scriptedDriver{
		steps: [][3]string{
			{"uuid-3", StatusPending, "qr"},
			{"uuid-3", StatusScanned, "qr"},
		},
	}
	c, st, cache := setupCoordinator(t, driver, &fakeAvatars{err: errors.New("network down")})
	app := testApp(t, st)
	ctx := context.Background()

	if err := driver.Login(ctx, c.hooks(ctx, app, "flag-3")); err != nil {
		t.Fatalf("avatar failure must not abort login: %v", err)
	}
	record, _ := cache.HGetAll(ctx, "uuid-3")
	if record["status"] != StatusScanned {
		t.Fatalf("expected status 201, got %q", record["status"])
	}
	if record["avatar"] != "" {
		t.Fatalf("expected empty avatar, got %q", record["avatar"])
	}
}

func TestBindingIsFirstWriteOnly(t *testing.T) {
	driver := &scriptedDriver{self: wx.Peer{Kind: domain.PeerUser, PUID: "other"}, login: true}
	c, st, _ := setupCoordinator(t, driver, &fakeAvatars{})
	app := testApp(t, st)
	ctx := context.Background()

	first := "original"
	if _, err := st.Contacts().Ensure(ctx, &domain.Contact{PUID: first}); err != nil {
		t.Fatalf("ensure contact: %v", err)
	}
	if err := st.Apps().BindAccount(ctx, app.ID, first); err != nil {
		t.Fatalf("bind: %v", err)
	}
	app.BoundPUID = &first

	if err := driver.Login(ctx, c.hooks(ctx, app, "flag-4")); err != nil {
		t.Fatalf("login: %v", err)
	}
	reloaded, err := st.Apps().GetByAppID(ctx, "app-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.BoundPUID == nil || *reloaded.BoundPUID != "original" {
		t.Fatalf("binding must not be overwritten, got %v", reloaded.BoundPUID)
	}
}

func TestWaitForSessionRenamesFlag(t *testing.T) {
	driver := &scriptedDriver{steps: [][3]string{{"uuid-5", StatusPending, "qr"}}}
	c, st, cache := setupCoordinator(t, driver, &fakeAvatars{})
	app := testApp(t, st)
	ctx := context.Background()

	c.Start(ctx, app, "flag-5")
	resp, err := c.WaitForSession(ctx, "flag-5")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if resp.UUID != "uuid-5" || resp.Status != StatusPending {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if record, _ := cache.HGetAll(ctx, "flag-5"); len(record) != 0 {
		t.Fatalf("flag key should have been renamed, still holds %v", record)
	}
	if record, _ := cache.HGetAll(ctx, "uuid-5"); record["status"] != StatusPending {
		t.Fatalf("expected record under uuid after rename, got %v", record)
	}
}

func TestWaitForSessionGivesUp(t *testing.T) {
	c, st, _ := setupCoordinator(t, &scriptedDriver{}, &fakeAvatars{})
	_ = testApp(t, st)
	c.pollMax = 20 * time.Millisecond

	_, err := c.WaitForSession(context.Background(), "never-published")
	if !errors.Is(err, apperr.ErrLoginTimeout) {
		t.Fatalf("expected ErrLoginTimeout, got %v", err)
	}
}

func TestLogoutClearsAlive(t *testing.T) {
	driver := &scriptedDriver{self: wx.Peer{PUID: "p"}, login: true, logout: true}
	c, st, _ := setupCoordinator(t, driver, &fakeAvatars{})
	app := testApp(t, st)
	ctx := context.Background()

	if err := driver.Login(ctx, c.hooks(ctx, app, "flag-6")); err != nil {
		t.Fatalf("login: %v", err)
	}
	if alive := c.Alive(ctx, app); alive != "0" {
		t.Fatalf("expected alive=0 after logout, got %s", alive)
	}
}
