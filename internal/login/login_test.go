package login

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jwhitfield/deskauth/internal/auth"
	"github.com/jwhitfield/deskauth/internal/config"
	"github.com/jwhitfield/deskauth/internal/logging"
	"github.com/jwhitfield/deskauth/internal/session"
)

type fakeClient struct {
	mu           sync.Mutex
	authURLs     int
	exchanges    int
	refreshes    int
	profileCalls int
	lastVerifier string

	revokes      int
	revokedToken string

	refreshErr  error
	exchangeErr error
	profileErr  error
	revokeErr   error

	pair    auth.TokenPair
	profile session.Profile
}

func (f *fakeClient) AuthCodeURL(state string, ch auth.Challenge) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authURLs++
	return "https://provider.example/auth?state=" + url.QueryEscape(state)
}

func (f *fakeClient) ExchangeCode(ctx context.Context, code, verifier string) (*auth.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	f.lastVerifier = verifier
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	pair := f.pair
	return &pair, nil
}

func (f *fakeClient) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	pair := f.pair
	return &pair, nil
}

func (f *fakeClient) Revoke(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokes++
	f.revokedToken = token
	return f.revokeErr
}

func (f *fakeClient) FetchProfile(ctx context.Context, accessToken string) (session.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	if f.profileErr != nil {
		return session.Profile{}, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeClient) counts() (authURLs, exchanges, refreshes, profiles int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authURLs, f.exchanges, f.refreshes, f.profileCalls
}

type fakeLauncher struct {
	mu     sync.Mutex
	opens  int
	err    error
	onOpen func(authURL string)
}

func (l *fakeLauncher) Open(authURL string) error {
	l.mu.Lock()
	l.opens++
	fn := l.onOpen
	err := l.err
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if fn != nil {
		go fn(authURL)
	}
	return nil
}

func (l *fakeLauncher) opened() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// fireCallback simulates the provider redirect: it lifts the state out of
// the opened authorization URL and hits the loopback listener with the
// query built by fn.
func fireCallback(t *testing.T, port int, fn func(state string) string) func(string) {
	t.Helper()
	return func(authURL string) {
		u, err := url.Parse(authURL)
		if err != nil {
			t.Errorf("parsing auth URL: %v", err)
			return
		}
		addr := fmt.Sprintf("http://127.0.0.1:%d/callback?%s", port, fn(u.Query().Get("state")))
		resp, err := http.Get(addr)
		if err != nil {
			t.Errorf("delivering callback: %v", err)
			return
		}
		resp.Body.Close()
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func testPair() auth.TokenPair {
	return auth.TokenPair{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func testProfile() session.Profile {
	return session.Profile{
		ID:            "108201234567890123456",
		Email:         "erin@example.com",
		VerifiedEmail: true,
		Name:          "Erin Example",
		GivenName:     "Erin",
		FamilyName:    "Example",
	}
}

func newTestManager(t *testing.T, port int, fc *fakeClient, fl *fakeLauncher) (*Manager, *session.Store) {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	store.Load()

	cfg := config.DefaultConfig()
	cfg.Provider.ClientID = "client-id"
	cfg.Provider.ClientSecret = "client-secret"
	cfg.Listener.Port = port
	cfg.Login.TimeoutSeconds = 5
	return NewManager(cfg, store, fc, fl), store
}

func testContext() context.Context {
	ctx, _ := logging.NewTestContext(logging.Flags{})
	return ctx
}

func TestGetUser_InteractiveSuccess(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{pair: testPair(), profile: testProfile()}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "code=auth-code&state=" + url.QueryEscape(state)
	})}
	m, store := newTestManager(t, port, fc, fl)

	got, err := m.GetUser(testContext())
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got != testProfile() {
		t.Errorf("profile = %+v, want %+v", got, testProfile())
	}
	if n := fl.opened(); n != 1 {
		t.Errorf("browser opened %d times, want 1", n)
	}
	_, exchanges, refreshes, _ := fc.counts()
	if exchanges != 1 {
		t.Errorf("exchanges = %d, want 1", exchanges)
	}
	if refreshes != 0 {
		t.Errorf("refreshes = %d, want 0", refreshes)
	}
	if fc.lastVerifier == "" {
		t.Error("exchange received no code verifier")
	}

	sess := store.Current()
	if sess.RefreshToken != "refresh-token" {
		t.Errorf("stored refresh token = %q, want %q", sess.RefreshToken, "refresh-token")
	}
	if !sess.Authenticated() {
		t.Error("session not authenticated after login")
	}
}

func TestGetUser_RefreshPathSkipsBrowser(t *testing.T) {
	fc := &fakeClient{pair: testPair(), profile: testProfile()}
	fl := &fakeLauncher{}
	m, store := newTestManager(t, freePort(t), fc, fl)
	if err := store.Replace(session.Session{Profile: testProfile(), RefreshToken: "old-token"}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	got, err := m.GetUser(testContext())
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got != testProfile() {
		t.Errorf("profile = %+v, want %+v", got, testProfile())
	}
	if n := fl.opened(); n != 0 {
		t.Errorf("browser opened %d times, want 0", n)
	}
	_, exchanges, refreshes, _ := fc.counts()
	if refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", refreshes)
	}
	if exchanges != 0 {
		t.Errorf("exchanges = %d, want 0", exchanges)
	}
	if tok := store.Current().RefreshToken; tok != "refresh-token" {
		t.Errorf("stored refresh token = %q, want rotated %q", tok, "refresh-token")
	}
}

func TestGetUser_DeadRefreshFallsBackOnce(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{
		pair:       testPair(),
		profile:    testProfile(),
		refreshErr: errors.New("invalid_grant"),
	}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "code=auth-code&state=" + url.QueryEscape(state)
	})}
	m, store := newTestManager(t, port, fc, fl)
	if err := store.Replace(session.Session{Profile: testProfile(), RefreshToken: "dead-token"}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	got, err := m.GetUser(testContext())
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got != testProfile() {
		t.Errorf("profile = %+v, want %+v", got, testProfile())
	}
	if n := fl.opened(); n != 1 {
		t.Errorf("browser opened %d times, want 1", n)
	}
	_, exchanges, refreshes, _ := fc.counts()
	if refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", refreshes)
	}
	if exchanges != 1 {
		t.Errorf("exchanges = %d, want 1", exchanges)
	}
}

func TestGetUser_StateMismatchRejectsCode(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{pair: testPair(), profile: testProfile()}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(string) string {
		return "code=auth-code&state=forged"
	})}
	m, store := newTestManager(t, port, fc, fl)

	_, err := m.GetUser(testContext())
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}
	if _, exchanges, _, _ := fc.counts(); exchanges != 0 {
		t.Errorf("exchanges = %d, want 0 for a forged state", exchanges)
	}
	if store.Current().Authenticated() {
		t.Error("session authenticated after rejected callback")
	}
}

func TestGetUser_ProviderErrorCallback(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "error=access_denied&state=" + url.QueryEscape(state)
	})}
	m, _ := newTestManager(t, port, fc, fl)

	_, err := m.GetUser(testContext())
	if err == nil || !strings.Contains(err.Error(), "access_denied") {
		t.Fatalf("err = %v, want provider error mentioning access_denied", err)
	}
	if _, exchanges, _, _ := fc.counts(); exchanges != 0 {
		t.Errorf("exchanges = %d, want 0", exchanges)
	}
}

func TestGetUser_TimeoutReleasesPort(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{}
	fl := &fakeLauncher{} // never delivers a callback
	m, store := newTestManager(t, port, fc, fl)
	m.cfg.Login.TimeoutSeconds = 1

	_, err := m.GetUser(testContext())
	if !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("err = %v, want ErrNotCompleted", err)
	}
	if store.Current().Authenticated() {
		t.Error("session authenticated after timeout")
	}

	ln, lerr := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if lerr != nil {
		t.Fatalf("port %d not released after timeout: %v", port, lerr)
	}
	ln.Close()
}

func TestWindowClosed_CancelsAttempt(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{}
	fl := &fakeLauncher{}
	m, _ := newTestManager(t, port, fc, fl)
	m.cfg.Login.TimeoutSeconds = 30
	fl.onOpen = func(string) {
		time.Sleep(50 * time.Millisecond)
		m.WindowClosed()
	}

	start := time.Now()
	_, err := m.GetUser(testContext())
	if !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("err = %v, want ErrNotCompleted", err)
	}
	if !strings.Contains(err.Error(), "window closed") {
		t.Errorf("err = %v, want window-closed cause", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancel took %s, expected well under the deadline", elapsed)
	}
}

func TestWindowClosed_NoAttemptIsNoop(t *testing.T) {
	m, _ := newTestManager(t, freePort(t), &fakeClient{}, &fakeLauncher{})
	m.WindowClosed()
	m.WindowClosed()
}

func TestGetUser_CachedAfterLogin(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{pair: testPair(), profile: testProfile()}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "code=auth-code&state=" + url.QueryEscape(state)
	})}
	m, _ := newTestManager(t, port, fc, fl)

	if _, err := m.GetUser(testContext()); err != nil {
		t.Fatalf("first GetUser: %v", err)
	}
	got, err := m.GetUser(testContext())
	if err != nil {
		t.Fatalf("second GetUser: %v", err)
	}
	if got != testProfile() {
		t.Errorf("profile = %+v, want %+v", got, testProfile())
	}
	if n := fl.opened(); n != 1 {
		t.Errorf("browser opened %d times across two calls, want 1", n)
	}
	_, exchanges, refreshes, profiles := fc.counts()
	if exchanges != 1 || refreshes != 0 || profiles != 1 {
		t.Errorf("exchanges/refreshes/profiles = %d/%d/%d, want 1/0/1", exchanges, refreshes, profiles)
	}
}

func TestGetUser_ProfileFetchFailureDiscardsTokens(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{
		pair:       testPair(),
		profileErr: errors.New("userinfo unavailable"),
	}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "code=auth-code&state=" + url.QueryEscape(state)
	})}
	m, store := newTestManager(t, port, fc, fl)

	_, err := m.GetUser(testContext())
	if err == nil {
		t.Fatal("GetUser succeeded despite profile fetch failure")
	}
	sess := store.Current()
	if sess.Authenticated() || sess.RefreshToken != "" {
		t.Errorf("session = %+v, want fully cleared", sess)
	}
}

func TestGetUser_ExchangeFailure(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{exchangeErr: errors.New("invalid_grant")}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "code=auth-code&state=" + url.QueryEscape(state)
	})}
	m, store := newTestManager(t, port, fc, fl)

	_, err := m.GetUser(testContext())
	if err == nil || !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("err = %v, want exchange failure", err)
	}
	if store.Current().Authenticated() {
		t.Error("session authenticated after failed exchange")
	}
	if _, _, _, profiles := fc.counts(); profiles != 0 {
		t.Errorf("profile fetches = %d, want 0", profiles)
	}
}

func TestLogout_ClearsEvenWhenReloginFails(t *testing.T) {
	fc := &fakeClient{pair: testPair(), profile: testProfile()}
	fl := &fakeLauncher{err: errors.New("no browser available")}
	m, store := newTestManager(t, freePort(t), fc, fl)
	if err := store.Replace(session.Session{Profile: testProfile(), RefreshToken: "old-token"}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	m.authed.Store(true)

	_, err := m.Logout(testContext())
	if err == nil {
		t.Fatal("Logout succeeded despite browser launch failure")
	}
	sess := store.Current()
	if sess.Authenticated() || sess.RefreshToken != "" {
		t.Errorf("session = %+v, want cleared after logout", sess)
	}
	if m.authed.Load() {
		t.Error("manager still authenticated after failed re-login")
	}
}

func TestLogout_ReloginSwitchesAccount(t *testing.T) {
	port := freePort(t)
	second := testProfile()
	second.ID = "999900000000000000000"
	second.Email = "casey@example.com"
	second.Name = "Casey Example"

	fc := &fakeClient{pair: testPair(), profile: second}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "code=auth-code&state=" + url.QueryEscape(state)
	})}
	m, store := newTestManager(t, port, fc, fl)
	if err := store.Replace(session.Session{Profile: testProfile(), RefreshToken: "old-token"}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	m.authed.Store(true)

	got, err := m.Logout(testContext())
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got != second {
		t.Errorf("profile = %+v, want %+v", got, second)
	}
	// The cleared session must not leak the old refresh token into the
	// refresh path: logout always goes through the browser.
	if _, _, refreshes, _ := fc.counts(); refreshes != 0 {
		t.Errorf("refreshes = %d, want 0 after logout", refreshes)
	}
	if n := fl.opened(); n != 1 {
		t.Errorf("browser opened %d times, want 1", n)
	}
	if fc.revokes != 1 || fc.revokedToken != "old-token" {
		t.Errorf("revokes = %d (token %q), want the old token revoked once", fc.revokes, fc.revokedToken)
	}
}

func TestLogout_RevocationFailureIsNotFatal(t *testing.T) {
	port := freePort(t)
	fc := &fakeClient{
		pair:      testPair(),
		profile:   testProfile(),
		revokeErr: errors.New("revocation endpoint returned 503"),
	}
	fl := &fakeLauncher{onOpen: fireCallback(t, port, func(state string) string {
		return "code=auth-code&state=" + url.QueryEscape(state)
	})}
	m, store := newTestManager(t, port, fc, fl)
	if err := store.Replace(session.Session{Profile: testProfile(), RefreshToken: "old-token"}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	m.authed.Store(true)

	got, err := m.Logout(testContext())
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got != testProfile() {
		t.Errorf("profile = %+v, want %+v", got, testProfile())
	}
}
