// Package login sequences the sign-in flow: refresh-first, interactive
// fallback, profile fetch, session persistence. It is the only writer of
// the session store.
package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jwhitfield/deskauth/internal/auth"
	"github.com/jwhitfield/deskauth/internal/browser"
	"github.com/jwhitfield/deskauth/internal/config"
	"github.com/jwhitfield/deskauth/internal/logging"
	"github.com/jwhitfield/deskauth/internal/session"
)

var (
	// ErrNotCompleted reports a login that ended without a provider-side
	// error: the user ran out the deadline or closed the window.
	ErrNotCompleted = errors.New("login not completed")

	// ErrStateMismatch reports a callback whose state does not match the
	// attempt that launched it, a possible cross-request injection. The
	// code is never exchanged.
	ErrStateMismatch = errors.New("authorization state mismatch")

	errWindowClosed = errors.New("login window closed")
	errDeadline     = errors.New("login deadline reached")
)

// AuthClient is the provider-facing surface the orchestrator drives.
// *auth.Client implements it; tests substitute fakes.
type AuthClient interface {
	AuthCodeURL(state string, ch auth.Challenge) string
	ExchangeCode(ctx context.Context, code, verifier string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Revoke(ctx context.Context, token string) error
	FetchProfile(ctx context.Context, accessToken string) (session.Profile, error)
}

// attempt is the ephemeral state of one interactive flow. It is created
// when the flow starts, destroyed when it terminates, and never reused.
type attempt struct {
	id       string
	state    string
	verifier string
	port     int
	deadline time.Time
	cancel   context.CancelCauseFunc
}

// Manager owns the session store and runs login and logout sequences.
// One logical sequence executes at a time; concurrent GetUser calls on an
// authenticated session return the cached profile without contention.
type Manager struct {
	cfg      config.Config
	store    *session.Store
	client   AuthClient
	launcher browser.Launcher

	loginMu sync.Mutex // serializes login/logout sequences

	// authed marks that this process has completed a login sequence. A
	// profile loaded from disk alone doesn't count: it may be stale, so
	// the first GetUser of a run revalidates it through the refresh path.
	authed atomic.Bool

	attemptMu sync.Mutex
	inflight  *attempt
}

// NewManager wires the orchestrator. The config must already be validated.
func NewManager(cfg config.Config, store *session.Store, client AuthClient, launcher browser.Launcher) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		client:   client,
		launcher: launcher,
	}
}

// GetUser returns the signed-in profile, running the login sequence first
// if needed. An authenticated session answers from cache with no network
// call. On any failure the returned profile is empty and the session holds
// no stale credentials.
func (m *Manager) GetUser(ctx context.Context) (session.Profile, error) {
	if m.authed.Load() {
		return m.store.Current().Profile, nil
	}

	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	// A concurrent call may have signed in while we waited for the lock.
	if m.authed.Load() {
		return m.store.Current().Profile, nil
	}
	return m.login(ctx)
}

// Logout clears and persists the empty session, then immediately runs a
// fresh login sequence. The provider's own browser cookies usually make
// that re-login silent, which lets the user switch accounts without an
// extra prompt. The clear happens even if the re-login fails.
func (m *Manager) Logout(ctx context.Context) (session.Profile, error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	log := logging.FromContext(ctx)

	m.authed.Store(false)
	// Best-effort provider-side revocation; local logout proceeds either way.
	if rt := m.store.Current().RefreshToken; rt != "" {
		if err := m.client.Revoke(ctx, rt); err != nil {
			log.Warn("revoking refresh token failed", "err", err)
		}
	}
	if err := m.store.Clear(); err != nil {
		log.Warn("persisting cleared session failed", "err", err)
	}
	return m.login(ctx)
}

// WindowClosed cancels the in-flight interactive attempt, if any. The
// bridge calls this when the frontend reports the login window was
// dismissed. Safe to call at any time; a late or repeated notification is
// a no-op.
func (m *Manager) WindowClosed() {
	m.attemptMu.Lock()
	defer m.attemptMu.Unlock()
	if m.inflight != nil {
		m.inflight.cancel(errWindowClosed)
	}
}

// login runs the refresh-first sequence. Callers hold loginMu.
func (m *Manager) login(ctx context.Context) (session.Profile, error) {
	log := logging.FromContext(ctx)

	if rt := m.store.Current().RefreshToken; rt != "" {
		pair, err := m.client.Refresh(ctx, rt)
		if err == nil {
			return m.finish(ctx, pair)
		}
		// The refresh token is presumed dead: discard it before the
		// interactive fallback so a second failure can't reuse it.
		log.Debug("refresh failed, falling back to interactive login", "err", err)
		if cerr := m.store.Clear(); cerr != nil {
			log.Warn("discarding dead refresh token failed", "err", cerr)
		}
	}

	return m.interactive(ctx)
}

// interactive runs one complete browser flow. Callers hold loginMu.
func (m *Manager) interactive(ctx context.Context) (session.Profile, error) {
	log := logging.FromContext(ctx)

	ch, err := auth.NewChallenge()
	if err != nil {
		return session.Profile{}, err
	}
	state, err := auth.NewState()
	if err != nil {
		return session.Profile{}, err
	}

	l, err := auth.Listen(m.cfg.Listener.Port, m.cfg.Listener.CallbackPath)
	if err != nil {
		return session.Profile{}, fmt.Errorf("login failed: %w", err)
	}
	defer l.Close()

	timeout := time.Duration(m.cfg.Login.TimeoutSeconds) * time.Second
	cctx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)
	timer := time.AfterFunc(timeout, func() { cancel(errDeadline) })
	defer timer.Stop()

	att := &attempt{
		id:       uuid.NewString(),
		state:    state,
		verifier: ch.Verifier,
		port:     l.Port(),
		deadline: time.Now().Add(timeout),
		cancel:   cancel,
	}
	m.setAttempt(att)
	defer m.clearAttempt()

	authURL := m.client.AuthCodeURL(state, ch)
	log.Debug("starting interactive login", "attempt", att.id, "port", att.port)
	if err := m.launcher.Open(authURL); err != nil {
		return session.Profile{}, fmt.Errorf("launching login window: %w", err)
	}

	var cb auth.Callback
	select {
	case cb = <-l.Callbacks():
	case <-cctx.Done():
		cause := context.Cause(cctx)
		log.Debug("interactive login cancelled", "attempt", att.id, "cause", cause)
		switch {
		case errors.Is(cause, errDeadline):
			return session.Profile{}, fmt.Errorf("%w: no response within %s", ErrNotCompleted, timeout)
		case errors.Is(cause, errWindowClosed):
			return session.Profile{}, fmt.Errorf("%w: window closed", ErrNotCompleted)
		default:
			return session.Profile{}, fmt.Errorf("%w: %v", ErrNotCompleted, cause)
		}
	}

	// Release the port before the token calls; the browser is done with us.
	l.Close()

	if cb.Err != "" {
		return session.Profile{}, fmt.Errorf("login failed: provider returned %q", cb.Err)
	}
	if cb.State != att.state {
		log.Warn("callback state mismatch", "attempt", att.id)
		return session.Profile{}, ErrStateMismatch
	}

	pair, err := m.client.ExchangeCode(ctx, cb.Code, att.verifier)
	if err != nil {
		m.discard(log)
		return session.Profile{}, fmt.Errorf("login failed: %w", err)
	}
	return m.finish(ctx, pair)
}

// finish fetches the profile and persists the session. Both the token
// exchange and the profile fetch must have succeeded before anything is
// written; a failure here discards the token pair entirely rather than
// persisting credentials without display data.
func (m *Manager) finish(ctx context.Context, pair *auth.TokenPair) (session.Profile, error) {
	log := logging.FromContext(ctx)

	profile, err := m.client.FetchProfile(ctx, pair.AccessToken)
	if err != nil {
		m.discard(log)
		return session.Profile{}, fmt.Errorf("login failed: %w", err)
	}

	if err := m.store.Replace(session.Session{Profile: profile, RefreshToken: pair.RefreshToken}); err != nil {
		// The in-memory session is updated regardless; the next restart
		// simply starts signed out.
		log.Warn("persisting session failed", "err", err)
	}
	m.authed.Store(true)
	return profile, nil
}

func (m *Manager) discard(log *log.Logger) {
	m.authed.Store(false)
	if err := m.store.Clear(); err != nil {
		log.Warn("clearing session failed", "err", err)
	}
}

func (m *Manager) setAttempt(a *attempt) {
	m.attemptMu.Lock()
	defer m.attemptMu.Unlock()
	m.inflight = a
}

func (m *Manager) clearAttempt() {
	m.attemptMu.Lock()
	defer m.attemptMu.Unlock()
	m.inflight = nil
}
