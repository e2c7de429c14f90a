// Package service contains the session and catalog orchestration used by the console.
package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/identity"
	"github.com/and161185/catalog-admin/internal/limiter"
	"github.com/and161185/catalog-admin/internal/metrics"
	"github.com/and161185/catalog-admin/internal/notify"
)

// SessionState is the authentication state as last reported by the provider.
type SessionState int

const (
	// StateUnknown means the provider has not reported yet; consumers must defer decisions.
	StateUnknown SessionState = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the current authentication state. Principal is nil unless Authenticated.
type Session struct {
	State     SessionState
	Principal identity.Principal
}

// Email returns the signed-in user's email or "".
func (s Session) Email() string {
	if s.Principal == nil {
		return ""
	}
	return s.Principal.Email()
}

// SessionManager is the single owner of the current session. Other components read or subscribe.
type SessionManager struct {
	provider identity.Provider
	lim      limiter.Limiter
	log      *zap.Logger
	metrics  metrics.Recorder

	mu          sync.RWMutex
	session     Session
	version     uint64
	closed      bool
	ready       chan struct{} // closed once the state leaves Unknown
	unsubscribe func()

	subs notify.Hub[Session]
}

// NewSessionManager subscribes to provider and starts in StateUnknown.
// lim may be nil to disable sign-in throttling.
func NewSessionManager(provider identity.Provider, lim limiter.Limiter, log *zap.Logger, rec metrics.Recorder) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	m := &SessionManager{
		provider: provider,
		lim:      lim,
		log:      log,
		metrics:  rec,
		ready:    make(chan struct{}),
		version:  1,
	}
	m.subs.Publish(m.session, m.version)
	m.unsubscribe = provider.OnAuthStateChanged(m.onAuthStateChanged)
	return m
}

// onAuthStateChanged is the provider callback; it is the only writer of the session slot.
func (m *SessionManager) onAuthStateChanged(p identity.Principal) {
	next := Session{State: StateUnauthenticated}
	if p != nil {
		next = Session{State: StateAuthenticated, Principal: p}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	prev := m.session
	m.session = next
	m.version++
	ver := m.version
	if prev.State == StateUnknown {
		close(m.ready)
	}
	m.mu.Unlock()

	m.log.Debug("session state",
		zap.Stringer("from", prev.State),
		zap.Stringer("to", next.State),
		zap.String("email", next.Email()),
	)
	m.subs.Publish(next, ver)
}

// Session returns the current snapshot.
func (m *SessionManager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Subscribe calls fn with the current session and then on every transition until cancel is called.
// fn never sees a state older than one it has already seen. It must not sign in or out synchronously.
func (m *SessionManager) Subscribe(fn func(Session)) (cancel func()) {
	return m.subs.Subscribe(fn)
}

// WaitReady blocks until the provider has reported a concrete state.
func (m *SessionManager) WaitReady(ctx context.Context) (Session, error) {
	select {
	case <-m.ready:
		return m.Session(), nil
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

// RequireAuth is the guard for protected operations: it waits for readiness and
// fails with errs.ErrNoSession when nobody is signed in.
func (m *SessionManager) RequireAuth(ctx context.Context) (identity.Principal, error) {
	s, err := m.WaitReady(ctx)
	if err != nil {
		return nil, err
	}
	if s.State != StateAuthenticated {
		return nil, errs.ErrNoSession
	}
	return s.Principal, nil
}

// SignIn asks the provider to authenticate. The session changes through the provider
// callback; callers must not assume it already has when SignIn returns.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) error {
	if m.isClosed() {
		return &errs.AuthenticationError{Op: "sign-in", Err: errs.ErrClosed}
	}
	if email == "" || password == "" {
		return &errs.AuthenticationError{Op: "sign-in", Err: errs.ErrInvalidCredentials}
	}

	key := limiter.NormalizeKey(email)
	if m.lim != nil {
		allowed, retry, err := m.lim.Allow(ctx, key)
		if err != nil {
			return &errs.AuthenticationError{Op: "sign-in", Err: err}
		}
		if !allowed {
			m.log.Info("sign-in throttled", zap.Duration("retry_after", retry))
			return &errs.AuthenticationError{Op: "sign-in", Err: errs.ErrRateLimited}
		}
	}

	if err := m.provider.SignInWithPassword(ctx, email, password); err != nil {
		m.metrics.RecordSignIn(false)
		if m.lim != nil && errors.Is(err, errs.ErrInvalidCredentials) {
			if blocked, _, ferr := m.lim.Failure(ctx, key); ferr == nil && blocked {
				return &errs.AuthenticationError{Op: "sign-in", Err: errs.ErrRateLimited}
			}
		}
		return &errs.AuthenticationError{Op: "sign-in", Err: err}
	}

	m.metrics.RecordSignIn(true)
	if m.lim != nil {
		// best-effort
		_ = m.lim.Success(ctx, key)
	}
	return nil
}

// SignOut revokes the local session.
func (m *SessionManager) SignOut(ctx context.Context) error {
	if m.isClosed() {
		return &errs.AuthenticationError{Op: "sign-out", Err: errs.ErrClosed}
	}
	if err := m.provider.SignOut(ctx); err != nil {
		return &errs.AuthenticationError{Op: "sign-out", Err: err}
	}
	return nil
}

// CurrentToken returns "" without I/O when nobody is signed in; otherwise a fresh bearer
// token from the provider. Tokens are never cached here.
func (m *SessionManager) CurrentToken(ctx context.Context) (string, error) {
	s := m.Session()
	if s.State != StateAuthenticated || s.Principal == nil {
		return "", nil
	}
	tok, err := s.Principal.FreshToken(ctx)
	if err != nil {
		return "", &errs.AuthenticationError{Op: "token", Err: err}
	}
	return tok, nil
}

// Close releases the provider subscription. The manager then reports Unauthenticated forever.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.session.State == StateUnknown {
		close(m.ready)
	}
	m.session = Session{State: StateUnauthenticated}
	final := m.session
	m.version++
	ver := m.version
	unsub := m.unsubscribe
	m.mu.Unlock()

	// later subscribers start from the terminal state; current ones are not told
	m.subs.Clear()
	m.subs.Publish(final, ver)

	if unsub != nil {
		unsub()
	}
}

func (m *SessionManager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
