package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"garage-backend-go/internal/models"
)

// Status is what the manager knows about the session.
type Status string

const (
	StatusChecking  Status = "checking" // saved session not yet restored
	StatusSignedOut Status = "signed_out"
	StatusSignedIn  Status = "signed_in"
)

var (
	// ErrWatcherAlreadySet is returned by a second call to Watch.
	ErrWatcherAlreadySet = errors.New("session watcher already registered")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session manager already started")
)

// Authenticator performs the two sign-in flows.
type Authenticator interface {
	SignInAnonymously(ctx context.Context) (*models.Session, error)
	SignInWithIdp(ctx context.Context, providerID, idToken string) (*models.Session, error)
}

// Verifier checks a freshly issued session before it is accepted.
type Verifier interface {
	VerifySession(ctx context.Context, session *models.Session) error
}

// Store persists the session between runs.
type Store interface {
	SaveSession(ctx context.Context, session *models.Session) error
	LoadSession(ctx context.Context) (*models.Session, error)
	ClearSession(ctx context.Context) error
}

// WatchFunc receives every identity change. A nil session means signed out.
type WatchFunc func(ctx context.Context, session *models.Session)

// Manager owns the current session. It is the only writer of it; readers get
// copies.
type Manager struct {
	auth     Authenticator
	store    Store
	verifier Verifier
	logger   *zap.Logger
	now      func() time.Time

	opMu sync.Mutex // serializes Start, sign-in and sign-out

	mu      sync.RWMutex
	current *models.Session
	status  Status
	watcher WatchFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithVerifier makes sign-in and restore verify the session first.
func WithVerifier(v Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// WithStore persists sessions in s.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// NewManager creates a manager in the checking state.
func NewManager(auth Authenticator, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{auth: auth, logger: logger, now: time.Now, status: StatusChecking}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Watch registers the single watcher. When the manager has already started
// the watcher is called at once with the current state, so its first
// notification is always authoritative.
func (m *Manager) Watch(ctx context.Context, fn WatchFunc) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.watcher != nil {
		m.mu.Unlock()
		return ErrWatcherAlreadySet
	}
	m.watcher = fn
	started := m.status != StatusChecking
	current := m.copyLocked()
	m.mu.Unlock()

	if started {
		fn(ctx, current)
	}
	return nil
}

// Start restores the saved session, if any, and emits the first notification.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	started := m.status != StatusChecking
	m.mu.RUnlock()
	if started {
		return ErrAlreadyStarted
	}

	restored := m.restore(ctx)
	m.set(ctx, restored)
	if restored != nil {
		m.logger.Info("Session restored", zap.String("uid", restored.UID), zap.String("provider", restored.ProviderID))
	}
	return nil
}

func (m *Manager) restore(ctx context.Context) *models.Session {
	if m.store == nil {
		return nil
	}
	saved, err := m.store.LoadSession(ctx)
	if err != nil {
		m.logger.Warn("Could not load saved session", zap.Error(err))
		return nil
	}
	if saved == nil {
		return nil
	}

	discard := ""
	switch {
	case saved.UID == "":
		discard = "saved session has no user id"
	case saved.Expired(m.now()) && saved.RefreshToken == "":
		discard = "saved session expired"
	case m.verifier != nil && !saved.Expired(m.now()):
		if err := m.verifier.VerifySession(ctx, saved); err != nil {
			discard = err.Error()
		}
	}
	if discard != "" {
		m.logger.Info("Discarding saved session", zap.String("reason", discard))
		if err := m.store.ClearSession(ctx); err != nil {
			m.logger.Warn("Could not clear saved session", zap.Error(err))
		}
		return nil
	}
	return saved
}

// SignInAnonymous signs in as a guest. On failure the prior session is kept.
func (m *Manager) SignInAnonymous(ctx context.Context) (*models.Session, error) {
	return m.signIn(ctx, "anonymous", func() (*models.Session, error) {
		return m.auth.SignInAnonymously(ctx)
	})
}

// SignInFederated signs in with a credential from a federated provider. On
// failure the prior session is kept.
func (m *Manager) SignInFederated(ctx context.Context, providerID, idToken string) (*models.Session, error) {
	return m.signIn(ctx, "federated", func() (*models.Session, error) {
		return m.auth.SignInWithIdp(ctx, providerID, idToken)
	})
}

func (m *Manager) signIn(ctx context.Context, method string, do func() (*models.Session, error)) (*models.Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	s, err := do()
	if err != nil {
		m.logger.Warn("Sign-in failed", zap.String("method", method), zap.Error(err))
		return nil, err
	}
	if m.verifier != nil {
		if err := m.verifier.VerifySession(ctx, s); err != nil {
			m.logger.Warn("Sign-in verification failed", zap.String("method", method), zap.Error(err))
			return nil, fmt.Errorf("verifying session: %w", err)
		}
	}
	if m.store != nil {
		if err := m.store.SaveSession(ctx, s); err != nil {
			m.logger.Warn("Could not persist session", zap.String("uid", s.UID), zap.Error(err))
		}
	}

	m.set(ctx, s)
	m.logger.Info("Signed in", zap.String("method", method), zap.String("uid", s.UID))
	return copySession(s), nil
}

// SignOut clears the session. When it returns the watcher has been told and
// no session data is readable any more.
func (m *Manager) SignOut(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.store != nil {
		if err := m.store.ClearSession(ctx); err != nil {
			m.logger.Warn("Could not clear saved session", zap.Error(err))
		}
	}
	m.set(ctx, nil)
	m.logger.Info("Signed out")
	return nil
}

// Refreshed records new tokens for the signed-in user. The identity does not
// change, so the watcher is not notified.
func (m *Manager) Refreshed(s *models.Session) {
	m.mu.Lock()
	if m.current == nil || s == nil || m.current.UID != s.UID {
		m.mu.Unlock()
		return
	}
	m.current.IDToken = s.IDToken
	m.current.RefreshToken = s.RefreshToken
	m.current.ExpiresAt = s.ExpiresAt
	saved := m.copyLocked()
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveSession(context.Background(), saved); err != nil {
			m.logger.Warn("Could not persist refreshed session", zap.String("uid", saved.UID), zap.Error(err))
		}
	}
}

// Current returns a copy of the session, or nil when signed out.
func (m *Manager) Current() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// set must be called with opMu held.
func (m *Manager) set(ctx context.Context, s *models.Session) {
	m.mu.Lock()
	m.current = copySession(s)
	if s == nil {
		m.status = StatusSignedOut
	} else {
		m.status = StatusSignedIn
	}
	watcher := m.watcher
	current := m.copyLocked()
	m.mu.Unlock()

	if watcher != nil {
		watcher(ctx, current)
	}
}

func (m *Manager) copyLocked() *models.Session {
	return copySession(m.current)
}

func copySession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
