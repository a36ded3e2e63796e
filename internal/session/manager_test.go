package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garage-backend-go/internal/models"
	"garage-backend-go/internal/state"
)

type fakeAuth struct {
	session *models.Session
	err     error
}

func (f *fakeAuth) SignInAnonymously(context.Context) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeAuth) SignInWithIdp(_ context.Context, _, _ string) (*models.Session, error) {
	return f.SignInAnonymously(context.Background())
}

type recorder struct {
	mu    sync.Mutex
	calls []*models.Session
}

func (r *recorder) watch(_ context.Context, s *models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) all() []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Session(nil), r.calls...)
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestManager_FirstNotificationIsAuthoritativeWhenSignedOut(t *testing.T) {
	m := NewManager(&fakeAuth{}, nil, WithStore(newStore(t)))
	rec := &recorder{}
	require.NoError(t, m.Watch(context.Background(), rec.watch))
	assert.Equal(t, StatusChecking, m.Status())
	assert.Empty(t, rec.all())

	require.NoError(t, m.Start(context.Background()))
	calls := rec.all()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0])
	assert.Equal(t, StatusSignedOut, m.Status())

	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
}

func TestManager_SingleWatcher(t *testing.T) {
	m := NewManager(&fakeAuth{}, nil)
	require.NoError(t, m.Watch(context.Background(), func(context.Context, *models.Session) {}))
	assert.ErrorIs(t, m.Watch(context.Background(), func(context.Context, *models.Session) {}), ErrWatcherAlreadySet)
}

func TestManager_SignInNotifiesOnceAndPersists(t *testing.T) {
	store := newStore(t)
	auth := &fakeAuth{session: &models.Session{UID: "u1", ProviderID: models.ProviderAnonymous, Anonymous: true, IDToken: "t", CreatedAt: time.Now()}}
	m := NewManager(auth, nil, WithStore(store))
	rec := &recorder{}
	require.NoError(t, m.Watch(context.Background(), rec.watch))
	require.NoError(t, m.Start(context.Background()))

	s, err := m.SignInAnonymous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UID)
	assert.Equal(t, StatusSignedIn, m.Status())

	calls := rec.all()
	require.Len(t, calls, 2)
	assert.Equal(t, "u1", calls[1].UID)

	saved, err := store.LoadSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "u1", saved.UID)

	// A restart restores the same session and reports it first.
	restarted := NewManager(auth, nil, WithStore(store))
	rec2 := &recorder{}
	require.NoError(t, restarted.Watch(context.Background(), rec2.watch))
	require.NoError(t, restarted.Start(context.Background()))
	require.Len(t, rec2.all(), 1)
	assert.Equal(t, "u1", rec2.all()[0].UID)
}

func TestManager_FailedSignInKeepsPriorSession(t *testing.T) {
	auth := &fakeAuth{session: &models.Session{UID: "u1"}}
	m := NewManager(auth, nil)
	rec := &recorder{}
	require.NoError(t, m.Watch(context.Background(), rec.watch))
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignInFederated(context.Background(), models.ProviderGoogle, "cred")
	require.NoError(t, err)

	auth.err = errors.New("popup closed")
	_, err = m.SignInFederated(context.Background(), models.ProviderGoogle, "cred")
	require.Error(t, err)

	assert.Equal(t, "u1", m.Current().UID)
	assert.Len(t, rec.all(), 2)
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifySession(context.Context, *models.Session) error {
	return errors.New("token revoked")
}

func TestManager_VerifierRejectionKeepsSignedOut(t *testing.T) {
	m := NewManager(&fakeAuth{session: &models.Session{UID: "u1"}}, nil, WithVerifier(rejectingVerifier{}))
	require.NoError(t, m.Start(context.Background()))

	_, err := m.SignInAnonymous(context.Background())
	require.Error(t, err)
	assert.Nil(t, m.Current())
	assert.Equal(t, StatusSignedOut, m.Status())
}

func TestManager_SignOutIsSynchronous(t *testing.T) {
	store := newStore(t)
	m := NewManager(&fakeAuth{session: &models.Session{UID: "u1"}}, nil, WithStore(store))
	rec := &recorder{}
	require.NoError(t, m.Watch(context.Background(), rec.watch))
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignInAnonymous(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.SignOut(context.Background()))
	calls := rec.all()
	require.Len(t, calls, 3)
	assert.Nil(t, calls[2])
	assert.Nil(t, m.Current())

	saved, err := store.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestManager_DiscardsExpiredSavedSession(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SaveSession(context.Background(), &models.Session{
		UID: "u1", ProviderID: "anonymous", IDToken: "t", ExpiresAt: time.Now().Add(-time.Hour), CreatedAt: time.Now(),
	}))

	m := NewManager(&fakeAuth{}, nil, WithStore(store))
	require.NoError(t, m.Start(context.Background()))
	assert.Nil(t, m.Current())
}

func TestManager_RefreshedUpdatesTokensWithoutNotifying(t *testing.T) {
	m := NewManager(&fakeAuth{session: &models.Session{UID: "u1", IDToken: "old"}}, nil)
	rec := &recorder{}
	require.NoError(t, m.Watch(context.Background(), rec.watch))
	require.NoError(t, m.Start(context.Background()))
	_, err := m.SignInAnonymous(context.Background())
	require.NoError(t, err)

	m.Refreshed(&models.Session{UID: "u1", IDToken: "new"})
	m.Refreshed(&models.Session{UID: "someone-else", IDToken: "evil"})

	assert.Equal(t, "new", m.Current().IDToken)
	assert.Len(t, rec.all(), 2)
}
