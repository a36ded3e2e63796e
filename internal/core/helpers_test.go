package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"garage-backend-go/internal/db"
	"garage-backend-go/internal/models"
	"garage-backend-go/internal/state"
)

// spyRepo wraps a repository, recording calls and optionally failing deletes.
type spyRepo struct {
	db.ItemRepository

	mu         sync.Mutex
	listens    []string
	deletes    int
	failDelete error
}

func (s *spyRepo) Listen(ctx context.Context, uid string, category models.Category) (db.SnapshotStream, error) {
	s.mu.Lock()
	s.listens = append(s.listens, uid+"/"+category.String())
	s.mu.Unlock()
	return s.ItemRepository.Listen(ctx, uid, category)
}

func (s *spyRepo) Delete(ctx context.Context, uid string, category models.Category, id string) error {
	s.mu.Lock()
	s.deletes++
	fail := s.failDelete
	s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return s.ItemRepository.Delete(ctx, uid, category, id)
}

func (s *spyRepo) setFailDelete(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = err
}

func (s *spyRepo) deleteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *spyRepo) listenCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.listens...)
}

type spyFactory struct {
	store *db.MemoryStore

	mu    sync.Mutex
	repos []*spyRepo
}

func (f *spyFactory) ForSession(ctx context.Context, session *models.Session) (db.ItemRepository, error) {
	inner, err := f.store.ForSession(ctx, session)
	if err != nil {
		return nil, err
	}
	r := &spyRepo{ItemRepository: inner}
	f.mu.Lock()
	f.repos = append(f.repos, r)
	f.mu.Unlock()
	return r, nil
}

func (f *spyFactory) last() *spyRepo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[len(f.repos)-1]
}

type rig struct {
	ctrl    *SyncController
	store   *db.MemoryStore
	factory *spyFactory
	journal *state.Journal
}

func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	st, err := state.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	store := db.NewMemoryStore()
	factory := &spyFactory{store: store}
	journal := st.Journal()
	ctrl := NewSyncController(factory, nil, append([]Option{WithJournal(journal)}, opts...)...)
	t.Cleanup(ctrl.Close)
	return &rig{ctrl: ctrl, store: store, factory: factory, journal: journal}
}

func (r *rig) signIn(t *testing.T, uid string) {
	t.Helper()
	r.ctrl.HandleSession(context.Background(), &models.Session{UID: uid})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.ctrl.WaitLoaded(ctx))
}

// waitItems waits until category mirrors exactly n items and returns them.
func (r *rig) waitItems(t *testing.T, category models.Category, n int) []models.Item {
	t.Helper()
	var items []models.Item
	require.Eventually(t, func() bool {
		items = r.ctrl.State().Mirrors[category].Items
		return len(items) == n
	}, 2*time.Second, 5*time.Millisecond)
	return items
}

func (r *rig) create(t *testing.T, category models.Category, req models.CreateItemRequest) string {
	t.Helper()
	before := len(r.ctrl.State().Mirrors[category].Items)
	id, err := r.ctrl.Create(context.Background(), category, req)
	require.NoError(t, err)
	r.waitItems(t, category, before+1)
	return id
}

func ptr(v float64) *float64 { return &v }
