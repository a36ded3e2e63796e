package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"garage-backend-go/internal/models"
)

// MemoryStore is an in-process document store with realtime listeners. It
// enforces the same per-user access rule as the Firestore rules and loses
// everything on exit.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]map[string]map[string]interface{} // path -> id -> fields
	listeners map[string]map[*memoryStream]struct{}
	denied    map[string]bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]map[string]map[string]interface{}),
		listeners: make(map[string]map[*memoryStream]struct{}),
		denied:    make(map[string]bool),
	}
}

// ForSession returns a repository bound to session.
func (m *MemoryStore) ForSession(_ context.Context, session *models.Session) (ItemRepository, error) {
	if session == nil || session.UID == "" {
		return nil, fmt.Errorf("ForSession: %w", ErrUnauthenticated)
	}
	return &memoryRepository{store: m, uid: session.UID}, nil
}

// Deny makes every operation of uid fail with ErrPermissionDenied, the way a
// misconfigured rule set does. Active listeners receive the error.
func (m *MemoryStore) Deny(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[uid] = true
	for path, streams := range m.listeners {
		if !strings.HasPrefix(path, usersCollection+"/"+uid+"/") {
			continue
		}
		for s := range streams {
			s.fail(fmt.Errorf("listening to %s: %w", path, ErrPermissionDenied))
		}
	}
}

// Allow reverts Deny for uid.
func (m *MemoryStore) Allow(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.denied, uid)
}

// Count returns the number of documents in a collection.
func (m *MemoryStore) Count(uid string, category models.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[category.Path(uid)])
}

// snapshotLocked must be called with m.mu held.
func (m *MemoryStore) snapshotLocked(path string, category models.Category) []models.Item {
	coll := m.docs[path]
	items := make([]models.Item, 0, len(coll))
	for id, data := range coll {
		items = append(items, models.ItemFromDocument(id, category, data))
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.Before(items[j].AddedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (m *MemoryStore) broadcastLocked(path string, category models.Category) {
	streams := m.listeners[path]
	if len(streams) == 0 {
		return
	}
	items := m.snapshotLocked(path, category)
	for s := range streams {
		s.push(items)
	}
}

func newDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

type memoryRepository struct {
	store *MemoryStore
	uid   string
}

// checkLocked must be called with store.mu held.
func (r *memoryRepository) checkLocked(uid string, category models.Category) (string, error) {
	if !category.Valid() {
		return "", models.ErrUnknownCategory
	}
	if uid == "" || uid != r.uid || r.store.denied[uid] {
		return "", fmt.Errorf("access to '%s' of user '%s': %w", category.CollectionName(), uid, ErrPermissionDenied)
	}
	return category.Path(uid), nil
}

func (r *memoryRepository) Add(_ context.Context, uid string, category models.Category, item models.Item) (string, error) {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()
	path, err := r.checkLocked(uid, category)
	if err != nil {
		return "", err
	}
	item.Category = category
	id := newDocumentID()
	if m.docs[path] == nil {
		m.docs[path] = make(map[string]map[string]interface{})
	}
	m.docs[path][id] = item.Document()
	m.broadcastLocked(path, category)
	return id, nil
}

func (r *memoryRepository) Update(_ context.Context, uid string, category models.Category, id string, fields map[string]interface{}) error {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()
	path, err := r.checkLocked(uid, category)
	if err != nil {
		return err
	}
	doc, ok := m.docs[path][id]
	if !ok {
		return fmt.Errorf("failed to update item '%s' in %s: %w", id, category, ErrNotFound)
	}
	if len(fields) == 0 {
		return nil
	}
	for k, v := range fields {
		doc[k] = v
	}
	m.broadcastLocked(path, category)
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, uid string, category models.Category, id string) error {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()
	path, err := r.checkLocked(uid, category)
	if err != nil {
		return err
	}
	if _, ok := m.docs[path][id]; !ok {
		return nil
	}
	delete(m.docs[path], id)
	m.broadcastLocked(path, category)
	return nil
}

func (r *memoryRepository) Listen(ctx context.Context, uid string, category models.Category) (SnapshotStream, error) {
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &memoryStream{
		ctx:    ctx,
		store:  m,
		path:   category.Path(uid),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if _, err := r.checkLocked(uid, category); err != nil {
		// Firestore reports rule failures on the stream, not on subscribe.
		s.fail(err)
		return s, nil
	}
	if m.listeners[s.path] == nil {
		m.listeners[s.path] = make(map[*memoryStream]struct{})
	}
	m.listeners[s.path][s] = struct{}{}
	s.push(m.snapshotLocked(s.path, category))
	return s, nil
}

func (r *memoryRepository) Close() error {
	return nil
}

type memoryStream struct {
	ctx   context.Context
	store *MemoryStore
	path  string

	mu      sync.Mutex
	pending []models.Item
	ready   bool
	err     error

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *memoryStream) push(items []models.Item) {
	s.mu.Lock()
	s.pending = items
	s.ready = true
	s.mu.Unlock()
	s.wake()
}

func (s *memoryStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.wake()
}

func (s *memoryStream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the latest snapshot. Snapshots that arrive faster than they
// are read are collapsed into the newest one.
func (s *memoryStream) Next() ([]models.Item, error) {
	for {
		select {
		case <-s.done:
			return nil, ErrStreamClosed
		default:
		}

		s.mu.Lock()
		if s.ready {
			items := s.pending
			s.pending, s.ready = nil, false
			s.mu.Unlock()
			return items, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
			return nil, ErrStreamClosed
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	}
}

func (s *memoryStream) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.store.mu.Lock()
		delete(s.store.listeners[s.path], s)
		s.store.mu.Unlock()
	})
}
