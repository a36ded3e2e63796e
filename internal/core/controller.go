package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"garage-backend-go/internal/db"
	"garage-backend-go/internal/models"
)

// Phase is the controller's view of the session.
type Phase string

const (
	PhaseChecking  Phase = "checking" // no session notification received yet
	PhaseSignedOut Phase = "signed_out"
	PhaseSignedIn  Phase = "signed_in"
)

// Mirror is the local copy of one category as last reported by the store.
type Mirror struct {
	Category models.Category `json:"category"`
	Items    []models.Item   `json:"items"`
	Loading  bool            `json:"loading"`
	Error    string          `json:"error,omitempty"`
	Totals   models.Totals   `json:"totals"`
}

// State is a read-only snapshot of the controller.
type State struct {
	Phase   Phase                      `json:"phase"`
	UID     string                     `json:"uid,omitempty"`
	Version uint64                     `json:"version"`
	Mirrors map[models.Category]Mirror `json:"mirrors"`
}

type mirrorState struct {
	items   []models.Item
	byID    map[string]int
	loading bool
	banner  string
}

// SyncController keeps one realtime subscription per category while a
// session is active and mirrors what the store reports. Mirrors change only
// in response to store snapshots; mutations write through and wait for the
// echo.
type SyncController struct {
	factory   db.StoreFactory
	journal   MoveJournal
	logger    *zap.Logger
	ticketTTL time.Duration
	now       func() time.Time

	sessMu sync.Mutex // serializes HandleSession and Close

	deliverMu sync.Mutex // serializes observer fan-out
	delivered uint64

	mu        sync.RWMutex
	phase     Phase
	gen       uint64
	version   uint64
	uid       string
	repo      db.ItemRepository
	cancel    context.CancelFunc
	streams   []db.SnapshotStream
	listeners *sync.WaitGroup
	mirrors   map[models.Category]*mirrorState
	tickets   map[string]deleteTicket
	observers map[int]Observer
	nextObs   int
	changed   chan struct{}
}

// Option configures a SyncController.
type Option func(*SyncController)

// WithJournal records moves in j so interrupted ones can be reconciled.
func WithJournal(j MoveJournal) Option {
	return func(c *SyncController) { c.journal = j }
}

// WithTicketTTL sets how long a delete ticket stays valid.
func WithTicketTTL(ttl time.Duration) Option {
	return func(c *SyncController) {
		if ttl > 0 {
			c.ticketTTL = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *SyncController) { c.now = now }
}

// NewSyncController creates a controller with empty mirrors in the checking
// phase. Connect it to the session manager by passing HandleSession as the
// session watcher.
func NewSyncController(factory db.StoreFactory, logger *zap.Logger, opts ...Option) *SyncController {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &SyncController{
		factory:   factory,
		logger:    logger,
		ticketTTL: 2 * time.Minute,
		now:       time.Now,
		phase:     PhaseChecking,
		mirrors:   make(map[models.Category]*mirrorState, len(models.Categories)),
		tickets:   make(map[string]deleteTicket),
		observers: make(map[int]Observer),
		changed:   make(chan struct{}),
	}
	for _, cat := range models.Categories {
		c.mirrors[cat] = &mirrorState{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleSession reacts to an identity change: it tears the current
// subscriptions down, clears every mirror and, for a non-nil session,
// subscribes to the three categories of the new user.
func (c *SyncController) HandleSession(ctx context.Context, session *models.Session) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	// 1. Drop the previous user's subscriptions and mirrors
	c.teardown()

	// 2. Signed out: nothing to subscribe to
	if session == nil {
		c.mu.Lock()
		c.phase = PhaseSignedOut
		c.changedLocked()
		c.mu.Unlock()
		c.notify()
		return
	}

	// 3. Open the store for the new user; on failure every category shows the banner
	log := c.logger.With(zap.String("uid", session.UID))
	repo, err := c.factory.ForSession(ctx, session)
	if err != nil {
		log.Error("Opening store for session failed", zap.Error(err))
		c.mu.Lock()
		c.phase = PhaseSignedIn
		c.uid = session.UID
		for _, m := range c.mirrors {
			m.loading = false
			m.banner = bannerFor(err)
		}
		c.changedLocked()
		c.mu.Unlock()
		c.notify()
		return
	}

	// 4. Mark every category loading.
	// Listeners outlive the call that delivered the session.
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	wg := &sync.WaitGroup{}

	c.mu.Lock()
	c.phase = PhaseSignedIn
	c.uid = session.UID
	c.repo = repo
	c.cancel = cancel
	c.listeners = wg
	gen := c.gen
	for _, m := range c.mirrors {
		m.loading = true
	}
	c.changedLocked()
	c.mu.Unlock()
	c.notify()

	// 5. One realtime listener per category
	for _, cat := range models.Categories {
		stream, err := repo.Listen(listenCtx, session.UID, cat)
		if err != nil {
			c.applyError(gen, cat, err)
			continue
		}
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			stream.Stop()
			continue
		}
		c.streams = append(c.streams, stream)
		c.mu.Unlock()

		wg.Add(1)
		go c.listen(listenCtx, wg, gen, cat, stream)
	}
	log.Info("Subscribed to categories", zap.Int("count", len(models.Categories)))
}

// teardown must be called with sessMu held. It invalidates the current
// generation before stopping anything, so a snapshot already in flight is
// discarded rather than applied to the cleared mirrors.
func (c *SyncController) teardown() {
	c.mu.Lock()
	c.gen++
	cancel, streams, wg, repo := c.cancel, c.streams, c.listeners, c.repo
	c.cancel, c.streams, c.listeners, c.repo = nil, nil, nil, nil
	c.uid = ""
	for _, m := range c.mirrors {
		*m = mirrorState{}
	}
	c.tickets = make(map[string]deleteTicket)
	c.changedLocked()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, s := range streams {
		s.Stop()
	}
	if wg != nil {
		wg.Wait()
	}
	if repo != nil {
		if err := repo.Close(); err != nil {
			c.logger.Warn("Closing store repository", zap.Error(err))
		}
	}
	c.notify()
}

func (c *SyncController) listen(ctx context.Context, wg *sync.WaitGroup, gen uint64, cat models.Category, stream db.SnapshotStream) {
	defer wg.Done()
	for {
		items, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, db.ErrStreamClosed) {
				return
			}
			c.applyError(gen, cat, err)
			return
		}
		c.applySnapshot(gen, cat, items)
	}
}

func (c *SyncController) applySnapshot(gen uint64, cat models.Category, items []models.Item) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("Dropping snapshot from a previous session", zap.String("category", cat.String()))
		return
	}
	m := c.mirrors[cat]
	m.items = items
	m.byID = make(map[string]int, len(items))
	for i, it := range items {
		m.byID[it.ID] = i
	}
	m.loading = false
	m.banner = ""
	c.changedLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *SyncController) applyError(gen uint64, cat models.Category, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	m := c.mirrors[cat]
	m.loading = false
	m.banner = bannerFor(err)
	c.changedLocked()
	c.mu.Unlock()

	c.logger.Error("Firestore subscription failed", zap.String("category", cat.String()), zap.Error(err))
	c.notify()
}

func bannerFor(err error) string {
	if errors.Is(err, db.ErrPermissionDenied) {
		return BannerPermissionDenied
	}
	return bannerErrorPrefix + err.Error()
}

// changedLocked must be called with mu held. It bumps the version and wakes
// WaitLoaded callers. Call notify once mu is released.
func (c *SyncController) changedLocked() {
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
}

// notify hands the current state to every observer. Deliveries are
// serialized and never go backwards: a state older than one already
// delivered is dropped.
func (c *SyncController) notify() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	st := c.State()
	if st.Version <= c.delivered {
		return
	}
	c.delivered = st.Version

	c.mu.RLock()
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.RUnlock()

	for _, o := range observers {
		o(st)
	}
}

// Observe registers fn for state changes and returns a function removing it.
func (c *SyncController) Observe(fn Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// State returns a copy of every mirror.
func (c *SyncController) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := State{
		Phase:   c.phase,
		UID:     c.uid,
		Version: c.version,
		Mirrors: make(map[models.Category]Mirror, len(c.mirrors)),
	}
	for cat, m := range c.mirrors {
		items := make([]models.Item, len(m.items))
		copy(items, m.items)
		st.Mirrors[cat] = Mirror{
			Category: cat,
			Items:    items,
			Loading:  m.loading,
			Error:    m.banner,
			Totals:   models.Summarize(items),
		}
	}
	return st
}

// Mirror returns the copy of one category.
func (c *SyncController) Mirror(cat models.Category) (Mirror, error) {
	if !cat.Valid() {
		return Mirror{}, ErrUnknownCategory
	}
	return c.State().Mirrors[cat], nil
}

// Item returns the mirrored record id of cat.
func (c *SyncController) Item(cat models.Category, id string) (models.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.mirrors[cat]
	if !ok || m.byID == nil {
		return models.Item{}, false
	}
	i, ok := m.byID[id]
	if !ok {
		return models.Item{}, false
	}
	return m.items[i], true
}

// WaitLoaded blocks until the session is known and no category is loading.
func (c *SyncController) WaitLoaded(ctx context.Context) error {
	for {
		c.mu.RLock()
		done := c.phase != PhaseChecking
		for _, m := range c.mirrors {
			if m.loading {
				done = false
			}
		}
		changed := c.changed
		c.mu.RUnlock()
		if done {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// active returns the repository of the current session.
func (c *SyncController) active() (db.ItemRepository, string, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.repo == nil || c.uid == "" {
		return nil, "", 0, ErrNoSession
	}
	return c.repo, c.uid, c.gen, nil
}

// Close tears the subscriptions down. The controller can be reused by a
// later HandleSession.
func (c *SyncController) Close() {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	c.teardown()
}
