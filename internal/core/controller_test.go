package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garage-backend-go/internal/db"
	"garage-backend-go/internal/models"
)

func TestHandleSession_SubscribesAllCategoriesForTheUser(t *testing.T) {
	r := newRig(t)
	assert.Equal(t, PhaseChecking, r.ctrl.State().Phase)

	r.signIn(t, "u1")

	st := r.ctrl.State()
	assert.Equal(t, PhaseSignedIn, st.Phase)
	assert.Equal(t, "u1", st.UID)
	assert.ElementsMatch(t, []string{"u1/owned", "u1/wanted", "u1/preorder"}, r.factory.last().listenCalls())
	for _, cat := range models.Categories {
		assert.False(t, st.Mirrors[cat].Loading, cat)
		assert.Empty(t, st.Mirrors[cat].Error, cat)
	}
}

func TestHandleSession_FirstNilNotificationIsAuthoritative(t *testing.T) {
	r := newRig(t)
	r.ctrl.HandleSession(context.Background(), nil)

	assert.Equal(t, PhaseSignedOut, r.ctrl.State().Phase)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.ctrl.WaitLoaded(ctx))
}

func TestHandleSession_SignOutClearsMirrors(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	r.create(t, models.CategoryOwned, models.CreateItemRequest{ModelNumber: "844"})

	r.ctrl.HandleSession(context.Background(), nil)
	st := r.ctrl.State()
	assert.Equal(t, PhaseSignedOut, st.Phase)
	assert.Empty(t, st.UID)
	for _, cat := range models.Categories {
		assert.Empty(t, st.Mirrors[cat].Items, cat)
	}

	_, err := r.ctrl.Create(context.Background(), models.CategoryOwned, models.CreateItemRequest{ModelNumber: "1"})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestHandleSession_SwitchingUsersResubscribes(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	r.create(t, models.CategoryWanted, models.CreateItemRequest{ModelNumber: "1"})

	r.signIn(t, "u2")
	st := r.ctrl.State()
	assert.Equal(t, "u2", st.UID)
	assert.Empty(t, st.Mirrors[models.CategoryWanted].Items)
	assert.ElementsMatch(t, []string{"u2/owned", "u2/wanted", "u2/preorder"}, r.factory.last().listenCalls())
}

// lateStream delivers one snapshot right as it is stopped, the way a
// snapshot already in flight arrives after unsubscribe.
type lateStream struct {
	late      []models.Item
	stopped   chan struct{}
	once      sync.Once
	initial   bool
	lateSent  bool
	delivered *int32
}

func (s *lateStream) Next() ([]models.Item, error) {
	if !s.initial {
		s.initial = true
		return []models.Item{}, nil
	}
	<-s.stopped
	if !s.lateSent {
		s.lateSent = true
		atomic.AddInt32(s.delivered, 1)
		return s.late, nil
	}
	return nil, db.ErrStreamClosed
}

func (s *lateStream) Stop() { s.once.Do(func() { close(s.stopped) }) }

type lateRepo struct {
	db.ItemRepository
	delivered int32
}

func (r *lateRepo) Listen(_ context.Context, _ string, category models.Category) (db.SnapshotStream, error) {
	return &lateStream{
		late:      []models.Item{{ID: "stale", Category: category, ModelNumber: "999"}},
		stopped:   make(chan struct{}),
		delivered: &r.delivered,
	}, nil
}

func (r *lateRepo) Close() error { return nil }

type lateFactory struct{ repo *lateRepo }

func (f lateFactory) ForSession(context.Context, *models.Session) (db.ItemRepository, error) {
	return f.repo, nil
}

func TestHandleSession_LateSnapshotAfterSignOutIsDropped(t *testing.T) {
	repo := &lateRepo{}
	ctrl := NewSyncController(lateFactory{repo: repo}, nil)
	ctrl.HandleSession(context.Background(), &models.Session{UID: "u1"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ctrl.WaitLoaded(ctx))

	ctrl.HandleSession(context.Background(), nil)

	assert.Equal(t, int32(len(models.Categories)), atomic.LoadInt32(&repo.delivered))
	for _, cat := range models.Categories {
		assert.Empty(t, ctrl.State().Mirrors[cat].Items, cat)
	}
}

func TestCreate_CoercesNumericInput(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")

	r.create(t, models.CategoryOwned, models.CreateItemRequest{ModelNumber: "1", PurchasePrice: "150.5", CurrentValue: "abc", UseSameValue: false})
	r.create(t, models.CategoryOwned, models.CreateItemRequest{ModelNumber: "2", PurchasePrice: "", CurrentValue: "-3", UseSameValue: false})

	byModel := map[string]models.Item{}
	for _, it := range r.ctrl.State().Mirrors[models.CategoryOwned].Items {
		byModel[it.ModelNumber] = it
	}
	assert.Equal(t, 150.5, byModel["1"].PurchasePrice)
	assert.Equal(t, 0.0, byModel["1"].CurrentValue)
	assert.Equal(t, 0.0, byModel["2"].PurchasePrice)
	assert.Equal(t, 0.0, byModel["2"].CurrentValue)
	assert.Equal(t, 150.5, r.ctrl.State().Mirrors[models.CategoryOwned].Totals.PurchaseCost)
}

func TestCreate_DoesNotInsertOptimistically(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	r.store.Deny("u1")

	_, err := r.ctrl.Create(context.Background(), models.CategoryWanted, models.CreateItemRequest{ModelNumber: "1"})
	assert.ErrorIs(t, err, db.ErrPermissionDenied)
	assert.Empty(t, r.ctrl.State().Mirrors[models.CategoryWanted].Items)
}

func TestSubscription_PermissionDeniedBanner(t *testing.T) {
	r := newRig(t)
	r.store.Deny("u1")
	r.signIn(t, "u1")

	for _, cat := range models.Categories {
		m := r.ctrl.State().Mirrors[cat]
		assert.Equal(t, BannerPermissionDenied, m.Error, cat)
		assert.False(t, m.Loading, cat)
		assert.Empty(t, m.Items, cat)
	}
}

func TestSubscription_ErrorKeepsMirror(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	r.create(t, models.CategoryOwned, models.CreateItemRequest{ModelNumber: "844"})

	r.store.Deny("u1")
	require.Eventually(t, func() bool {
		return r.ctrl.State().Mirrors[models.CategoryOwned].Error == BannerPermissionDenied
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, r.ctrl.State().Mirrors[models.CategoryOwned].Items, 1)
}

func TestBannerForGenericError(t *testing.T) {
	assert.Equal(t, "Database Error: quota exceeded", bannerFor(errors.New("quota exceeded")))
}

func TestUpdate_IsIdempotentAndPartial(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	id := r.create(t, models.CategoryOwned, models.CreateItemRequest{ModelNumber: "844", ModelName: "Honda NSX", PurchasePrice: "20", UseSameValue: true})

	value := models.AmountInput("35")
	notes := "shelf 2"
	req := models.UpdateItemRequest{CurrentValue: &value, Notes: &notes}

	require.NoError(t, r.ctrl.Update(context.Background(), models.CategoryOwned, id, req))
	require.Eventually(t, func() bool {
		it, ok := r.ctrl.Item(models.CategoryOwned, id)
		return ok && it.Notes == "shelf 2"
	}, 2*time.Second, 5*time.Millisecond)
	once, _ := r.ctrl.Item(models.CategoryOwned, id)

	require.NoError(t, r.ctrl.Update(context.Background(), models.CategoryOwned, id, req))
	twice, _ := r.ctrl.Item(models.CategoryOwned, id)
	assert.Equal(t, once, twice)
	assert.Equal(t, 35.0, twice.CurrentValue)
	assert.Equal(t, 20.0, twice.PurchasePrice)
	assert.Equal(t, "Honda NSX", twice.ModelName)
}

func TestUpdate_Errors(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")

	notes := "x"
	err := r.ctrl.Update(context.Background(), models.CategoryWanted, "missing", models.UpdateItemRequest{Notes: &notes})
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, err, db.ErrNotFound)

	eta := "May"
	err = r.ctrl.Update(context.Background(), models.CategoryWanted, "any", models.UpdateItemRequest{ETAMonth: &eta})
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestDelete_DeclinedIssuesNoCall(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	id := r.create(t, models.CategoryOwned, models.CreateItemRequest{ModelNumber: "844"})

	ticket, err := r.ctrl.RequestDelete(context.Background(), models.CategoryOwned, id)
	require.NoError(t, err)
	assert.Equal(t, "Delete this model?", ticket.Prompt)

	deleted, err := r.ctrl.ConfirmDelete(context.Background(), ticket.ID, false)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 0, r.factory.last().deleteCount())
	_, ok := r.ctrl.Item(models.CategoryOwned, id)
	assert.True(t, ok)

	_, err = r.ctrl.ConfirmDelete(context.Background(), ticket.ID, true)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestDelete_ConfirmedRemovesRecord(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	id := r.create(t, models.CategoryPreorder, models.CreateItemRequest{ModelNumber: "7"})

	ticket, err := r.ctrl.RequestDelete(context.Background(), models.CategoryPreorder, id)
	require.NoError(t, err)
	assert.Equal(t, "Cancel this pre-order?", ticket.Prompt)

	deleted, err := r.ctrl.ConfirmDelete(context.Background(), ticket.ID, true)
	require.NoError(t, err)
	assert.True(t, deleted)
	r.waitItems(t, models.CategoryPreorder, 0)
}

func TestDelete_TicketExpiresAndDiesWithSession(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	r := newRig(t, WithClock(clock), WithTicketTTL(time.Minute))
	r.signIn(t, "u1")
	id := r.create(t, models.CategoryWanted, models.CreateItemRequest{ModelNumber: "1"})

	ticket, err := r.ctrl.RequestDelete(context.Background(), models.CategoryWanted, id)
	require.NoError(t, err)
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	_, err = r.ctrl.ConfirmDelete(context.Background(), ticket.ID, true)
	assert.ErrorIs(t, err, ErrTicketExpired)

	ticket, err = r.ctrl.RequestDelete(context.Background(), models.CategoryWanted, id)
	require.NoError(t, err)
	r.signIn(t, "u1")
	_, err = r.ctrl.ConfirmDelete(context.Background(), ticket.ID, true)
	assert.ErrorIs(t, err, ErrTicketNotFound)
	assert.Equal(t, 0, r.factory.last().deleteCount())
}

func TestRequestDelete_UnknownItem(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")
	_, err := r.ctrl.RequestDelete(context.Background(), models.CategoryOwned, "nope")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestObserve(t *testing.T) {
	r := newRig(t)
	var calls int32
	stop := r.ctrl.Observe(func(State) { atomic.AddInt32(&calls, 1) })
	r.signIn(t, "u1")
	assert.Greater(t, atomic.LoadInt32(&calls), int32(0))

	stop()
	before := atomic.LoadInt32(&calls)
	r.ctrl.HandleSession(context.Background(), nil)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestObserve_LastDeliveryIsLatestState(t *testing.T) {
	r := newRig(t)
	r.signIn(t, "u1")

	var (
		mu      sync.Mutex
		last    State
		stalled int32
	)
	stopLast := r.ctrl.Observe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		if st.Version < last.Version {
			t.Errorf("delivered version %d after %d", st.Version, last.Version)
		}
		last = st
	})
	defer stopLast()

	// A slow observer writes to another category while it holds the first
	// owned-only state, so a newer snapshot arrives mid-delivery.
	stopSlow := r.ctrl.Observe(func(st State) {
		if len(st.Mirrors[models.CategoryOwned].Items) != 1 || !atomic.CompareAndSwapInt32(&stalled, 0, 1) {
			return
		}
		go func() {
			_, _ = r.ctrl.Create(context.Background(), models.CategoryWanted, models.CreateItemRequest{ModelNumber: "77"})
		}()
		time.Sleep(50 * time.Millisecond)
	})
	defer stopSlow()

	r.create(t, models.CategoryOwned, models.CreateItemRequest{ModelNumber: "844"})
	r.waitItems(t, models.CategoryWanted, 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Version == r.ctrl.State().Version
	}, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, last.Mirrors[models.CategoryWanted].Items, 1)
	assert.Len(t, last.Mirrors[models.CategoryOwned].Items, 1)
}
