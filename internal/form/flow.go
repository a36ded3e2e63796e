package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"garage-backend-go/internal/lookup"
	"garage-backend-go/internal/models"
)

// Status is the step of the add flow.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusFound     Status = "found"
	StatusSaving    Status = "saving"
)

var (
	// ErrBusy is returned while a lookup or save is in flight.
	ErrBusy = errors.New("add flow is busy")
	// ErrNothingFound is returned by Save before a successful lookup.
	ErrNothingFound = errors.New("look a model up before saving")
)

// Fetcher looks model metadata up.
type Fetcher interface {
	Fetch(ctx context.Context, modelNumber string) (*models.ModelMetadata, error)
}

// Saver persists a new item.
type Saver interface {
	Create(ctx context.Context, category models.Category, req models.CreateItemRequest) (string, error)
}

// State is a read-only view of the flow.
type State struct {
	Status      Status                `json:"status"`
	ModelNumber string                `json:"modelNumber"`
	Found       *models.ModelMetadata `json:"found,omitempty"`
	Owned       OwnedForm             `json:"owned"`
	Preorder    PreorderForm          `json:"preorder"`
	Error       string                `json:"error,omitempty"`
}

// AddFlow drives the lookup-then-save sequence of adding a model. Every step
// ends back in a settled status, success or not.
type AddFlow struct {
	fetcher Fetcher
	saver   Saver
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// NewAddFlow creates an idle flow.
func NewAddFlow(fetcher Fetcher, saver Saver, logger *zap.Logger) *AddFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &AddFlow{fetcher: fetcher, saver: saver, logger: logger, now: time.Now}
	f.resetLocked()
	return f
}

func (f *AddFlow) resetLocked() {
	f.state = State{
		Status:   StatusIdle,
		Owned:    NewOwnedForm(),
		Preorder: NewPreorderForm(f.now()),
	}
}

// State returns a copy of the flow.
func (f *AddFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	if s.Found != nil {
		found := *s.Found
		s.Found = &found
	}
	return s
}

// EditOwned applies fn to the owned form.
func (f *AddFlow) EditOwned(fn func(*OwnedForm)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.state.Owned)
}

// EditPreorder applies fn to the pre-order form.
func (f *AddFlow) EditPreorder(fn func(*PreorderForm) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&f.state.Preorder)
}

// Lookup searches for modelNumber. A failure returns the flow to idle with a
// user-facing message.
func (f *AddFlow) Lookup(ctx context.Context, modelNumber string) (*models.ModelMetadata, error) {
	f.mu.Lock()
	if f.state.Status == StatusSearching || f.state.Status == StatusSaving {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	f.state.Status = StatusSearching
	f.state.ModelNumber = modelNumber
	f.state.Found = nil
	f.state.Error = ""
	f.mu.Unlock()

	md, err := f.fetcher.Fetch(ctx, modelNumber)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Warn("Lookup failed", zap.String("model", modelNumber), zap.Error(err))
		f.state.Status = StatusIdle
		f.state.Error = lookup.UserMessage(err)
		return nil, err
	}
	f.state.Status = StatusFound
	found := *md
	f.state.Found = &found
	return md, nil
}

// Save writes the looked-up model into category. Success resets the flow;
// failure keeps the inputs so the user can retry.
func (f *AddFlow) Save(ctx context.Context, category models.Category) (string, error) {
	f.mu.Lock()
	if f.state.Status == StatusSearching || f.state.Status == StatusSaving {
		f.mu.Unlock()
		return "", ErrBusy
	}
	if f.state.Found == nil {
		f.mu.Unlock()
		return "", ErrNothingFound
	}
	var req models.CreateItemRequest
	if category == models.CategoryPreorder {
		req = f.state.Preorder.Request(*f.state.Found)
	} else {
		req = f.state.Owned.Request(*f.state.Found)
	}
	f.state.Status = StatusSaving
	f.state.Error = ""
	f.mu.Unlock()

	id, err := f.saver.Create(ctx, category, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Error("Save failed", zap.String("category", category.String()), zap.Error(err))
		f.state.Status = StatusIdle
		f.state.Error = "Save Failed: " + err.Error()
		return "", err
	}
	f.resetLocked()
	return id, nil
}
