package core

import (
	"context"

	"garage-backend-go/internal/models"
	"garage-backend-go/internal/state"
)

// MoveJournal records in-flight moves. *state.Journal implements it.
type MoveJournal interface {
	Begin(ctx context.Context, uid string, from, to models.Category, sourceID string) (*state.Move, error)
	MarkCreated(ctx context.Context, id, targetID string) error
	MarkFailed(ctx context.Context, id string, cause error) error
	Complete(ctx context.Context, id string) error
	Abort(ctx context.Context, id string) error
	List(ctx context.Context, uid string) ([]state.Move, error)
}

// Observer is called after every change of the controller state. Calls are
// made one at a time, with increasing State.Version, on the goroutine that
// applied the change. An observer must not block and must not call
// HandleSession or Close.
type Observer func(State)
