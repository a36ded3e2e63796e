package core

import (
	"errors"
	"fmt"

	"garage-backend-go/internal/models"
)

// Custom errors for the SyncController
var (
	ErrNoSession       = errors.New("no active session")
	ErrUnknownCategory = models.ErrUnknownCategory
	ErrItemNotFound    = errors.New("item not found")
	ErrEmptyUpdate     = errors.New("update has no fields for this category")
	ErrTicketNotFound  = errors.New("delete ticket not found")
	ErrTicketExpired   = errors.New("delete ticket expired")
	ErrSameCategory    = errors.New("item is already in that category")
	ErrMoveFailed      = errors.New("failed to move item")
	ErrMoveIncomplete  = errors.New("move incomplete: item exists in both categories")
	ErrNoJournal       = errors.New("move journal is not available")
)

// Banner texts shown for subscription failures.
const (
	BannerPermissionDenied = "Database Permission Denied. Check Firestore Rules."
	bannerErrorPrefix      = "Database Error: "
)

// MoveIncompleteError reports a move whose target was created but whose
// source could not be deleted. The item now exists in both categories.
type MoveIncompleteError struct {
	From     models.Category
	To       models.Category
	SourceID string
	TargetID string
	MarkerID string // journal marker to reconcile, empty without a journal
	Err      error
}

func (e *MoveIncompleteError) Error() string {
	return fmt.Sprintf("move incomplete: item '%s' was copied to %s as '%s' but could not be removed from %s: %v",
		e.SourceID, e.To, e.TargetID, e.From, e.Err)
}

func (e *MoveIncompleteError) Unwrap() error { return e.Err }

func (e *MoveIncompleteError) Is(target error) bool { return target == ErrMoveIncomplete }
