package api

import (
	"garage-backend-go/internal/core"
	"garage-backend-go/internal/models"
	"garage-backend-go/internal/session"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // Message shown to the user
	Details string `json:"details,omitempty"` // Underlying cause, if any
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SessionResponse answers the session endpoints.
type SessionResponse struct {
	Status  session.Status  `json:"status"`
	Session *models.Session `json:"session,omitempty"`
}

// CreatedResponse answers a create; the record shows up in the collection
// once the store echoes it.
type CreatedResponse struct {
	ID       string          `json:"id"`
	Category models.Category `json:"category"`
}

// DeleteResponse answers a confirmed or declined delete ticket.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// MoveResponse answers a move. Incomplete moves carry the journal marker
// to reconcile.
type MoveResponse struct {
	core.MoveResult
	Incomplete bool   `json:"incomplete,omitempty"`
	MarkerID   string `json:"markerId,omitempty"`
}

// MovePromptResponse is returned by the move endpoint for a dry run.
type MovePromptResponse struct {
	Prompt string `json:"prompt"`
}
