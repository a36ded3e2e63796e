package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"garage-backend-go/internal/auth"
	"garage-backend-go/internal/core"
	"garage-backend-go/internal/db"
	"garage-backend-go/internal/lookup"
	"garage-backend-go/internal/models"
)

// mapErrorToStatus maps errors from the session, collection and lookup
// layers to HTTP status codes and an ErrorResponse.
func mapErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse
	var incomplete *core.MoveIncompleteError

	switch {
	case errors.As(err, &incomplete):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: core.ErrMoveIncomplete.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrNoSession), errors.Is(err, db.ErrUnauthenticated):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: "Not signed in", Details: err.Error()}
	case errors.Is(err, db.ErrPermissionDenied):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.BannerPermissionDenied, Details: err.Error()}
	case errors.Is(err, core.ErrItemNotFound), errors.Is(err, db.ErrNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrItemNotFound.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrTicketNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrTicketNotFound.Error()}
	case errors.Is(err, core.ErrTicketExpired):
		statusCode = http.StatusGone
		errResponse = ErrorResponse{Error: core.ErrTicketExpired.Error()}
	case errors.Is(err, models.ErrUnknownCategory),
		errors.Is(err, models.ErrInvalidCondition),
		errors.Is(err, models.ErrInvalidPackaging),
		errors.Is(err, core.ErrEmptyUpdate),
		errors.Is(err, core.ErrSameCategory):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid request", Details: err.Error()}
	case errors.Is(err, models.ErrModelNumberNeeded):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: lookup.UserMessage(err)}
	case errors.Is(err, lookup.ErrModelNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: lookup.UserMessage(err), Details: err.Error()}
	case errors.Is(err, lookup.ErrLookupUnavailable), errors.Is(err, lookup.ErrInvalidPayload):
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: lookup.UserMessage(err), Details: err.Error()}
	case errors.Is(err, auth.ErrUnsupportedProvider):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: auth.ErrUnsupportedProvider.Error(), Details: err.Error()}
	case errors.Is(err, auth.ErrNotConfigured), errors.Is(err, core.ErrNoJournal), errors.Is(err, db.ErrNotConfigured):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Service not configured", Details: err.Error()}
	case errors.Is(err, auth.ErrSignInFailed):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: auth.ErrSignInFailed.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrMoveFailed):
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: core.ErrMoveFailed.Error(), Details: err.Error()}
	default:
		logger.Error("Internal Server Error", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	_ = c.Error(err)
	c.JSON(statusCode, errResponse)
}
