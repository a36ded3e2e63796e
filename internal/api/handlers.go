package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"garage-backend-go/internal/core"
	"garage-backend-go/internal/models"
	"garage-backend-go/internal/session"
	"garage-backend-go/internal/state"
)

// SessionService is what the session endpoints need from session.Manager.
type SessionService interface {
	Current() *models.Session
	Status() session.Status
	SignInAnonymous(ctx context.Context) (*models.Session, error)
	SignInFederated(ctx context.Context, providerID, idToken string) (*models.Session, error)
	SignOut(ctx context.Context) error
}

// CollectionService is what the collection endpoints need from
// core.SyncController.
type CollectionService interface {
	State() core.State
	Mirror(cat models.Category) (core.Mirror, error)
	WaitLoaded(ctx context.Context) error
	Observe(fn core.Observer) func()

	Create(ctx context.Context, category models.Category, req models.CreateItemRequest) (string, error)
	Update(ctx context.Context, category models.Category, id string, req models.UpdateItemRequest) error
	RequestDelete(ctx context.Context, category models.Category, id string) (*core.DeleteTicket, error)
	ConfirmDelete(ctx context.Context, ticketID string, confirmed bool) (bool, error)
	Move(ctx context.Context, from models.Category, id string, to models.Category, opts core.MoveOptions) (*core.MoveResult, error)
	PendingMoves(ctx context.Context) ([]state.Move, error)
	Reconcile(ctx context.Context) (*core.ReconcileReport, error)
}

// ModelLookup fetches model metadata.
type ModelLookup interface {
	Fetch(ctx context.Context, modelNumber string) (*models.ModelMetadata, error)
}

// loadWait bounds how long a read waits for the first snapshots.
const loadWait = 2 * time.Second

// categoryParam parses the :category path parameter, answering 404 for an
// unknown one.
func categoryParam(c *gin.Context) (models.Category, bool) {
	cat, err := models.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Unknown category", Details: err.Error()})
		return "", false
	}
	return cat, true
}

// waitLoaded gives the subscriptions a moment to deliver before a read. A
// read that times out returns the mirrors still loading.
func waitLoaded(c *gin.Context, svc CollectionService) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), loadWait)
	defer cancel()
	_ = svc.WaitLoaded(ctx)
}
