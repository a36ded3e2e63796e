package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"garage-backend-go/internal/core"
	"garage-backend-go/internal/models"
)

// CollectionHandler handles the endpoints of the three item lists.
type CollectionHandler struct {
	sync   CollectionService
	logger *zap.Logger
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(sync CollectionService, logger *zap.Logger) *CollectionHandler {
	return &CollectionHandler{sync: sync, logger: logger}
}

// ListAll handles GET /collections
func (h *CollectionHandler) ListAll(c *gin.Context) {
	waitLoaded(c, h.sync)
	c.JSON(http.StatusOK, h.sync.State())
}

// List handles GET /collections/:category
func (h *CollectionHandler) List(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	waitLoaded(c, h.sync)
	m, err := h.sync.Mirror(cat)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Create handles POST /collections/:category
func (h *CollectionHandler) Create(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	var req models.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	id, err := h.sync.Create(c.Request.Context(), cat, req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: id, Category: cat})
}

// Update handles PATCH /collections/:category/:itemId
func (h *CollectionHandler) Update(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	var req models.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	if err := h.sync.Update(c.Request.Context(), cat, c.Param("itemId"), req); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Item updated"})
}

// RequestDelete handles POST /collections/:category/:itemId/delete-request
func (h *CollectionHandler) RequestDelete(c *gin.Context) {
	cat, ok := categoryParam(c)
	if !ok {
		return
	}
	ticket, err := h.sync.RequestDelete(c.Request.Context(), cat, c.Param("itemId"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// ConfirmDelete handles POST /deletions/:ticket
func (h *CollectionHandler) ConfirmDelete(c *gin.Context) {
	var req models.ConfirmDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	deleted, err := h.sync.ConfirmDelete(c.Request.Context(), c.Param("ticket"), req.Confirm)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Deleted: deleted})
}

// Move handles POST /collections/:category/:itemId/move
func (h *CollectionHandler) Move(c *gin.Context) {
	from, ok := categoryParam(c)
	if !ok {
		return
	}
	var req models.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	to, err := models.ParseCategory(req.To)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if c.Query("dryRun") == "true" {
		c.JSON(http.StatusOK, MovePromptResponse{Prompt: core.MovePrompt(from, to)})
		return
	}

	var opts core.MoveOptions
	if req.PurchasePrice != nil {
		v := req.PurchasePrice.Value()
		opts.PurchasePrice = &v
	}
	if req.CurrentValue != nil {
		v := req.CurrentValue.Value()
		opts.CurrentValue = &v
	}

	result, err := h.sync.Move(c.Request.Context(), from, c.Param("itemId"), to, opts)
	var incomplete *core.MoveIncompleteError
	if errors.As(err, &incomplete) && result != nil {
		_ = c.Error(err)
		c.JSON(http.StatusConflict, MoveResponse{MoveResult: *result, Incomplete: true, MarkerID: incomplete.MarkerID})
		return
	}
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MoveResponse{MoveResult: *result})
}

// PendingMoves handles GET /moves/pending
func (h *CollectionHandler) PendingMoves(c *gin.Context) {
	moves, err := h.sync.PendingMoves(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, moves)
}

// Reconcile handles POST /moves/reconcile
func (h *CollectionHandler) Reconcile(c *gin.Context) {
	report, err := h.sync.Reconcile(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
