package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LookupHandler proxies the model lookup service.
type LookupHandler struct {
	lookup ModelLookup
	logger *zap.Logger
}

// NewLookupHandler creates a new LookupHandler.
func NewLookupHandler(lookup ModelLookup, logger *zap.Logger) *LookupHandler {
	return &LookupHandler{lookup: lookup, logger: logger}
}

// Fetch handles GET /lookup/:modelNumber
func (h *LookupHandler) Fetch(c *gin.Context) {
	md, err := h.lookup.Fetch(c.Request.Context(), c.Param("modelNumber"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, md)
}
