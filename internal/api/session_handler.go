package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"garage-backend-go/internal/models"
)

// SessionHandler handles the sign-in and sign-out endpoints.
type SessionHandler struct {
	sessions SessionService
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// GetSession handles GET /session
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, SessionResponse{Status: h.sessions.Status(), Session: h.sessions.Current()})
}

// SignInAnonymous handles POST /session/anonymous
func (h *SessionHandler) SignInAnonymous(c *gin.Context) {
	s, err := h.sessions.SignInAnonymous(c.Request.Context())
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Status: h.sessions.Status(), Session: s})
}

// SignInFederated handles POST /session/federated
func (h *SessionHandler) SignInFederated(c *gin.Context) {
	var req models.FederatedSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	provider := strings.TrimSpace(req.ProviderID)
	if provider == "" {
		provider = models.ProviderGoogle
	}

	s, err := h.sessions.SignInFederated(c.Request.Context(), provider, req.IDToken)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Status: h.sessions.Status(), Session: s})
}

// SignOut handles DELETE /session
func (h *SessionHandler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}
