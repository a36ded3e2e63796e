package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"garage-backend-go/internal/models"
)

// ContextSessionKey is the gin context key holding the *models.Session of
// the request.
const ContextSessionKey = "session"

// ErrorResponse mirrors api.ErrorResponse to avoid an import cycle.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SessionSource reports the signed-in session, nil when signed out.
type SessionSource interface {
	Current() *models.Session
}

// RequireSession aborts with 401 unless a session is active. The session is
// stored in the gin context under ContextSessionKey.
func RequireSession(sessions SessionSource) gin.HandlerFunc {
	if sessions == nil {
		panic("RequireSession requires a non-nil SessionSource")
	}
	return func(c *gin.Context) {
		s := sessions.Current()
		if s == nil || s.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Not signed in", Details: "sign in anonymously or with a provider first"})
			return
		}
		c.Set(ContextSessionKey, s)
		c.Next()
	}
}

// SessionFrom returns the session RequireSession stored, or nil.
func SessionFrom(c *gin.Context) *models.Session {
	v, ok := c.Get(ContextSessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*models.Session)
	return s
}
