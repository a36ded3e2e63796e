package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"garage-backend-go/internal/app"
	"garage-backend-go/internal/middleware"
)

// Services are the dependencies of the routes.
type Services struct {
	Sessions    SessionService
	Collections CollectionService
	Lookup      ModelLookup
	// AllowOrigin checks websocket origins; nil accepts every origin.
	AllowOrigin func(origin string) bool
}

// ServicesFrom takes the services of a bootstrapped app.
func ServicesFrom(a *app.App) Services {
	svc := Services{Sessions: a.Sessions, Collections: a.Sync, Lookup: a.Lookup}
	if a.Config != nil && strings.TrimSpace(a.Config.ClientURL) != "" {
		allowed := make(map[string]bool)
		for _, o := range strings.Split(a.Config.ClientURL, ",") {
			allowed[strings.TrimSpace(o)] = true
		}
		svc.AllowOrigin = func(origin string) bool { return allowed[origin] }
	}
	return svc
}

// SetupRoutes configures the application routes. Global middleware
// (logging, recovery, CORS) is expected to be applied to router first.
func SetupRoutes(router *gin.Engine, svc Services, logger *zap.Logger) *StreamHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionMW := middleware.RequireSession(svc.Sessions)

	sessionHandler := NewSessionHandler(svc.Sessions, logger)
	collectionHandler := NewCollectionHandler(svc.Collections, logger)
	lookupHandler := NewLookupHandler(svc.Lookup, logger)
	hub := NewStreamHub(svc.Collections, logger.Named("stream"), svc.AllowOrigin)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/health", health)

		sessionGroup := apiV1.Group("/session")
		{
			sessionGroup.GET("", sessionHandler.GetSession)
			sessionGroup.POST("/anonymous", sessionHandler.SignInAnonymous)
			sessionGroup.POST("/federated", sessionHandler.SignInFederated)
			sessionGroup.DELETE("", sessionHandler.SignOut)
		}

		gated := apiV1.Group("", sessionMW)
		{
			gated.GET("/collections", collectionHandler.ListAll)
			gated.GET("/collections/:category", collectionHandler.List)
			gated.POST("/collections/:category", collectionHandler.Create)
			gated.PATCH("/collections/:category/:itemId", collectionHandler.Update)
			gated.POST("/collections/:category/:itemId/delete-request", collectionHandler.RequestDelete)
			gated.POST("/collections/:category/:itemId/move", collectionHandler.Move)
			gated.POST("/deletions/:ticket", collectionHandler.ConfirmDelete)

			gated.GET("/moves/pending", collectionHandler.PendingMoves)
			gated.POST("/moves/reconcile", collectionHandler.Reconcile)

			gated.GET("/lookup/:modelNumber", lookupHandler.Fetch)
			gated.GET("/stream", hub.ServeWS)
		}
	}
	router.GET("/health", health)

	logger.Info("API routes configured under /api/v1")
	return hub
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Garage backend is healthy."})
}
