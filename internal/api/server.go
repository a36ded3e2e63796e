package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"garage-backend-go/internal/app"
	"garage-backend-go/internal/middleware"
)

// shutdownTimeout gives active connections time to finish.
const shutdownTimeout = 10 * time.Second

// NewRouter builds the gin engine with the global middleware and routes.
func NewRouter(a *app.App, logger *zap.Logger) *gin.Engine {
	if strings.ToLower(a.Config.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	if cors := middleware.CORSMiddleware(a.Config.ClientURL); cors != nil {
		router.Use(cors)
		logger.Info("CORS Middleware enabled", zap.String("clientURL", a.Config.ClientURL))
	} else {
		logger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured. API might not be accessible from a web frontend.")
	}

	SetupRoutes(router, ServicesFrom(a), logger)
	return router
}

// Serve runs the HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server...", zap.String("address", addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Attempting graceful shutdown of HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server exiting gracefully.")
	return nil
}
