package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"garage-backend-go/internal/api"
	"garage-backend-go/internal/app"
	"garage-backend-go/internal/config"
)

func main() {
	// --- 1. Load Application Configuration ---
	appConfig, warnings, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Initialize Logger (Zap) ---
	zapLogger, err := app.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	for _, w := range warnings {
		zapLogger.Warn("Configuration warning", zap.String("warning", w))
	}
	zapLogger.Info("Application configuration loaded.", zap.String("storeDriver", appConfig.StoreDriver))

	// --- 3. Bootstrap (state database, identity, store, session, sync) ---
	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.Bootstrap(initCtx, appConfig, zapLogger)
	cancelInit()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to bootstrap application", zap.Error(err))
	}

	// --- 4. Setup Gin HTTP Engine and Routes ---
	router := api.NewRouter(a, zapLogger)

	// --- 5. Serve until SIGINT/SIGTERM ---
	ctx, cancel := context.WithCancel(context.Background())
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quitChannel
		zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	serveErr := api.Serve(ctx, fmt.Sprintf(":%s", appConfig.Port), router, zapLogger)
	cancel()

	// --- 6. Teardown: unsubscribe, close clients and the state database ---
	if err := a.Close(); err != nil {
		zapLogger.Error("Error during application teardown", zap.Error(err))
	}
	if serveErr != nil {
		zapLogger.Fatal("Server stopped with error", zap.Error(serveErr))
	}
}
