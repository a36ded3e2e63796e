package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"garage-backend-go/internal/auth"
	"garage-backend-go/internal/config"
	"garage-backend-go/internal/core"
	"garage-backend-go/internal/db"
	"garage-backend-go/internal/form"
	"garage-backend-go/internal/lookup"
	"garage-backend-go/internal/models"
	"garage-backend-go/internal/session"
	"garage-backend-go/internal/state"
)

// App is the explicitly constructed client context: every component is
// built once here and handed to its consumers.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	State    *state.Store
	Backend  *db.Backend     // nil with the memory driver
	Memory   *db.MemoryStore // nil with the firestore driver
	Sessions *session.Manager
	Sync     *core.SyncController
	Lookup   *lookup.Client
}

// Bootstrap wires the components, restores the saved session and starts
// the subscriptions for it.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("Bootstrap: config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := state.Open(cfg.StateDBPath)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, State: st}

	var authenticator session.Authenticator
	var provider *auth.Provider
	if cfg.StoreDriver == config.DriverMemory && config.IsPlaceholder(cfg.FirebaseAPIKey) {
		logger.Info("Using local guest sign-in")
		authenticator = auth.NewLocalGuest()
	} else {
		provider, err = auth.NewProvider(ctx, auth.ProviderConfigFrom(cfg), logger.Named("auth"))
		if err != nil {
			st.Close()
			return nil, err
		}
		authenticator = provider
	}

	opts := []session.Option{session.WithStore(st)}
	var factory db.StoreFactory
	switch cfg.StoreDriver {
	case config.DriverMemory:
		a.Memory = db.NewMemoryStore()
		factory = a.Memory
	default:
		tokens := func(s *models.Session) oauth2.TokenSource {
			return provider.TokenSource(s, func(refreshed *models.Session) {
				a.Sessions.Refreshed(refreshed)
			})
		}
		a.Backend, err = db.OpenBackend(ctx, cfg, tokens, logger.Named("store"))
		if err != nil {
			st.Close()
			return nil, err
		}
		if a.Backend.AdminMode() {
			opts = append(opts, session.WithVerifier(a.Backend))
		}
		factory = a.Backend
	}

	a.Sessions = session.NewManager(authenticator, logger.Named("session"), opts...)
	a.Sync = core.NewSyncController(factory, logger.Named("sync"),
		core.WithJournal(st.Journal()),
		core.WithTicketTTL(cfg.DeleteTicketTTL),
	)
	a.Lookup = lookup.NewClient(cfg.LookupAPIURL, cfg.LookupTimeout, logger.Named("lookup"))

	if err := a.Sessions.Watch(ctx, a.Sync.HandleSession); err != nil {
		a.Close()
		return nil, fmt.Errorf("registering session watcher: %w", err)
	}
	if err := a.Sessions.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("starting session manager: %w", err)
	}
	return a, nil
}

// NewAddFlow returns an add flow backed by the app's lookup client and
// controller.
func (a *App) NewAddFlow() *form.AddFlow {
	return form.NewAddFlow(a.Lookup, a.Sync, a.Logger.Named("add"))
}

// Close unsubscribes and releases every client.
func (a *App) Close() error {
	var errs []error
	if a.Sync != nil {
		a.Sync.Close()
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store backend: %w", err))
		}
	}
	if a.State != nil {
		if err := a.State.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing state database: %w", err))
		}
	}
	return errors.Join(errs...)
}
