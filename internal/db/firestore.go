package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"garage-backend-go/internal/config"
	"garage-backend-go/internal/models"
)

// TokenSourceFunc yields the OAuth2 token source that authenticates a
// session's own requests to Firestore.
type TokenSourceFunc func(session *models.Session) oauth2.TokenSource

// Backend opens Firestore repositories. With service-account credentials it
// shares one Admin SDK client; otherwise every session gets its own client
// authenticated with the user's ID token so security rules apply.
type Backend struct {
	projectID string
	tokens    TokenSourceFunc
	logger    *zap.Logger

	admin      *firestore.Client
	authClient *auth.Client
}

// OpenBackend prepares the Firestore backend. A broken admin setup is logged
// and the backend falls back to per-user clients.
func OpenBackend(ctx context.Context, cfg *config.Config, tokens TokenSourceFunc, logger *zap.Logger) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("OpenBackend: config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{projectID: cfg.FirebaseProjectID, tokens: tokens, logger: logger}

	if cfg.AdminCredentials() {
		if err := b.initAdmin(ctx, cfg); err != nil {
			logger.Warn("Admin SDK unavailable, using per-user Firestore clients", zap.Error(err))
		}
	}
	if b.admin == nil && tokens == nil {
		return nil, fmt.Errorf("OpenBackend: %w: no admin credentials and no token source", ErrNotConfigured)
	}
	return b, nil
}

func (b *Backend) initAdmin(ctx context.Context, cfg *config.Config) error {
	var credsOption option.ClientOption
	if cfg.GoogleApplicationCredentials != "" {
		b.logger.Info("Initializing Firebase with credentials file", zap.String("path", cfg.GoogleApplicationCredentials))
		if _, err := os.Stat(cfg.GoogleApplicationCredentials); os.IsNotExist(err) {
			b.logger.Warn("Credentials file does not exist", zap.String("path", cfg.GoogleApplicationCredentials))
		}
		credsOption = option.WithCredentialsFile(cfg.GoogleApplicationCredentials)
	} else {
		b.logger.Info("Initializing Firebase with Base64 encoded service account JSON")
		decodedJSON, err := base64.StdEncoding.DecodeString(cfg.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return fmt.Errorf("failed to decode FIREBASE_SERVICE_ACCOUNT_JSON_BASE64: %w", err)
		}
		credsOption = option.WithCredentialsJSON(decodedJSON)
	}

	var appConfig *firebase.Config
	if !config.IsPlaceholder(cfg.FirebaseProjectID) {
		appConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, credsOption)
	if err != nil {
		return fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return fmt.Errorf("app.Firestore: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("app.Auth: %w", err)
	}

	b.admin = client
	b.authClient = authClient
	b.logger.Info("Firestore admin client initialized successfully")
	return nil
}

// AdminMode reports whether repositories share the Admin SDK client.
func (b *Backend) AdminMode() bool {
	return b.admin != nil
}

// ForSession returns a repository bound to session.
func (b *Backend) ForSession(ctx context.Context, session *models.Session) (ItemRepository, error) {
	if session == nil || session.UID == "" {
		return nil, fmt.Errorf("ForSession: %w", ErrUnauthenticated)
	}
	if b.admin != nil {
		return &firestoreItemRepository{client: b.admin, uid: session.UID, logger: b.logger}, nil
	}
	if config.IsPlaceholder(b.projectID) {
		return nil, fmt.Errorf("ForSession: %w: FIREBASE_PROJECT_ID is not set", ErrNotConfigured)
	}

	client, err := firestore.NewClient(ctx, b.projectID, option.WithTokenSource(b.tokens(session)))
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &firestoreItemRepository{client: client, uid: session.UID, owned: true, logger: b.logger}, nil
}

// VerifySession checks the session's ID token with the Admin SDK. Without
// admin credentials there is nothing to verify against and it returns nil.
func (b *Backend) VerifySession(ctx context.Context, session *models.Session) error {
	if b.authClient == nil || session == nil {
		return nil
	}
	token, err := b.authClient.VerifyIDToken(ctx, session.IDToken)
	if err != nil {
		return fmt.Errorf("verifying ID token: %w: %v", ErrUnauthenticated, err)
	}
	if token.UID != session.UID {
		return fmt.Errorf("verifying ID token: %w: token belongs to another user", ErrUnauthenticated)
	}
	return nil
}

// Close releases the shared admin client.
func (b *Backend) Close() error {
	if b.admin != nil {
		return b.admin.Close()
	}
	return nil
}
