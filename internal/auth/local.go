package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"garage-backend-go/internal/models"
)

// LocalGuest signs guests in without the identity service. It backs the
// memory store driver when no API key is configured.
type LocalGuest struct {
	now func() time.Time
}

// NewLocalGuest creates a LocalGuest.
func NewLocalGuest() *LocalGuest {
	return &LocalGuest{now: time.Now}
}

// SignInAnonymously returns a session with a fresh random uid.
func (g *LocalGuest) SignInAnonymously(context.Context) (*models.Session, error) {
	return &models.Session{
		UID:        "local-" + uuid.NewString(),
		ProviderID: models.ProviderAnonymous,
		Anonymous:  true,
		CreatedAt:  g.now().UTC(),
	}, nil
}

// SignInWithIdp always fails: federated sign-in needs the identity service.
func (g *LocalGuest) SignInWithIdp(_ context.Context, providerID, _ string) (*models.Session, error) {
	return nil, fmt.Errorf("%w: federated sign-in with '%s' needs FIREBASE_API_KEY", ErrNotConfigured, providerID)
}
