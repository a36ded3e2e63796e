package db

import (
	"context"

	"garage-backend-go/internal/models"
)

// ItemRepository defines the document operations on the per-user category
// collections. It is bound to one session; uid arguments other than the
// session's own are rejected with ErrPermissionDenied.
type ItemRepository interface {
	// Add writes a new document and returns the store-assigned ID.
	Add(ctx context.Context, uid string, category models.Category, item models.Item) (string, error)
	// Update merges fields into an existing document. A missing document is ErrNotFound.
	Update(ctx context.Context, uid string, category models.Category, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, uid string, category models.Category, id string) error
	// Listen starts a realtime subscription. Every Next returns the full document set.
	Listen(ctx context.Context, uid string, category models.Category) (SnapshotStream, error)
	// Close releases the connection owned by the repository.
	Close() error
}

// SnapshotStream delivers full snapshots in store order.
type SnapshotStream interface {
	Next() ([]models.Item, error)
	Stop()
}

// StoreFactory opens an ItemRepository for a session.
type StoreFactory interface {
	ForSession(ctx context.Context, session *models.Session) (ItemRepository, error)
}
