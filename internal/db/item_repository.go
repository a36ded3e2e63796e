package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"garage-backend-go/internal/models"
)

const usersCollection = "users"

// firestoreItemRepository implements ItemRepository using Firestore.
type firestoreItemRepository struct {
	client *firestore.Client
	uid    string
	owned  bool // the client belongs to this repository and is closed with it
	logger *zap.Logger
}

func (r *firestoreItemRepository) collection(uid string, category models.Category) (*firestore.CollectionRef, error) {
	if !category.Valid() {
		return nil, models.ErrUnknownCategory
	}
	if uid == "" || uid != r.uid {
		return nil, fmt.Errorf("access to '%s' of user '%s': %w", category.CollectionName(), uid, ErrPermissionDenied)
	}
	return r.client.Collection(usersCollection).Doc(uid).Collection(category.CollectionName()), nil
}

// Add creates a document with an auto-generated ID.
func (r *firestoreItemRepository) Add(ctx context.Context, uid string, category models.Category, item models.Item) (string, error) {
	coll, err := r.collection(uid, category)
	if err != nil {
		return "", err
	}
	item.Category = category
	docRef, _, err := coll.Add(ctx, item.Document())
	if err != nil {
		return "", classify(err, "failed to add item to %s", category)
	}
	return docRef.ID, nil
}

// Update merges fields into an existing document.
func (r *firestoreItemRepository) Update(ctx context.Context, uid string, category models.Category, id string, fields map[string]interface{}) error {
	coll, err := r.collection(uid, category)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("item ID cannot be empty for Update operation")
	}
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}

	if _, err := coll.Doc(id).Update(ctx, updates); err != nil {
		return classify(err, "failed to update item '%s' in %s", id, category)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *firestoreItemRepository) Delete(ctx context.Context, uid string, category models.Category, id string) error {
	coll, err := r.collection(uid, category)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("item ID cannot be empty for Delete operation")
	}
	if _, err := coll.Doc(id).Delete(ctx); err != nil {
		return classify(err, "failed to delete item '%s' from %s", id, category)
	}
	return nil
}

// Listen subscribes to the collection's realtime snapshots.
func (r *firestoreItemRepository) Listen(ctx context.Context, uid string, category models.Category) (SnapshotStream, error) {
	coll, err := r.collection(uid, category)
	if err != nil {
		return nil, err
	}
	return &firestoreSnapshotStream{it: coll.Snapshots(ctx), category: category}, nil
}

// Close closes the client when the repository owns it.
func (r *firestoreItemRepository) Close() error {
	if !r.owned {
		return nil
	}
	if err := r.client.Close(); err != nil {
		r.logger.Warn("Closing session Firestore client", zap.String("uid", r.uid), zap.Error(err))
		return err
	}
	return nil
}

type firestoreSnapshotStream struct {
	it       *firestore.QuerySnapshotIterator
	category models.Category
}

func (s *firestoreSnapshotStream) Next() ([]models.Item, error) {
	snap, err := s.it.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrStreamClosed
	}
	if err != nil {
		return nil, classify(err, "snapshot of %s", s.category)
	}

	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, classify(err, "reading snapshot of %s", s.category)
	}
	items := make([]models.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, models.ItemFromDocument(doc.Ref.ID, s.category, doc.Data()))
	}
	return items, nil
}

func (s *firestoreSnapshotStream) Stop() {
	s.it.Stop()
}
