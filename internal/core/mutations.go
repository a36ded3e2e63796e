package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"garage-backend-go/internal/db"
	"garage-backend-go/internal/models"
)

// Create writes a new record into category. The mirror is not touched; the
// record appears once the store echoes it.
func (c *SyncController) Create(ctx context.Context, category models.Category, req models.CreateItemRequest) (string, error) {
	repo, uid, _, err := c.active()
	if err != nil {
		return "", err
	}
	item, err := req.NewItem(category, c.now())
	if err != nil {
		return "", err
	}

	id, err := repo.Add(ctx, uid, category, item)
	if err != nil {
		c.logger.Error("Create failed", zap.String("category", category.String()), zap.String("model", item.ModelNumber), zap.Error(err))
		return "", fmt.Errorf("creating item in %s: %w", category, err)
	}
	c.logger.Info("Item created", zap.String("category", category.String()), zap.String("id", id))
	return id, nil
}

// Update writes only the fields set in req that belong to category.
// Applying the same request twice leaves the same record.
func (c *SyncController) Update(ctx context.Context, category models.Category, id string, req models.UpdateItemRequest) error {
	repo, uid, _, err := c.active()
	if err != nil {
		return err
	}
	fields, err := req.Fields(category)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrEmptyUpdate
	}

	if err := repo.Update(ctx, uid, category, id, fields); err != nil {
		c.logger.Error("Update failed", zap.String("category", category.String()), zap.String("id", id), zap.Error(err))
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: '%s' in %s: %w", ErrItemNotFound, id, category, err)
		}
		return fmt.Errorf("updating item '%s' in %s: %w", id, category, err)
	}
	return nil
}

// DeleteTicket is a pending, unconfirmed delete.
type DeleteTicket struct {
	ID        string          `json:"ticket"`
	Category  models.Category `json:"category"`
	ItemID    string          `json:"itemId"`
	ModelName string          `json:"modelName"`
	Prompt    string          `json:"prompt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

type deleteTicket struct {
	DeleteTicket
	gen uint64
}

// DeletePrompt is the confirmation question for deleting from category.
func DeletePrompt(category models.Category) string {
	if category == models.CategoryPreorder {
		return "Cancel this pre-order?"
	}
	return "Delete this model?"
}

// RequestDelete issues a ticket for deleting a mirrored record. Nothing is
// deleted until ConfirmDelete is called with confirmed set.
func (c *SyncController) RequestDelete(ctx context.Context, category models.Category, id string) (*DeleteTicket, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}
	if _, _, _, err := c.active(); err != nil {
		return nil, err
	}
	item, ok := c.Item(category, id)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' in %s", ErrItemNotFound, id, category)
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, t := range c.tickets {
		if !now.Before(t.ExpiresAt) {
			delete(c.tickets, key)
		}
	}
	t := deleteTicket{
		DeleteTicket: DeleteTicket{
			ID:        uuid.NewString(),
			Category:  category,
			ItemID:    id,
			ModelName: item.ModelName,
			Prompt:    DeletePrompt(category),
			ExpiresAt: now.Add(c.ticketTTL),
		},
		gen: c.gen,
	}
	c.tickets[t.ID] = t
	public := t.DeleteTicket
	return &public, nil
}

// ConfirmDelete answers a ticket. A declined ticket issues no store call.
// Tickets are single-use and die with the session that issued them. It
// reports whether a delete was issued.
func (c *SyncController) ConfirmDelete(ctx context.Context, ticketID string, confirmed bool) (bool, error) {
	c.mu.Lock()
	t, ok := c.tickets[ticketID]
	delete(c.tickets, ticketID)
	gen := c.gen
	c.mu.Unlock()

	if !ok || t.gen != gen {
		return false, ErrTicketNotFound
	}
	if !c.now().Before(t.ExpiresAt) {
		return false, ErrTicketExpired
	}
	if !confirmed {
		c.logger.Info("Delete declined", zap.String("category", t.Category.String()), zap.String("id", t.ItemID))
		return false, nil
	}

	repo, uid, _, err := c.active()
	if err != nil {
		return false, err
	}
	if err := repo.Delete(ctx, uid, t.Category, t.ItemID); err != nil {
		c.logger.Error("Delete failed", zap.String("category", t.Category.String()), zap.String("id", t.ItemID), zap.Error(err))
		return false, fmt.Errorf("deleting item '%s' from %s: %w", t.ItemID, t.Category, err)
	}
	c.logger.Info("Item deleted", zap.String("category", t.Category.String()), zap.String("id", t.ItemID))
	return true, nil
}
