package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"garage-backend-go/internal/models"
)

// SaveSession replaces the persisted session.
func (s *Store) SaveSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("SaveSession: session cannot be nil")
	}
	var expires interface{}
	if !session.ExpiresAt.IsZero() {
		expires = session.ExpiresAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO saved_session
		    (id, uid, provider_id, anonymous, email, display_name, id_token, refresh_token, expires_at, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UID, session.ProviderID, session.Anonymous, session.Email, session.DisplayName,
		session.IDToken, session.RefreshToken, expires, session.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// LoadSession returns the persisted session, or nil when there is none.
func (s *Store) LoadSession(ctx context.Context) (*models.Session, error) {
	var (
		sess    models.Session
		expires sql.NullTime
		created time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, provider_id, anonymous, email, display_name, id_token, refresh_token, expires_at, created_at
		FROM saved_session WHERE id = 1`,
	).Scan(&sess.UID, &sess.ProviderID, &sess.Anonymous, &sess.Email, &sess.DisplayName,
		&sess.IDToken, &sess.RefreshToken, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if expires.Valid {
		sess.ExpiresAt = expires.Time.UTC()
	}
	sess.CreatedAt = created.UTC()
	return &sess, nil
}

// ClearSession removes the persisted session.
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saved_session`); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
