package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"garage-backend-go/internal/models"
)

// MoveStatus is how far a journaled move got.
type MoveStatus string

const (
	// MoveStarted means the target document may not exist yet.
	MoveStarted MoveStatus = "started"
	// MoveCreated means the target exists and the source still has to be removed.
	MoveCreated MoveStatus = "created"
)

// ErrMoveNotFound is returned for an unknown journal marker.
var ErrMoveNotFound = errors.New("move marker not found")

// Move is a journal marker for a move that has not completed.
type Move struct {
	ID        string          `json:"id"`
	UID       string          `json:"uid"`
	From      models.Category `json:"from"`
	To        models.Category `json:"to"`
	SourceID  string          `json:"sourceId"`
	TargetID  string          `json:"targetId,omitempty"`
	Status    MoveStatus      `json:"status"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Journal records in-flight moves so an interrupted one can be finished
// later. It is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Journal returns the move journal backed by s.
func (s *Store) Journal() *Journal {
	return &Journal{db: s.db, now: time.Now}
}

// Begin records that a move of sourceID is about to create its target.
func (j *Journal) Begin(ctx context.Context, uid string, from, to models.Category, sourceID string) (*Move, error) {
	now := j.now().UTC()
	m := &Move{
		ID:        uuid.NewString(),
		UID:       uid,
		From:      from,
		To:        to,
		SourceID:  sourceID,
		Status:    MoveStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO pending_moves (id, uid, from_cat, to_cat, source_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UID, string(m.From), string(m.To), m.SourceID, string(m.Status), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("recording move of '%s': %w", sourceID, err)
	}
	return m, nil
}

// MarkCreated records the target document of a move.
func (j *Journal) MarkCreated(ctx context.Context, id, targetID string) error {
	return j.exec(ctx, id, `UPDATE pending_moves SET status = ?, target_id = ?, updated_at = ? WHERE id = ?`,
		string(MoveCreated), targetID, j.now().UTC(), id)
}

// MarkFailed stores the last error seen while finishing a move.
func (j *Journal) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return j.exec(ctx, id, `UPDATE pending_moves SET last_error = ?, updated_at = ? WHERE id = ?`,
		msg, j.now().UTC(), id)
}

// Complete removes the marker of a finished move.
func (j *Journal) Complete(ctx context.Context, id string) error {
	return j.exec(ctx, id, `DELETE FROM pending_moves WHERE id = ?`, id)
}

// Abort removes the marker of a move that will not be finished.
func (j *Journal) Abort(ctx context.Context, id string) error {
	return j.Complete(ctx, id)
}

// Get returns one marker.
func (j *Journal) Get(ctx context.Context, id string) (*Move, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, uid, from_cat, to_cat, source_id, target_id, status, last_error, created_at, updated_at
		FROM pending_moves WHERE id = ?`, id)
	m, err := scanMove(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("move '%s': %w", id, ErrMoveNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading move '%s': %w", id, err)
	}
	return m, nil
}

// List returns the markers of uid, oldest first.
func (j *Journal) List(ctx context.Context, uid string) ([]Move, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, uid, from_cat, to_cat, source_id, target_id, status, last_error, created_at, updated_at
		FROM pending_moves WHERE uid = ? ORDER BY created_at, id`, uid)
	if err != nil {
		return nil, fmt.Errorf("listing moves: %w", err)
	}
	defer rows.Close()

	var moves []Move
	for rows.Next() {
		m, err := scanMove(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning move: %w", err)
		}
		moves = append(moves, *m)
	}
	return moves, rows.Err()
}

func (j *Journal) exec(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating move '%s': %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating move '%s': %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("move '%s': %w", id, ErrMoveNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMove(row scanner) (*Move, error) {
	var (
		m              Move
		from, to, stat string
	)
	if err := row.Scan(&m.ID, &m.UID, &from, &to, &m.SourceID, &m.TargetID, &stat, &m.LastError, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.From = models.Category(from)
	m.To = models.Category(to)
	m.Status = MoveStatus(stat)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
