package state

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema holds the local state: the persisted session and the move journal.
const schema = `
CREATE TABLE IF NOT EXISTS saved_session (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    uid           TEXT NOT NULL,
    provider_id   TEXT NOT NULL,
    anonymous     INTEGER NOT NULL DEFAULT 0,
    email         TEXT NOT NULL DEFAULT '',
    display_name  TEXT NOT NULL DEFAULT '',
    id_token      TEXT NOT NULL,
    refresh_token TEXT NOT NULL DEFAULT '',
    expires_at    DATETIME,
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_moves (
    id          TEXT PRIMARY KEY,
    uid         TEXT NOT NULL,
    from_cat    TEXT NOT NULL CHECK (from_cat IN ('owned', 'wanted', 'preorder')),
    to_cat      TEXT NOT NULL CHECK (to_cat IN ('owned', 'wanted', 'preorder')),
    source_id   TEXT NOT NULL,
    target_id   TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'started' CHECK (status IN ('started', 'created')),
    last_error  TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_moves_uid ON pending_moves(uid, created_at);
`

// Store is the local state database.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path, configures pragmas and applies
// the schema. ":memory:" gives a private throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
