package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/conceptforge/conceptforge/internal/metaproject"
)

// SQLiteStore keeps the configuration as a single snapshot row in an
// embedded sqlite database. Each Save replaces the row in one transaction,
// which preserves the wholesale-rewrite contract while letting deployments
// point several tools at one database file.
type SQLiteStore struct {
	db *sql.DB
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshot (
    id       INTEGER PRIMARY KEY CHECK (id = 1),
    payload  BLOB NOT NULL,
    saved_at TEXT NOT NULL
);`

// OpenSQLiteStore opens (creating if necessary) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite snapshot: %w", err)
	}
	// The snapshot is rewritten wholesale under the facade's persistence
	// lock; a single connection keeps sqlite's own locking out of the way.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init sqlite snapshot: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads the snapshot row.
func (s *SQLiteStore) Load(ctx context.Context) (*metaproject.ServerConfiguration, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshot WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sqlite snapshot empty", ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read sqlite snapshot: %w", err)
	}
	var cfg metaproject.ServerConfiguration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("storage: decode sqlite snapshot: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save replaces the snapshot row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, cfg *metaproject.ServerConfiguration) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot (id, payload, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: write sqlite snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit sqlite snapshot: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
