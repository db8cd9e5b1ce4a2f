// Package hashcache persists computed composite hashes in SQLite so repeated
// batch runs skip decoding images that have not changed.
package hashcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS hashes (
	key TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

// Store is a copyhash.HashCache backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open hash cache %s: %w", path, err)
	}
	// A single connection serializes writers from parallel workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create hash cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the hash stored under key. Lookup failures are logged and
// reported as a miss.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT hash FROM hashes WHERE key = ?", key).Scan(&hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false
	case err != nil:
		slog.Warn("hashcache: lookup failed", "key", key, "error", err)
		return "", false
	}
	return hash, true
}

// Set stores hash under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, hash string) {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO hashes (key, hash, created_at) VALUES (?, ?, ?)",
		key, hash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		slog.Warn("hashcache: store failed", "key", key, "error", err)
	}
}

// Len returns the number of cached hashes.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hashes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count cached hashes: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
