// Package kvstore is the durable key-value store the engine persists into.
// Values are opaque byte strings kept in a single SQLite table.
package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"
)

// DefaultMaxBytes is the ceiling on the total size of stored values.
const DefaultMaxBytes = 50 * 1024 * 1024

// ErrTooLarge is returned by Set when the write would exceed the ceiling.
var ErrTooLarge = errors.New("kvstore: size ceiling exceeded")

// Store is a SQLite-backed key-value store.
type Store struct {
	db       *sql.DB
	maxBytes int64
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// private in-memory database. maxBytes <= 0 selects DefaultMaxBytes.
func Open(path string, maxBytes int64) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("kvstore: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open: %w", err)
	}
	// One connection: an in-memory database is per-connection, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{db: db, maxBytes: maxBytes}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("kvstore: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key and whether it exists.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("kvstore get: store/db is nil")
	}
	var v []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore get %s: %w", key, err)
	}
	return v, true, nil
}

// GetString returns the value under key as a string, or def when absent.
func (s *Store) GetString(key, def string) (string, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return def, err
	}
	return string(v), nil
}

// Budget returns how many bytes key may hold: the ceiling minus what every
// other key already occupies.
func (s *Store) Budget(key string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("kvstore budget: store/db is nil")
	}
	others, err := othersSize(s.db, key)
	if err != nil {
		return 0, fmt.Errorf("kvstore budget %s: %w", key, err)
	}
	return s.maxBytes - others, nil
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func othersSize(q queryRower, key string) (int64, error) {
	var n int64
	err := q.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv WHERE key != ?`, key).Scan(&n)
	return n, err
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("kvstore set: store/db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("kvstore set: empty key")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("kvstore set %s: begin: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	others, err := othersSize(tx, key)
	if err != nil {
		return fmt.Errorf("kvstore set %s: size: %w", key, err)
	}
	if total := others + int64(len(value)); total > s.maxBytes {
		return fmt.Errorf("%w: %s would grow to %s (limit %s)", ErrTooLarge, key,
			humanize.IBytes(uint64(total)), humanize.IBytes(uint64(s.maxBytes)))
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`INSERT INTO kv(key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("kvstore set %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kvstore set %s: commit: %w", key, err)
	}
	return nil
}
