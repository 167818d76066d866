// Package store provides SQLite persistence for the crawled league
// hierarchy: typed upserts with merge semantics, freshness queries for
// the cache policy, and the append-only scrape audit trail.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// EpochSentinel marks a row that exists from parent-discovery only and
// has never had its own page fetched.
const EpochSentinel = "1970-01-01T00:00:00"

// tsLayout is the timestamp format used by every *_at column.
const tsLayout = "2006-01-02T15:04:05"

// Store wraps a single SQLite connection. Callers serialize mutations
// through the internal mutex; each mutation commits before returning.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	logger *zap.Logger
}

// New opens (creating if needed) the database at path and ensures the
// schema exists. Pass ":memory:" for an ephemeral store.
func New(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite handles a single writer best, and the
	// orchestrator is single-threaded anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("store opened", zap.String("path", path))
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// nowString returns the current UTC time in the store's timestamp format.
func nowString() string {
	return time.Now().UTC().Format(tsLayout)
}

// parseTimestamp accepts the store layout plus a few ISO-8601 variants
// seen in older rows. Returns a zero time and false when unparseable.
func parseTimestamp(v string) (time.Time, bool) {
	for _, layout := range []string{tsLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
