// Package storage persists the audit trail (power transitions, preset
// outcomes) and pairing client keys in SQLite. Core runtime state is never
// persisted; everything here is supplemental and the daemon runs fine with
// storage disabled.
package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	// Pure-Go SQLite driver, registered via the blank import. No CGO, so
	// cross-compilation stays trivial.
	_ "modernc.org/sqlite"
)

// Store implements the audit sink and the pairing key store on one
// SQLite database. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path and initializes the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Debug().Str("path", path).Int("schema", currentSchemaVersion).Msg("audit database ready")
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
