package storage

// keys.go persists pairing client keys per device address, implementing
// webos.KeyStore. Losing a key only means re-pairing, so this table is
// convenience, not correctness.

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LoadClientKey returns the stored pairing key for address, or "" when
// none is stored.
func (s *Store) LoadClientKey(address string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `SELECT key FROM client_keys WHERE address = ?`

	var key string
	err := s.db.QueryRow(query, address).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load client key: %w", err)
	}
	return key, nil
}

// SaveClientKey stores or replaces the pairing key for address.
func (s *Store) SaveClientKey(address, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT OR REPLACE INTO client_keys (address, key, updated_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.Exec(query, address, key, time.Now().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save client key: %w", err)
	}
	return nil
}
