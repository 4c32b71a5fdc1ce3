package storage

import (
	"fmt"
	"time"
)

// currentSchemaVersion is the database schema version. Increment when
// making schema changes and add migration logic.
const currentSchemaVersion = 1

// initSchema creates the required tables if they don't exist. Idempotent.
func (s *Store) initSchema() error {
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	return nil
}

// migrateToV1 creates the initial tables: power transitions, preset runs,
// and pairing client keys.
func (s *Store) migrateToV1() error {
	const tables = `
		CREATE TABLE IF NOT EXISTS power_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device TEXT NOT NULL,
			state TEXT NOT NULL,
			at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_power_events_device ON power_events(device, at);

		CREATE TABLE IF NOT EXISTS preset_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device TEXT NOT NULL,
			preset TEXT NOT NULL,
			ok INTEGER NOT NULL,
			at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_preset_runs_device ON preset_runs(device, at);

		CREATE TABLE IF NOT EXISTS client_keys (
			address TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(tables); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	_, err := s.db.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		1, time.Now().Format(time.RFC3339Nano),
	)
	return err
}
