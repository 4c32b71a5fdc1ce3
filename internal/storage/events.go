package storage

// events.go contains the audit trail: power-state transitions and preset
// run outcomes. The control layer writes through the AuditSink interface;
// the HTTP API reads through the list queries.

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/device"
)

// PowerEvent is one recorded power-state transition.
type PowerEvent struct {
	Device string    `json:"device"`
	State  string    `json:"state"`
	At     time.Time `json:"at"`
}

// PresetRun is one recorded preset execution outcome.
type PresetRun struct {
	Device string    `json:"device"`
	Preset string    `json:"preset"`
	OK     bool      `json:"ok"`
	At     time.Time `json:"at"`
}

// RecordPowerState implements control.AuditSink. Write failures are
// logged, never surfaced; the audit trail must not affect control flow.
func (s *Store) RecordPowerState(deviceName string, state device.PowerState, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT INTO power_events (device, state, at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.Exec(query, deviceName, string(state), at.Format(time.RFC3339Nano)); err != nil {
		log.Warn().Err(err).Str("device", deviceName).Msg("could not record power event")
	}
}

// RecordPresetRun implements control.AuditSink.
func (s *Store) RecordPresetRun(deviceName, presetName string, ok bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT INTO preset_runs (device, preset, ok, at)
		VALUES (?, ?, ?, ?)
	`
	okInt := 0
	if ok {
		okInt = 1
	}
	if _, err := s.db.Exec(query, deviceName, presetName, okInt, at.Format(time.RFC3339Nano)); err != nil {
		log.Warn().Err(err).Str("device", deviceName).Msg("could not record preset run")
	}
}

// PowerEvents returns the most recent transitions for a device, newest
// first, up to limit.
func (s *Store) PowerEvents(deviceName string, limit int) ([]PowerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT device, state, at
		FROM power_events
		WHERE device = ?
		ORDER BY at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, deviceName, limit)
	if err != nil {
		return nil, fmt.Errorf("query power events: %w", err)
	}
	defer rows.Close()

	var out []PowerEvent
	for rows.Next() {
		var ev PowerEvent
		var at string
		if err := rows.Scan(&ev.Device, &ev.State, &at); err != nil {
			return nil, fmt.Errorf("scan power event: %w", err)
		}
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PresetRuns returns the most recent preset outcomes for a device, newest
// first, up to limit.
func (s *Store) PresetRuns(deviceName string, limit int) ([]PresetRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT device, preset, ok, at
		FROM preset_runs
		WHERE device = ?
		ORDER BY at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, deviceName, limit)
	if err != nil {
		return nil, fmt.Errorf("query preset runs: %w", err)
	}
	defer rows.Close()

	var out []PresetRun
	for rows.Next() {
		var r PresetRun
		var at string
		var okInt int
		if err := rows.Scan(&r.Device, &r.Preset, &okInt, &at); err != nil {
			return nil, fmt.Errorf("scan preset run: %w", err)
		}
		r.OK = okInt != 0
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}
