package storage

import (
	"testing"
	"time"

	"github.com/tvcompanion/host/internal/device"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQueryPowerEvents(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.RecordPowerState("tv", device.StateActive, base)
	s.RecordPowerState("tv", device.StatePowerOff, base.Add(time.Hour))
	s.RecordPowerState("other", device.StateActive, base)

	events, err := s.PowerEvents("tv", 10)
	if err != nil {
		t.Fatalf("PowerEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	// Newest first.
	if events[0].State != string(device.StatePowerOff) {
		t.Errorf("events[0].State = %q, want %q", events[0].State, device.StatePowerOff)
	}
	if !events[0].At.Equal(base.Add(time.Hour)) {
		t.Errorf("events[0].At = %v", events[0].At)
	}
}

func TestRecordAndQueryPresetRuns(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.RecordPresetRun("tv", "movie-night", true, base)
	s.RecordPresetRun("tv", "movie-night", false, base.Add(time.Minute))

	runs, err := s.PresetRuns("tv", 10)
	if err != nil {
		t.Fatalf("PresetRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].OK || !runs[1].OK {
		t.Errorf("outcomes = %v, %v, want false, true", runs[0].OK, runs[1].OK)
	}
}

func TestQueryLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.RecordPowerState("tv", device.StateActive, base.Add(time.Duration(i)*time.Second))
	}
	events, err := s.PowerEvents("tv", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Errorf("events = %d, want 3", len(events))
	}
}

func TestClientKeyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	key, err := s.LoadClientKey("192.168.1.40")
	if err != nil {
		t.Fatalf("LoadClientKey() error = %v", err)
	}
	if key != "" {
		t.Errorf("key = %q for unknown address, want empty", key)
	}

	if err := s.SaveClientKey("192.168.1.40", "secret-1"); err != nil {
		t.Fatalf("SaveClientKey() error = %v", err)
	}
	if err := s.SaveClientKey("192.168.1.40", "secret-2"); err != nil {
		t.Fatalf("SaveClientKey() replace error = %v", err)
	}

	key, err = s.LoadClientKey("192.168.1.40")
	if err != nil {
		t.Fatal(err)
	}
	if key != "secret-2" {
		t.Errorf("key = %q, want secret-2 (latest wins)", key)
	}
}
