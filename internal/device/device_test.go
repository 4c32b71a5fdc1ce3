package device

import (
	"testing"
	"time"

	"github.com/tvcompanion/host/internal/transport"
)

func TestParsePowerState(t *testing.T) {
	tests := []struct {
		label string
		want  PowerState
		ok    bool
	}{
		{"Active", StateActive, true},
		{"Power Off", StatePowerOff, true},
		{"Suspend", StateSuspend, true},
		{"Active Standby", StateActiveStandby, true},
		{"Screen Off", StateScreenOff, true},
		{"active", StateUnknown, false},
		{"POWER OFF", StateUnknown, false},
		{"Rebooting", StateUnknown, false},
		{"", StateUnknown, false},
	}
	for _, tt := range tests {
		got, ok := ParsePowerState(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePowerState(%q) = %v, %v, want %v, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

// testDevice returns a device with a controllable clock.
func testDevice() (*Device, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := New("tv", "192.168.1.40", Options{Now: func() time.Time { return now }})
	return d, &now
}

func TestAttributionWithinWindow(t *testing.T) {
	d, now := testDevice()

	d.StampPowerOff()
	*now = now.Add(400 * time.Millisecond)

	// Processing hint within the window: attributed to us.
	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Active", Processing: ProcessingRequestPowerOff})

	attr := d.PowerOffAttribution()
	if attr.Source != SourceApp {
		t.Errorf("Source = %v, want %v", attr.Source, SourceApp)
	}
	if d.LastOffWasManual() {
		t.Error("LastOffWasManual() = true, want false")
	}
}

func TestAttributionClearedByLateActivePush(t *testing.T) {
	d, now := testDevice()

	d.StampPowerOff()
	*now = now.Add(600 * time.Millisecond)

	// An unrelated Active push past the window clears the claim.
	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Active"})

	attr := d.PowerOffAttribution()
	if attr.Source != SourceUnknown {
		t.Errorf("Source = %v, want %v", attr.Source, SourceUnknown)
	}
	if attr.ViaApp {
		t.Error("ViaApp still set after stale claim cleared")
	}
}

func TestAttributionSurvivesEarlyActivePush(t *testing.T) {
	d, now := testDevice()

	d.StampPowerOff()
	*now = now.Add(300 * time.Millisecond)

	// Some models push Active once more while the request is in flight;
	// within the window the claim stands.
	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Active"})
	if !d.PowerOffAttribution().ViaApp {
		t.Error("claim dropped by an Active push inside the window")
	}
}

func TestManualPowerOffAttribution(t *testing.T) {
	d, _ := testDevice()

	// Hint without a stamped command: someone used the remote.
	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Active", Processing: ProcessingRequestPowerOff})

	if got := d.PowerOffAttribution().Source; got != SourceManual {
		t.Errorf("Source = %v, want %v", got, SourceManual)
	}
	if !d.LastOffWasManual() {
		t.Error("LastOffWasManual() = false, want true")
	}
}

func TestUnrecognizedLabelDegradesToUnknown(t *testing.T) {
	d, _ := testDevice()

	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Active"})
	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Mystery State"})

	if got := d.State(); got != StateUnknown {
		t.Errorf("State() = %v after unrecognized label, want %v", got, StateUnknown)
	}
}

func TestPictureSettingsPartialMerge(t *testing.T) {
	d, _ := testDevice()

	b, c := 80, 55
	d.ApplyPictureEvent(transport.PictureSettingsEvent{Backlight: &b, Contrast: &c})

	br := 50
	d.ApplyPictureEvent(transport.PictureSettingsEvent{Brightness: &br})

	got := d.Picture()
	want := PictureSettings{Backlight: 80, Contrast: 55, Brightness: 50}
	if got != want {
		t.Errorf("Picture() = %+v, want %+v", got, want)
	}
}

func TestNotificationsRaisedUnconditionally(t *testing.T) {
	d, _ := testDevice()

	var events []Event
	d.SetNotifier(func(ev Event) { events = append(events, ev) })

	// The same state twice still raises two notifications.
	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Active"})
	d.ApplyPowerEvent(transport.PowerStateEvent{State: "Active"})
	d.ApplyForegroundAppEvent(transport.ForegroundAppEvent{AppID: "com.webos.app.hdmi1"})

	if len(events) != 3 {
		t.Fatalf("notifications = %d, want 3", len(events))
	}
	if events[0].Kind != EventPowerState || events[2].Kind != EventForegroundApp {
		t.Errorf("event kinds = %v, %v", events[0].Kind, events[2].Kind)
	}
	if events[2].AppID != "com.webos.app.hdmi1" {
		t.Errorf("AppID = %q", events[2].AppID)
	}
}
