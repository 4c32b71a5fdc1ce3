// Package device models one controlled display device: its configured
// identity and policy flags, and the runtime state fed exclusively by push
// notifications from the transport session.
//
// This package holds no network code. The control package owns the session
// lifecycle and forwards push events here; everything else reads the state
// through the guarded accessors.
package device

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/transport"
)

// PowerState is the device power state as derived from push notifications.
type PowerState string

const (
	// StateUnknown is the initial state and the fallback for labels the
	// device sends that we do not recognize.
	StateUnknown PowerState = "Unknown"
	// StateActive means the device is on and the panel is lit.
	StateActive PowerState = "Active"
	// StatePowerOff means the device reported a full power-off.
	StatePowerOff PowerState = "Power_Off"
	// StateSuspend means the device is in deep standby.
	StateSuspend PowerState = "Suspend"
	// StateActiveStandby means the device is in quick-start standby.
	StateActiveStandby PowerState = "Active_Standby"
	// StateScreenOff means the device is on with the panel blanked.
	StateScreenOff PowerState = "Screen_Off"
)

// ProcessingRequestPowerOff is the processing hint the device attaches to a
// power push when a power-off request is being handled. Its arrival
// finalizes power-off attribution.
const ProcessingRequestPowerOff = "Request Power Off"

// attributionWindow is how long an outgoing power-off command is allowed to
// claim the next observed power cycle. An Active push without a processing
// hint arriving later than this clears the claim.
const attributionWindow = 500 * time.Millisecond

// ParsePowerState maps a raw push label onto the PowerState enumeration.
// Spaces are replaced with underscores and the result is matched
// case-sensitively. Unrecognized labels degrade to StateUnknown with
// ok=false; they are never an error.
func ParsePowerState(label string) (PowerState, bool) {
	switch s := PowerState(strings.ReplaceAll(label, " ", "_")); s {
	case StateActive, StatePowerOff, StateSuspend, StateActiveStandby, StateScreenOff:
		return s, true
	default:
		return StateUnknown, false
	}
}

// PowerOffSource identifies who caused the most recent power-off.
type PowerOffSource string

const (
	SourceUnknown PowerOffSource = "Unknown"
	SourceApp     PowerOffSource = "App"
	SourceManual  PowerOffSource = "Manual"
)

// Attribution tracks whether the next observed power-off/power-on cycle was
// caused by this program's own command, to distinguish it from a manual
// remote or button power-off.
type Attribution struct {
	Source   PowerOffSource
	ViaApp   bool
	ViaAppAt time.Time
}

// PictureSettings is the small fixed set of numeric picture fields pushed
// by the device. Partial pushes merge field by field.
type PictureSettings struct {
	Backlight  int `json:"backlight"`
	Contrast   int `json:"contrast"`
	Brightness int `json:"brightness"`
	Color      int `json:"color"`
}

// EventKind tags a change notification.
type EventKind string

const (
	EventPowerState      EventKind = "power_state"
	EventPictureSettings EventKind = "picture_settings"
	EventForegroundApp   EventKind = "foreground_app"
)

// Event is a change notification raised on push delivery. Notifications
// are raised unconditionally, even when the push did not effectively
// change anything; consumers decide whether to coalesce.
type Event struct {
	Device  string          `json:"device"`
	Kind    EventKind       `json:"kind"`
	State   PowerState      `json:"state,omitempty"`
	Picture PictureSettings `json:"picture,omitempty"`
	AppID   string          `json:"app_id,omitempty"`
	At      time.Time       `json:"at"`
}

// Device is one controlled display. Identity and policy fields are set
// from configuration or discovery before the device is used and are not
// guarded; runtime state is guarded by the internal mutex and mutated only
// through the Apply* methods.
type Device struct {
	// Identity.
	Name         string
	Address      string // network address (IP or hostname)
	HardwareAddr string // MAC address for wake-on-network; may be empty
	Custom       bool   // user-entered rather than discovered

	// Policy flags.
	PowerOnAfterStartup   bool
	PowerOnAfterResume    bool
	PowerOffOnShutdown    bool
	PowerOffOnStandby     bool
	PowerOnAfterManualOff bool
	HDMIInput             int // guarded power-off port binding; 0 = unbound

	// QuickAccess is the per-device list of action names pinned for quick
	// access. Empty means the built-in default set.
	QuickAccess []string

	mu            sync.Mutex
	now           func() time.Time
	notify        func(Event)
	state         PowerState
	picture       PictureSettings
	foregroundApp string
	attr          Attribution
	lastOffManual bool
}

// Options configures runtime behavior of a Device.
type Options struct {
	// Now returns current time; defaults to time.Now.
	Now func() time.Time
}

// New creates a Device with the given identity in the Unknown power state.
func New(name, address string, opts Options) *Device {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Device{
		Name:    name,
		Address: address,
		now:     nowFn,
		state:   StateUnknown,
		attr:    Attribution{Source: SourceUnknown},
	}
}

// SetNotifier installs the change-notification sink. Pass nil to silence.
func (d *Device) SetNotifier(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify = fn
}

// State returns the current power state.
func (d *Device) State() PowerState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Picture returns a copy of the current picture settings.
func (d *Device) Picture() PictureSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.picture
}

// ForegroundApp returns the last pushed foreground application id.
func (d *Device) ForegroundApp() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foregroundApp
}

// PowerOffAttribution returns a snapshot of the attribution state.
func (d *Device) PowerOffAttribution() Attribution {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attr
}

// LastOffWasManual reports whether the most recently attributed power-off
// came from the remote or the device's own button rather than from us.
// Policy uses this to suppress automatic power-on unless the device opts in.
func (d *Device) LastOffWasManual() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastOffManual
}

// StampPowerOff records that this program is about to issue a power-off
// command, claiming the next observed power cycle for attribution. Called
// by the control layer immediately before the transport call.
func (d *Device) StampPowerOff() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attr.Source = SourceApp
	d.attr.ViaApp = true
	d.attr.ViaAppAt = d.now()
}

// ApplyPowerEvent runs the power-state transition for one push
// notification. Unrecognized labels degrade to Unknown with a warning; the
// attribution side effect runs on every transition.
func (d *Device) ApplyPowerEvent(ev transport.PowerStateEvent) {
	d.mu.Lock()

	next, ok := ParsePowerState(ev.State)
	if !ok && ev.State != "" {
		log.Warn().
			Str("device", d.Name).
			Str("label", ev.State).
			Msg("unrecognized power state label, treating as Unknown")
	}

	switch {
	case ev.Processing == ProcessingRequestPowerOff:
		// The hint finalizes attribution: either our own stamped command is
		// being processed, or someone pressed power on the remote.
		if d.attr.ViaApp {
			d.attr.Source = SourceApp
			d.lastOffManual = false
		} else {
			d.attr.Source = SourceManual
			d.lastOffManual = true
		}
		d.attr.ViaApp = false
	case next == StateActive && ev.Processing == "":
		// An unrelated Active push clears a stale claim. Within the window
		// the claim stands: some models push Active once more while the
		// power-off request is still in flight.
		if d.attr.ViaApp && d.now().Sub(d.attr.ViaAppAt) > attributionWindow {
			d.attr.ViaApp = false
			d.attr.Source = SourceUnknown
		}
	}

	d.state = next
	ev2 := Event{Device: d.Name, Kind: EventPowerState, State: next, At: d.now()}
	notify := d.notify
	d.mu.Unlock()

	if notify != nil {
		notify(ev2)
	}
}

// ApplyPictureEvent merges a partial picture-settings push field by field.
// A notification is raised even if nothing effectively changed.
func (d *Device) ApplyPictureEvent(ev transport.PictureSettingsEvent) {
	d.mu.Lock()
	if ev.Backlight != nil {
		d.picture.Backlight = *ev.Backlight
	}
	if ev.Contrast != nil {
		d.picture.Contrast = *ev.Contrast
	}
	if ev.Brightness != nil {
		d.picture.Brightness = *ev.Brightness
	}
	if ev.Color != nil {
		d.picture.Color = *ev.Color
	}
	ev2 := Event{Device: d.Name, Kind: EventPictureSettings, Picture: d.picture, At: d.now()}
	notify := d.notify
	d.mu.Unlock()

	if notify != nil {
		notify(ev2)
	}
}

// ApplyForegroundAppEvent records the pushed foreground application id.
func (d *Device) ApplyForegroundAppEvent(ev transport.ForegroundAppEvent) {
	d.mu.Lock()
	d.foregroundApp = ev.AppID
	ev2 := Event{Device: d.Name, Kind: EventForegroundApp, AppID: ev.AppID, At: d.now()}
	notify := d.notify
	d.mu.Unlock()

	if notify != nil {
		notify(ev2)
	}
}
