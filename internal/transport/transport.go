// Package transport defines the boundary to the device's remote-control
// channel. The control core only ever sees these interfaces; the concrete
// webOS implementation lives in the webos subpackage and test fakes live
// next to their consumers.
//
// A Session is an established, exclusively-owned channel to one device.
// It is created by a Factory, replaced wholesale on reconnect, and never
// shared between devices.
package transport

import "context"

// App describes an installed application as reported by the device.
type App struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PowerStateEvent is a push notification about the device power state.
// State carries the raw label as sent by the device ("Active",
// "Active Standby", ...). Processing, when present, hints at an in-flight
// transition ("Request Power Off", "Screen Saver Ready", ...).
type PowerStateEvent struct {
	State      string
	Processing string
}

// PictureSettingsEvent is a partial push of picture settings. Nil fields
// were absent from the push and must not overwrite known values.
type PictureSettingsEvent struct {
	Backlight  *int
	Contrast   *int
	Brightness *int
	Color      *int
}

// ForegroundAppEvent reports the application currently in the foreground.
// An empty AppID means no app is running (device off or booting).
type ForegroundAppEvent struct {
	AppID string
}

// Pointer is the auxiliary input channel used for remote-control button
// presses. It is acquired lazily and reused for the lifetime of one
// scripted sequence.
type Pointer interface {
	// SendButton sends a single remote-control button press by key name
	// (e.g. "ENTER", "EXIT", "_1").
	SendButton(ctx context.Context, name string) error
	Close() error
}

// Session is a live control channel to one device.
type Session interface {
	// GetSystemInfo fetches a single system information value by key
	// (e.g. "modelName").
	GetSystemInfo(ctx context.Context, key string) (string, error)

	// SubscribePowerState arms the power-state push subscription.
	// The callback runs on the session's delivery goroutine.
	SubscribePowerState(cb func(PowerStateEvent)) error
	// SubscribePictureSettings arms the picture-settings push subscription.
	SubscribePictureSettings(cb func(PictureSettingsEvent)) error
	// SubscribeForegroundApp arms the foreground-app push subscription.
	SubscribeForegroundApp(cb func(ForegroundAppEvent)) error

	// SetSystemSetting applies a named system setting. value is either a
	// string or an []int; category selects the settings group ("picture"
	// unless stated otherwise).
	SetSystemSetting(ctx context.Context, name string, value any, category string) error
	// SetConfig applies a raw configuration key.
	SetConfig(ctx context.Context, key, value string) error
	// SetDeviceConfig applies a configuration key that requires a
	// human-readable description alongside the value.
	SetDeviceConfig(ctx context.Context, key, value, description string) error

	// LaunchApp starts an application, optionally with launch parameters.
	LaunchApp(ctx context.Context, appID string, params map[string]any) error
	// Apps lists installed applications. force bypasses any session cache.
	Apps(ctx context.Context, force bool) ([]App, error)
	// IsMuted reports the current audio mute state.
	IsMuted(ctx context.Context) (bool, error)

	// PointerChannel opens (or returns) the button input channel.
	PointerChannel(ctx context.Context) (Pointer, error)

	// TurnOff powers the device off.
	TurnOff(ctx context.Context) error
	// TurnScreenOff blanks the panel while leaving the device running.
	TurnScreenOff(ctx context.Context) error
	// TurnScreenOn restores the panel.
	TurnScreenOn(ctx context.Context) error

	// BoundAddress returns the network address this session was dialed to.
	BoundAddress() string
	// IsClosed reports whether the transport has signaled closure.
	IsClosed() bool
	// Close disposes the session and its auxiliary channels.
	Close() error
}

// Factory creates sessions. CreateSession dials address with the given
// number of attempts and completes the handshake; it returns an error
// rather than a half-open session.
type Factory interface {
	CreateSession(ctx context.Context, address string, retries int) (Session, error)
}

// WakeSender sends a network wake signal to a hardware address.
type WakeSender interface {
	SendWakeSignal(hardwareAddr string) error
}

// StepHandler is the pluggable hook for step tokens the registry does not
// resolve. It reports whether it handled the key.
type StepHandler func(key string, params []string) (handled bool, err error)
