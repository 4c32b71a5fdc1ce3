// Package control implements the per-device control core: the connection
// manager that gates session rebuilds, the wake-on-network retry protocol,
// the scripted step interpreter, and guarded power-off.
//
// One Controller owns exactly one device and its session. Devices are
// fully independent: there is no shared mutable state and no cross-device
// locking. All timing goes through an injected Clock so the retry cadences
// are testable without real sleeps.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/actions"
	"github.com/tvcompanion/host/internal/device"
	apperrors "github.com/tvcompanion/host/internal/errors"
	"github.com/tvcompanion/host/internal/preset"
	"github.com/tvcompanion/host/internal/transport"
)

// Clock abstracts time for the retry and settle delays.
type Clock struct {
	// Now returns current time; defaults to time.Now.
	Now func() time.Time
	// Sleep suspends for d or until ctx is done; defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration)
}

func defaultClock() Clock {
	return Clock{
		Now: time.Now,
		Sleep: func(ctx context.Context, d time.Duration) {
			if d <= 0 {
				return
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
		},
	}
}

// AuditSink records state transitions and preset outcomes. Nil-safe from
// the controller's side; the storage package provides the sqlite-backed
// implementation.
type AuditSink interface {
	RecordPowerState(deviceName string, state device.PowerState, at time.Time)
	RecordPresetRun(deviceName, presetName string, ok bool, at time.Time)
}

// Options configures a Controller.
type Options struct {
	// Factory creates transport sessions. Required.
	Factory transport.Factory
	// Wake sends the network wake signal. Required for wake support.
	Wake transport.WakeSender
	// StepHandler is the optional hook for step tokens the registry does
	// not resolve. Injected here instead of living in process-wide state.
	StepHandler transport.StepHandler
	// Presets are the scripts to register as preset actions.
	Presets []*preset.Preset
	// AdvancedActions enables the built-in launch parameter payloads for
	// the service-menu and software-update applications.
	AdvancedActions bool
	// WakeDelay is the pause before the first wake signal of a retry run.
	WakeDelay time.Duration
	// ConnectDelay is the pause between wake signal and connect attempt.
	ConnectDelay time.Duration
	// ConnectRetries is the per-Connect session creation attempt count.
	ConnectRetries int
	// Clock overrides time handling; zero value uses real time.
	Clock Clock
	// Audit optionally records transitions and preset outcomes.
	Audit AuditSink
}

// Default timing constants. WakeDelay/ConnectDelay defaults apply when the
// corresponding option is zero.
const (
	defaultWakeDelay      = 2 * time.Second
	defaultConnectDelay   = time.Second
	defaultConnectRetries = 2

	// appSettleDelay is inserted after an app launch when the device was
	// just woken; the launcher is not ready for input immediately.
	appSettleDelay = 1000 * time.Millisecond
	// stepsAfterLaunchDelay is inserted between an app launch and the
	// first scripted step.
	stepsAfterLaunchDelay = 1500 * time.Millisecond
)

// Controller is the control core for one device.
type Controller struct {
	dev         *device.Device
	factory     transport.Factory
	wake        transport.WakeSender
	stepHandler transport.StepHandler
	registry    *actions.Registry
	presets     map[string]*preset.Preset
	advanced    bool
	clock       Clock
	audit       AuditSink

	wakeDelay      time.Duration
	connectDelay   time.Duration
	connectRetries int

	// The connect gate. connecting is the Idle/Connecting flag; callers
	// arriving during an in-flight rebuild wait on cond and share the
	// in-flight attempt's outcome instead of racing it.
	mu         sync.Mutex
	cond       *sync.Cond
	connecting bool
	session    transport.Session
	modelName  string
	justWoken  bool
}

// New creates a Controller for dev. The action registry is built here and
// is immutable in shape afterwards.
func New(dev *device.Device, opts Options) *Controller {
	c := &Controller{
		dev:            dev,
		factory:        opts.Factory,
		wake:           opts.Wake,
		stepHandler:    opts.StepHandler,
		advanced:       opts.AdvancedActions,
		clock:          opts.Clock,
		audit:          opts.Audit,
		wakeDelay:      opts.WakeDelay,
		connectDelay:   opts.ConnectDelay,
		connectRetries: opts.ConnectRetries,
		presets:        make(map[string]*preset.Preset),
	}
	c.cond = sync.NewCond(&c.mu)

	if c.clock.Now == nil || c.clock.Sleep == nil {
		c.clock = defaultClock()
	}
	if c.wakeDelay == 0 {
		c.wakeDelay = defaultWakeDelay
	}
	if c.connectDelay == 0 {
		c.connectDelay = defaultConnectDelay
	}
	if c.connectRetries <= 0 {
		c.connectRetries = defaultConnectRetries
	}

	c.registry = buildRegistry(c)
	for _, p := range opts.Presets {
		c.registerPreset(p)
	}

	return c
}

// Device returns the controlled device.
func (c *Controller) Device() *device.Device {
	return c.dev
}

// Registry returns the device's action registry.
func (c *Controller) Registry() *actions.Registry {
	return c.registry
}

// ModelName returns the model name fetched on the last successful connect.
func (c *Controller) ModelName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelName
}

// Preset returns a registered preset by name, or nil. The preset map is
// populated at construction only; the lock keeps the accessor consistent
// with its neighbors.
func (c *Controller) Preset(name string) *preset.Preset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presets[lowerKey(name)]
}

// IsConnected reports whether a session exists and the transport has not
// signaled closure.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && !c.session.IsClosed()
}

// Connect tears down any existing session and establishes a fresh one,
// rearming the three push subscriptions. At most one rebuild is in flight
// per device: a caller that arrives during a rebuild does not start its
// own; it waits for the in-flight attempt and shares its outcome. Handing
// out the old session instead would risk returning one the rebuild is
// about to dispose.
func (c *Controller) Connect(ctx context.Context, retries int) bool {
	c.mu.Lock()
	if c.connecting {
		for c.connecting {
			c.cond.Wait()
		}
		ok := c.session != nil && !c.session.IsClosed()
		c.mu.Unlock()
		return ok
	}
	c.connecting = true
	old := c.session
	c.session = nil
	c.mu.Unlock()

	var (
		newSession transport.Session
		model      string
	)
	// The gate releases on every path out of this function.
	defer func() {
		c.mu.Lock()
		c.session = newSession
		if model != "" {
			c.modelName = model
		}
		c.connecting = false
		c.cond.Broadcast()
		c.mu.Unlock()
	}()

	if old != nil {
		_ = old.Close()
	}

	s, err := c.factory.CreateSession(ctx, c.dev.Address, retries)
	if err != nil {
		log.Warn().Err(err).Str("device", c.dev.Name).Str("address", c.dev.Address).
			Msg("session creation failed")
		return false
	}

	// Model name is informational; its failure does not fail the connect.
	if m, err := s.GetSystemInfo(ctx, "modelName"); err == nil {
		model = m
	}

	if err := c.armSubscriptions(s); err != nil {
		log.Warn().Err(err).Str("device", c.dev.Name).Msg("arming push subscriptions failed")
		_ = s.Close()
		return false
	}

	newSession = s
	log.Info().Str("device", c.dev.Name).Str("model", model).Msg("connected")
	return true
}

func (c *Controller) armSubscriptions(s transport.Session) error {
	if err := s.SubscribePowerState(func(ev transport.PowerStateEvent) {
		c.dev.ApplyPowerEvent(ev)
		if c.audit != nil {
			c.audit.RecordPowerState(c.dev.Name, c.dev.State(), c.clock.Now())
		}
	}); err != nil {
		return err
	}
	if err := s.SubscribePictureSettings(c.dev.ApplyPictureEvent); err != nil {
		return err
	}
	return s.SubscribeForegroundApp(c.dev.ApplyForegroundAppEvent)
}

// Connected is the convenience guard used by all operations: it reconnects
// when asked to, when no session exists, or when the session is bound to a
// stale address after the device's configured address changed.
func (c *Controller) Connected(ctx context.Context, reconnect bool, retries int) bool {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if reconnect || s == nil || s.BoundAddress() != c.dev.Address {
		return c.Connect(ctx, retries)
	}
	return true
}

// Close disposes the session, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s != nil {
		_ = s.Close()
	}
}

// currentSession returns the live session or nil.
func (c *Controller) currentSession() transport.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) setJustWoken(v bool) {
	c.mu.Lock()
	c.justWoken = v
	c.mu.Unlock()
}

func (c *Controller) wasJustWoken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.justWoken
}

// ApplySetting implements actions.Applier against the live session.
func (c *Controller) ApplySetting(ctx context.Context, name string, value any, category string) error {
	if !c.Connected(ctx, false, c.connectRetries) {
		return apperrors.NoSession(c.dev.Name)
	}
	s := c.currentSession()
	if s == nil {
		return apperrors.NoSession(c.dev.Name)
	}
	return s.SetSystemSetting(ctx, name, value, category)
}

// ApplyDeviceConfig implements actions.Applier against the live session.
func (c *Controller) ApplyDeviceConfig(ctx context.Context, key, value, description string) error {
	if !c.Connected(ctx, false, c.connectRetries) {
		return apperrors.NoSession(c.dev.Name)
	}
	s := c.currentSession()
	if s == nil {
		return apperrors.NoSession(c.dev.Name)
	}
	return s.SetDeviceConfig(ctx, key, value, description)
}
