package control

// fakes_test.go holds the fake transport, wake sender, and clock shared by
// the control package tests. The fake clock advances instantly on Sleep so
// retry cadences are asserted without real waiting.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tvcompanion/host/internal/transport"
)

// fakeClock advances a virtual time on Sleep and records every sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Clock() Clock {
	return Clock{
		Now: func() time.Time {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.now
		},
		Sleep: func(_ context.Context, d time.Duration) {
			if d <= 0 {
				return
			}
			c.mu.Lock()
			c.sleeps = append(c.sleeps, d)
			c.now = c.now.Add(d)
			c.mu.Unlock()
		},
	}
}

// advance moves virtual time without recording a sleep, simulating time
// consumed by work.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// fakePointer records button presses.
type fakePointer struct {
	mu      sync.Mutex
	buttons []string
	closed  bool
}

func (p *fakePointer) SendButton(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buttons = append(p.buttons, name)
	return nil
}

func (p *fakePointer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakeSession implements transport.Session with scriptable failures.
type fakeSession struct {
	mu sync.Mutex

	address string
	closed  bool

	powerCB   func(transport.PowerStateEvent)
	pictureCB func(transport.PictureSettingsEvent)
	appCB     func(transport.ForegroundAppEvent)

	settings      []settingCall
	settingErrs   []error
	deviceConfigs []deviceConfigCall
	launches      []launchCall
	launchErrs    []error

	pointer *fakePointer

	turnOffCalls int
	turnOffErrs  []error
	turnOffBlock bool

	screenOffCalls int
	screenOnCalls  int
}

type settingCall struct {
	name     string
	value    any
	category string
}

type deviceConfigCall struct {
	key, value, description string
}

type launchCall struct {
	appID  string
	params map[string]any
}

func newFakeSession(address string) *fakeSession {
	return &fakeSession{address: address, pointer: &fakePointer{}}
}

func (s *fakeSession) GetSystemInfo(context.Context, string) (string, error) {
	return "FAKE-55", nil
}

func (s *fakeSession) SubscribePowerState(cb func(transport.PowerStateEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powerCB = cb
	return nil
}

func (s *fakeSession) SubscribePictureSettings(cb func(transport.PictureSettingsEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pictureCB = cb
	return nil
}

func (s *fakeSession) SubscribeForegroundApp(cb func(transport.ForegroundAppEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appCB = cb
	return nil
}

func (s *fakeSession) pushPower(state, processing string) {
	s.mu.Lock()
	cb := s.powerCB
	s.mu.Unlock()
	if cb != nil {
		cb(transport.PowerStateEvent{State: state, Processing: processing})
	}
}

func (s *fakeSession) SetSystemSetting(_ context.Context, name string, value any, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.settingErrs) > 0 {
		err := s.settingErrs[0]
		s.settingErrs = s.settingErrs[1:]
		return err
	}
	s.settings = append(s.settings, settingCall{name, value, category})
	return nil
}

func (s *fakeSession) SetConfig(context.Context, string, string) error { return nil }

func (s *fakeSession) SetDeviceConfig(_ context.Context, key, value, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceConfigs = append(s.deviceConfigs, deviceConfigCall{key, value, description})
	return nil
}

func (s *fakeSession) LaunchApp(_ context.Context, appID string, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launches = append(s.launches, launchCall{appID, params})
	if len(s.launchErrs) > 0 {
		err := s.launchErrs[0]
		s.launchErrs = s.launchErrs[1:]
		return err
	}
	return nil
}

func (s *fakeSession) Apps(context.Context, bool) ([]transport.App, error) { return nil, nil }

func (s *fakeSession) IsMuted(context.Context) (bool, error) { return false, nil }

func (s *fakeSession) PointerChannel(context.Context) (transport.Pointer, error) {
	return s.pointer, nil
}

func (s *fakeSession) TurnOff(ctx context.Context) error {
	s.mu.Lock()
	s.turnOffCalls++
	block := s.turnOffBlock
	var err error
	if len(s.turnOffErrs) > 0 {
		err = s.turnOffErrs[0]
		s.turnOffErrs = s.turnOffErrs[1:]
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *fakeSession) TurnScreenOff(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenOffCalls++
	return nil
}

func (s *fakeSession) TurnScreenOn(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenOnCalls++
	return nil
}

func (s *fakeSession) BoundAddress() string { return s.address }

func (s *fakeSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeFactory hands out fakeSessions and counts creations. failures
// makes the first N creations fail; block, when non-nil, delays a
// creation until the channel is closed.
type fakeFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	failures int
	block    chan struct{}
}

func (f *fakeFactory) CreateSession(ctx context.Context, address string, _ int) (transport.Session, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection refused")
	}
	s := newFakeSession(address)
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeFactory) last() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

// fakeWake records wake signals; fail makes every send fail.
type fakeWake struct {
	mu    sync.Mutex
	sends []string
	fail  bool
}

func (w *fakeWake) SendWakeSignal(hardwareAddr string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sends = append(w.sends, hardwareAddr)
	if w.fail {
		return errors.New("send failed")
	}
	return nil
}

func (w *fakeWake) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sends)
}
