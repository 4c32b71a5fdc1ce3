package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tvcompanion/host/internal/device"
	"github.com/tvcompanion/host/internal/preset"
)

func newTestController(t *testing.T, factory *fakeFactory, wake *fakeWake, clock *fakeClock, opts Options) (*Controller, *device.Device) {
	t.Helper()
	dev := device.New("tv", "192.168.1.40", device.Options{Now: clock.Clock().Now})
	dev.HardwareAddr = "aa:bb:cc:dd:ee:ff"

	opts.Factory = factory
	opts.Wake = wake
	opts.Clock = clock.Clock()
	return New(dev, opts), dev
}

func TestIsConnectedLifecycle(t *testing.T) {
	factory := &fakeFactory{}
	c, _ := newTestController(t, factory, &fakeWake{}, newFakeClock(), Options{})

	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}

	if !c.Connect(context.Background(), 1) {
		t.Fatal("Connect() = false, want true")
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after successful Connect")
	}

	// Transport closure flips IsConnected back to false.
	factory.last().Close()
	if c.IsConnected() {
		t.Error("IsConnected() = true after session closed")
	}
}

func TestConnectFailure(t *testing.T) {
	factory := &fakeFactory{failures: 10}
	c, _ := newTestController(t, factory, &fakeWake{}, newFakeClock(), Options{})

	if c.Connect(context.Background(), 1) {
		t.Error("Connect() = true with failing factory")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed Connect")
	}
}

func TestConnectArmsSubscriptions(t *testing.T) {
	factory := &fakeFactory{}
	c, dev := newTestController(t, factory, &fakeWake{}, newFakeClock(), Options{})

	if !c.Connect(context.Background(), 1) {
		t.Fatal("Connect() = false, want true")
	}

	factory.last().pushPower("Active", "")
	if got := dev.State(); got != device.StateActive {
		t.Errorf("State() = %v after Active push, want %v", got, device.StateActive)
	}

	if got := c.ModelName(); got != "FAKE-55" {
		t.Errorf("ModelName() = %q, want %q", got, "FAKE-55")
	}
}

func TestConcurrentConnectSharesOneRebuild(t *testing.T) {
	block := make(chan struct{})
	factory := &fakeFactory{block: block}
	c, _ := newTestController(t, factory, &fakeWake{}, newFakeClock(), Options{})

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Connect(context.Background(), 1)
		}(i)
	}

	// Both callers are now either rebuilding or waiting on the gate.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if factory.created() != 1 {
		t.Errorf("sessions created = %d, want 1", factory.created())
	}
	for i, ok := range results {
		if !ok {
			t.Errorf("caller %d: Connect() = false, want true", i)
		}
	}
}

func TestConnectedGuard(t *testing.T) {
	factory := &fakeFactory{}
	c, dev := newTestController(t, factory, &fakeWake{}, newFakeClock(), Options{})
	ctx := context.Background()

	if !c.Connected(ctx, false, 1) {
		t.Fatal("Connected() = false, want true")
	}
	if factory.created() != 1 {
		t.Fatalf("sessions created = %d, want 1", factory.created())
	}

	// A live session with a matching address is reused.
	if !c.Connected(ctx, false, 1) {
		t.Fatal("Connected() = false on reuse")
	}
	if factory.created() != 1 {
		t.Errorf("sessions created = %d after reuse, want 1", factory.created())
	}

	// An address change forces a rebuild.
	dev.Address = "192.168.1.41"
	if !c.Connected(ctx, false, 1) {
		t.Fatal("Connected() = false after address change")
	}
	if factory.created() != 2 {
		t.Errorf("sessions created = %d after address change, want 2", factory.created())
	}

	// reconnect=true forces a rebuild too.
	if !c.Connected(ctx, true, 1) {
		t.Fatal("Connected() = false with reconnect")
	}
	if factory.created() != 3 {
		t.Errorf("sessions created = %d after forced reconnect, want 3", factory.created())
	}
}

func TestPresetLookupIsCaseInsensitive(t *testing.T) {
	c, _ := newTestController(t, &fakeFactory{}, &fakeWake{}, newFakeClock(), Options{
		Presets: []*preset.Preset{{Name: "Movie-Night", Steps: []string{"HOME"}}},
	})

	if c.Preset("movie-night") == nil {
		t.Error("Preset(movie-night) = nil")
	}
	if c.Preset("MOVIE-NIGHT") == nil {
		t.Error("Preset(MOVIE-NIGHT) = nil")
	}
	if c.Preset("ghost") != nil {
		t.Error("Preset(ghost) != nil, want nil")
	}
}

func TestConnectDisposesOldSession(t *testing.T) {
	factory := &fakeFactory{}
	c, _ := newTestController(t, factory, &fakeWake{}, newFakeClock(), Options{})
	ctx := context.Background()

	if !c.Connect(ctx, 1) {
		t.Fatal("first Connect failed")
	}
	first := factory.last()

	if !c.Connect(ctx, 1) {
		t.Fatal("second Connect failed")
	}
	if !first.IsClosed() {
		t.Error("old session not closed on rebuild")
	}
}
