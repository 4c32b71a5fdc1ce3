package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tvcompanion/host/internal/control"
	"github.com/tvcompanion/host/internal/device"
	"github.com/tvcompanion/host/internal/preset"
	"github.com/tvcompanion/host/internal/transport"
)

// unreachableFactory always fails; the handlers under test never need a
// live session.
type unreachableFactory struct{}

func (unreachableFactory) CreateSession(context.Context, string, int) (transport.Session, error) {
	return nil, errors.New("unreachable")
}

func testServer(t *testing.T) (*Server, *control.Controller) {
	t.Helper()

	dev := device.New("living-room", "192.168.1.40", device.Options{})
	c := control.New(dev, control.Options{
		Factory: unreachableFactory{},
		Presets: []*preset.Preset{{Name: "movie-night", Steps: []string{"HOME"}}},
	})

	hub := NewHub()
	t.Cleanup(hub.Stop)
	go hub.Run()

	return New("127.0.0.1:0", map[string]*control.Controller{"living-room": c}, hub, nil), c
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestListDevices(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var rows []deviceStatus
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Name != "living-room" || rows[0].State != device.StateUnknown || rows[0].Connected {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestUnknownDevice(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/devices/basement/")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListActionsViews(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/devices/living-room/actions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var all []json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if len(all) == 0 {
		t.Fatal("no actions returned")
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/devices/living-room/actions?view=quick")
	var quick []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&quick); err != nil {
		t.Fatal(err)
	}
	if len(quick) != 4 || quick[0].Name != "backlight" {
		t.Errorf("quick view = %+v, want the default four picture settings", quick)
	}
}

func TestExecuteUnknownActionReturns404(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/devices/living-room/actions/ghost")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRunUnknownPresetReturns404(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/devices/living-room/presets/ghost")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPowerOffNonActiveDeviceSucceeds(t *testing.T) {
	srv, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/devices/living-room/power/off")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.OK {
		t.Error("ok = false for non-active device, want true")
	}
}

func TestHubDeliversToSinks(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	got := make(chan device.Event, 1)
	hub.AddSink(func(ev device.Event) { got <- ev })
	go hub.Run()

	hub.Publish(device.Event{Device: "tv", Kind: device.EventPowerState, State: device.StateActive})

	select {
	case ev := <-got:
		if ev.Device != "tv" || ev.State != device.StateActive {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("sink did not receive the event")
	}
}

func TestHubPublishAfterStopIsSafe(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	// Must not panic on the closed channel.
	hub.Publish(device.Event{Device: "tv"})
}
