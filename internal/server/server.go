// Package server exposes the local HTTP API and the websocket event
// stream consumed by control surfaces (mobile apps, dashboards, scripts).
// It holds no device state of its own; every request is delegated to the
// per-device controllers.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/control"
	"github.com/tvcompanion/host/internal/device"
	apperrors "github.com/tvcompanion/host/internal/errors"
	"github.com/tvcompanion/host/internal/storage"
)

// Server is the HTTP API and websocket stream.
type Server struct {
	addr        string
	controllers map[string]*control.Controller
	hub         *Hub
	store       *storage.Store
	upgrader    websocket.Upgrader

	httpServer *http.Server
}

// New creates a Server over the given controllers, keyed by device name.
// store may be nil when audit storage is disabled.
func New(addr string, controllers map[string]*control.Controller, hub *Hub, store *storage.Store) *Server {
	return &Server{
		addr:        addr,
		controllers: controllers,
		hub:         hub,
		store:       store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API binds to loopback or the LAN by configuration; origin
			// checks add nothing for non-browser clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start runs the HTTP server until Shutdown. Blocks.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", s.addr).Msg("api listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", s.handleListDevices)
		r.Route("/devices/{name}", func(r chi.Router) {
			r.Get("/", s.handleDeviceStatus)
			r.Post("/power/on", s.handlePowerOn)
			r.Post("/power/off", s.handlePowerOff)
			r.Post("/screen/on", s.handleScreenOn)
			r.Post("/screen/off", s.handleScreenOff)
			r.Get("/actions", s.handleListActions)
			r.Post("/actions/{action}", s.handleExecuteAction)
			r.Post("/presets/{preset}", s.handleRunPreset)
			r.Get("/history/power", s.handlePowerHistory)
			r.Get("/history/presets", s.handlePresetHistory)
		})
	})

	return r
}

// deviceStatus is the wire shape for one device's runtime state.
type deviceStatus struct {
	Name          string                 `json:"name"`
	Address       string                 `json:"address"`
	Model         string                 `json:"model,omitempty"`
	Connected     bool                   `json:"connected"`
	State         device.PowerState      `json:"state"`
	ForegroundApp string                 `json:"foreground_app,omitempty"`
	Picture       device.PictureSettings `json:"picture"`
}

func (s *Server) controller(w http.ResponseWriter, r *http.Request) *control.Controller {
	name := chi.URLParam(r, "name")
	c, ok := s.controllers[name]
	if !ok {
		writeError(w, http.StatusNotFound, apperrors.New(apperrors.CodeUnknown, "no such device"))
		return nil
	}
	return c
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.controllers))
	for name := range s.controllers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]deviceStatus, 0, len(names))
	for _, name := range names {
		out = append(out, statusOf(s.controllers[name]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, statusOf(c))
}

func statusOf(c *control.Controller) deviceStatus {
	d := c.Device()
	return deviceStatus{
		Name:          d.Name,
		Address:       d.Address,
		Model:         c.ModelName(),
		Connected:     c.IsConnected(),
		State:         d.State(),
		ForegroundApp: d.ForegroundApp(),
		Picture:       d.Picture(),
	}
}

func (s *Server) handlePowerOn(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	ok := c.PowerOn(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handlePowerOff(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	checkHdmi := r.URL.Query().Get("check_hdmi") != "false"
	ok := c.PowerOff(r.Context(), checkHdmi)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handleScreenOn(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	if err := c.ScreenOn(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleScreenOff(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	if err := c.ScreenOff(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	reg := c.Registry()
	switch r.URL.Query().Get("view") {
	case "quality":
		writeJSON(w, http.StatusOK, reg.Quality())
	case "quick":
		writeJSON(w, http.StatusOK, reg.QuickAccess(c.Device().QuickAccess))
	default:
		writeJSON(w, http.StatusOK, reg.All())
	}
}

func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}

	var body struct {
		Params []string `json:"params"`
	}
	if r.Body != nil {
		// An empty body means no parameters.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	applied, err := c.Registry().Execute(r.Context(), chi.URLParam(r, "action"), body.Params)
	if err != nil {
		status := http.StatusBadGateway
		if apperrors.IsCode(err, apperrors.CodeActionNotFound) {
			status = http.StatusNotFound
		} else if apperrors.IsCode(err, apperrors.CodeActionBadParameter) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (s *Server) handleRunPreset(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}

	p := c.Preset(chi.URLParam(r, "preset"))
	if p == nil {
		writeError(w, http.StatusNotFound, apperrors.New(apperrors.CodeUnknown, "no such preset"))
		return
	}

	force := r.URL.Query().Get("reconnect") == "true"
	ok := c.ExecutePreset(r.Context(), p, force)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handlePowerHistory(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.PowerEvent{})
		return
	}
	events, err := s.store.PowerEvents(c.Device().Name, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handlePresetHistory(w http.ResponseWriter, r *http.Request) {
	c := s.controller(w, r)
	if c == nil {
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.PresetRun{})
		return
	}
	runs, err := s.store.PresetRuns(c.Device().Name, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// wsClient is one connected websocket consumer of the event stream.
type wsClient struct {
	conn *websocket.Conn
	send chan device.Event

	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan device.Event, channelBufferSize),
	}
	s.hub.addClient(client)

	// Writer goroutine: drain the send channel onto the socket.
	go func() {
		for ev := range client.send {
			if err := conn.WriteJSON(ev); err != nil {
				break
			}
		}
		s.hub.removeClient(client)
		client.close()
	}()

	// Reader loop: we ignore client frames, but reading detects closure.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.removeClient(client)
				client.close()
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	code, message := apperrors.ToCodeAndMessage(err)
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
