// Package webos implements the transport boundary for webOS displays over
// the SSAP websocket protocol. One Session owns one websocket connection
// plus an optional pointer input socket; requests are correlated to
// responses by message id, and subscriptions deliver pushes on the
// session's single read goroutine.
package webos

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/tvcompanion/host/internal/errors"
	"github.com/tvcompanion/host/internal/transport"
)

// requestTimeout bounds any single request/response round trip when the
// caller's context carries no earlier deadline.
const requestTimeout = 10 * time.Second

// Session is a live SSAP channel to one display.
type Session struct {
	conn    *websocket.Conn
	address string

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan message
	subs      map[string]func(json.RawMessage)
	handshake chan message
	apps      []transport.App
	pointer   *pointerChannel
	closed    bool
	closedCh  chan struct{}
}

func newSession(conn *websocket.Conn, address string) *Session {
	s := &Session{
		conn:      conn,
		address:   address,
		pending:   make(map[string]chan message),
		subs:      make(map[string]func(json.RawMessage)),
		handshake: make(chan message, 4),
		closedCh:  make(chan struct{}),
	}
	go s.readPump()
	return s
}

// readPump is the session's single delivery goroutine. It dispatches
// responses to their pending waiters and pushes to their subscription
// callbacks until the connection dies.
func (s *Session) readPump() {
	defer s.markClosed()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("address", s.address).Msg("ssap read ended")
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Str("address", s.address).Msg("malformed ssap frame")
			continue
		}

		// Handshake frames share one id and may arrive as several frames
		// (prompt shown, then registered); they bypass the pending map.
		if msg.ID == registerID {
			select {
			case s.handshake <- msg:
			default:
			}
			continue
		}

		s.mu.Lock()
		if ch, ok := s.pending[msg.ID]; ok {
			delete(s.pending, msg.ID)
			s.mu.Unlock()
			ch <- msg
			continue
		}
		cb := s.subs[msg.ID]
		s.mu.Unlock()

		if cb != nil && msg.Type != typeError {
			cb(msg.Payload)
		}
	}
}

func (s *Session) markClosed() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.pending
	s.pending = make(map[string]chan message)
	close(s.closedCh)
	s.mu.Unlock()

	for id, ch := range pending {
		ch <- message{ID: id, Type: typeError, Error: "connection closed"}
	}
}

func (s *Session) writeMessage(msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// request performs one correlated round trip. The payload must marshal to
// JSON; a nil payload sends an empty object.
func (s *Session) request(ctx context.Context, uri string, payload any) (json.RawMessage, error) {
	if s.IsClosed() {
		return nil, apperrors.SessionClosed(s.address)
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	id := uuid.NewString()
	ch := make(chan message, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.writeMessage(message{ID: id, Type: typeRequest, URI: uri, Payload: raw}); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, apperrors.Wrap(apperrors.CodeTransportClosed, "ssap write failed", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	select {
	case msg := <-ch:
		if msg.Type == typeError {
			return nil, apperrors.Rejected(uri, msg.Error)
		}
		var env responseEnvelope
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeTransportBadPayload, "decode ssap response", err)
			}
			if env.ErrorText != "" && !env.ReturnValue {
				return nil, apperrors.Rejected(uri, env.ErrorText)
			}
		}
		return msg.Payload, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, ctx.Err()
	case <-s.closedCh:
		return nil, apperrors.SessionClosed(s.address)
	}
}

// subscribe arms a push subscription. The callback receives every payload
// pushed for the subscription id, including the immediate initial state.
func (s *Session) subscribe(uri string, payload any, cb func(json.RawMessage)) error {
	if s.IsClosed() {
		return apperrors.SessionClosed(s.address)
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = data
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.subs[id] = cb
	s.mu.Unlock()

	if err := s.writeMessage(message{ID: id, Type: typeSubscribe, URI: uri, Payload: raw}); err != nil {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		return apperrors.Wrap(apperrors.CodeTransportClosed, "ssap subscribe failed", err)
	}
	return nil
}

// GetSystemInfo fetches a single system information value by key.
func (s *Session) GetSystemInfo(ctx context.Context, key string) (string, error) {
	payload, err := s.request(ctx, uriSystemInfo, nil)
	if err != nil {
		return "", err
	}
	var info map[string]any
	if err := json.Unmarshal(payload, &info); err != nil {
		return "", apperrors.Wrap(apperrors.CodeTransportBadPayload, "decode system info", err)
	}
	if v, ok := info[key].(string); ok {
		return v, nil
	}
	return "", apperrors.New(apperrors.CodeTransportBadPayload,
		fmt.Sprintf("system info has no %q", key))
}

// SubscribePowerState arms the power-state push subscription.
func (s *Session) SubscribePowerState(cb func(transport.PowerStateEvent)) error {
	return s.subscribe(uriPowerState, nil, func(raw json.RawMessage) {
		var p powerStatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn().Err(err).Str("address", s.address).Msg("malformed power state push")
			return
		}
		cb(transport.PowerStateEvent{State: p.State, Processing: p.Processing})
	})
}

// SubscribePictureSettings arms the picture-settings push subscription.
func (s *Session) SubscribePictureSettings(cb func(transport.PictureSettingsEvent)) error {
	req := map[string]any{
		"category": "picture",
		"keys":     []string{"backlight", "contrast", "brightness", "color"},
	}
	return s.subscribe(uriGetSettings, req, func(raw json.RawMessage) {
		var p settingsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn().Err(err).Str("address", s.address).Msg("malformed settings push")
			return
		}
		cb(transport.PictureSettingsEvent{
			Backlight:  intField(p.Settings, "backlight"),
			Contrast:   intField(p.Settings, "contrast"),
			Brightness: intField(p.Settings, "brightness"),
			Color:      intField(p.Settings, "color"),
		})
	})
}

// SubscribeForegroundApp arms the foreground-app push subscription.
func (s *Session) SubscribeForegroundApp(cb func(transport.ForegroundAppEvent)) error {
	return s.subscribe(uriForegroundApp, nil, func(raw json.RawMessage) {
		var p foregroundAppPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn().Err(err).Str("address", s.address).Msg("malformed foreground app push")
			return
		}
		cb(transport.ForegroundAppEvent{AppID: p.AppID})
	})
}

// intField extracts a numeric settings member as *int; nil when absent.
// Settings arrive as JSON numbers, hence the float64 intermediate.
func intField(settings map[string]any, key string) *int {
	v, ok := settings[key]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

// SetSystemSetting applies a named system setting.
func (s *Session) SetSystemSetting(ctx context.Context, name string, value any, category string) error {
	if category == "" {
		category = "picture"
	}
	req := map[string]any{
		"category": category,
		"settings": map[string]any{name: value},
	}
	_, err := s.request(ctx, uriSetSettings, req)
	return err
}

// SetConfig applies a raw configuration key.
func (s *Session) SetConfig(ctx context.Context, key, value string) error {
	req := map[string]any{
		"configs": map[string]any{key: value},
	}
	_, err := s.request(ctx, uriSetDeviceConfig, req)
	return err
}

// SetDeviceConfig applies a configuration key with a description. The
// description travels in the request so the device's own UI can display
// what changed.
func (s *Session) SetDeviceConfig(ctx context.Context, key, value, description string) error {
	req := map[string]any{
		"configs":     map[string]any{key: value},
		"description": description,
	}
	_, err := s.request(ctx, uriSetDeviceConfig, req)
	return err
}

// LaunchApp starts an application, optionally with launch parameters.
func (s *Session) LaunchApp(ctx context.Context, appID string, params map[string]any) error {
	req := map[string]any{"id": appID}
	if len(params) > 0 {
		req["params"] = params
	}
	_, err := s.request(ctx, uriLaunchApp, req)
	return err
}

// Apps lists installed applications. The list is cached per session;
// force bypasses the cache.
func (s *Session) Apps(ctx context.Context, force bool) ([]transport.App, error) {
	s.mu.Lock()
	cached := s.apps
	s.mu.Unlock()
	if cached != nil && !force {
		return cached, nil
	}

	payload, err := s.request(ctx, uriListApps, nil)
	if err != nil {
		return nil, err
	}
	var p listAppsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransportBadPayload, "decode app list", err)
	}

	apps := make([]transport.App, 0, len(p.Apps))
	for _, a := range p.Apps {
		apps = append(apps, transport.App{ID: a.ID, Title: a.Title})
	}
	s.mu.Lock()
	s.apps = apps
	s.mu.Unlock()
	return apps, nil
}

// IsMuted reports the current audio mute state.
func (s *Session) IsMuted(ctx context.Context) (bool, error) {
	payload, err := s.request(ctx, uriAudioStatus, nil)
	if err != nil {
		return false, err
	}
	var p audioStatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, apperrors.Wrap(apperrors.CodeTransportBadPayload, "decode audio status", err)
	}
	return p.Mute, nil
}

// PointerChannel opens the button input channel, reusing an open one.
func (s *Session) PointerChannel(ctx context.Context) (transport.Pointer, error) {
	s.mu.Lock()
	if s.pointer != nil && !s.pointer.isClosed() {
		p := s.pointer
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	payload, err := s.request(ctx, uriPointerSocket, nil)
	if err != nil {
		return nil, err
	}
	var p pointerSocketPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransportBadPayload, "decode pointer socket", err)
	}

	ptr, err := dialPointer(ctx, p.SocketPath)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.pointer = ptr
	s.mu.Unlock()
	return ptr, nil
}

// TurnOff powers the display off.
func (s *Session) TurnOff(ctx context.Context) error {
	_, err := s.request(ctx, uriTurnOff, nil)
	return err
}

// TurnScreenOff blanks the panel while leaving the device running.
func (s *Session) TurnScreenOff(ctx context.Context) error {
	_, err := s.request(ctx, uriScreenOff, map[string]any{"standbyMode": "active"})
	return err
}

// TurnScreenOn restores the panel.
func (s *Session) TurnScreenOn(ctx context.Context) error {
	_, err := s.request(ctx, uriScreenOn, map[string]any{"standbyMode": "active"})
	return err
}

// BoundAddress returns the network address this session was dialed to.
func (s *Session) BoundAddress() string {
	return s.address
}

// IsClosed reports whether the websocket has signaled closure.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close disposes the session and its pointer channel.
func (s *Session) Close() error {
	s.mu.Lock()
	ptr := s.pointer
	s.pointer = nil
	s.mu.Unlock()

	if ptr != nil {
		_ = ptr.Close()
	}
	err := s.conn.Close()
	s.markClosed()
	return err
}
