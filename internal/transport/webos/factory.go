package webos

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	apperrors "github.com/tvcompanion/host/internal/errors"
	"github.com/tvcompanion/host/internal/transport"
)

// DefaultPort is the plain SSAP websocket port.
const DefaultPort = 3000

// registerTimeout bounds the pairing handshake. First-time pairing waits
// for the user to accept the on-screen prompt, so this is generous.
const registerTimeout = 60 * time.Second

// KeyStore persists pairing client keys per device address. The storage
// package provides the sqlite-backed implementation; a nil store pairs
// from scratch every session.
type KeyStore interface {
	LoadClientKey(address string) (string, error)
	SaveClientKey(address, key string) error
}

// Factory creates SSAP sessions. It implements transport.Factory.
type Factory struct {
	// Keys persists client keys across sessions. Optional.
	Keys KeyStore
	// DialTimeout bounds each individual dial attempt.
	DialTimeout time.Duration
}

// NewFactory creates a Factory using the given key store.
func NewFactory(keys KeyStore) *Factory {
	return &Factory{Keys: keys, DialTimeout: 5 * time.Second}
}

// CreateSession dials address, completes the register handshake, and
// returns a live session. Dialing retries with exponential backoff up to
// retries additional attempts; a rejected pairing is terminal and does
// not retry.
func (f *Factory) CreateSession(ctx context.Context, address string, retries int) (transport.Session, error) {
	if retries < 0 {
		retries = 0
	}

	url := fmt.Sprintf("ws://%s/", hostPort(address))

	var conn *websocket.Conn
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	err := backoff.Retry(func() error {
		dialer := websocket.Dialer{HandshakeTimeout: f.DialTimeout}
		c, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, bo)
	if err != nil {
		return nil, apperrors.DialFailed(address, err)
	}

	s := newSession(conn, address)
	key, err := f.register(ctx, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	if f.Keys != nil && key != "" {
		if err := f.Keys.SaveClientKey(address, key); err != nil {
			log.Warn().Err(err).Str("address", address).Msg("could not persist client key")
		}
	}
	return s, nil
}

// register runs the pairing handshake on a fresh session. A stored client
// key skips the on-screen prompt; without one the device asks the user.
func (f *Factory) register(ctx context.Context, s *Session) (string, error) {
	var storedKey string
	if f.Keys != nil {
		k, err := f.Keys.LoadClientKey(s.address)
		if err != nil {
			log.Warn().Err(err).Str("address", s.address).Msg("could not load client key")
		} else {
			storedKey = k
		}
	}

	payload, err := json.Marshal(registerPayload{
		ForcePairing: false,
		PairingType:  "PROMPT",
		ClientKey:    storedKey,
		Manifest:     registerManifest(),
	})
	if err != nil {
		return "", err
	}

	if err := s.writeMessage(message{ID: registerID, Type: typeRegister, Payload: payload}); err != nil {
		return "", apperrors.Wrap(apperrors.CodeTransportClosed, "register write failed", err)
	}

	deadline := time.NewTimer(registerTimeout)
	defer deadline.Stop()

	// The device may answer with an intermediate response frame asking for
	// the prompt before the final registered frame arrives.
	for {
		select {
		case msg := <-s.handshake:
			switch msg.Type {
			case typeRegistered:
				var p registeredPayload
				if err := json.Unmarshal(msg.Payload, &p); err != nil {
					return "", apperrors.Wrap(apperrors.CodeTransportBadPayload, "decode registered payload", err)
				}
				return p.ClientKey, nil
			case typeError:
				return "", apperrors.New(apperrors.CodeTransportPairingDenied,
					fmt.Sprintf("pairing with %s denied: %s", s.address, msg.Error))
			case typeResponse:
				// Prompt shown on the device; keep waiting.
			default:
				return "", apperrors.New(apperrors.CodeTransportBadPayload,
					fmt.Sprintf("unexpected register answer %q", msg.Type))
			}
		case <-deadline.C:
			return "", apperrors.New(apperrors.CodeTransportPairingDenied,
				fmt.Sprintf("pairing with %s timed out", s.address))
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.closedCh:
			return "", apperrors.SessionClosed(s.address)
		}
	}
}

// hostPort appends the default SSAP port when address carries none.
func hostPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return fmt.Sprintf("%s:%d", address, DefaultPort)
}
