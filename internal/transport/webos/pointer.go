package webos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	apperrors "github.com/tvcompanion/host/internal/errors"
)

// buttonRate paces button presses. Displays drop input frames arriving
// faster than roughly this; the limiter smooths bursts from scripted
// sequences that carry no explicit delays.
var buttonRate = rate.Every(50 * time.Millisecond)

// pointerChannel is the auxiliary input socket for button presses. The
// wire format is plain text frames, not SSAP JSON.
type pointerChannel struct {
	conn    *websocket.Conn
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func dialPointer(ctx context.Context, socketPath string) (*pointerChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketPath, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransportDialFailed, "dial pointer socket", err)
	}
	return &pointerChannel{
		conn:    conn,
		limiter: rate.NewLimiter(buttonRate, 1),
	}, nil
}

// SendButton sends one button press by key name.
func (p *pointerChannel) SendButton(ctx context.Context, name string) error {
	if p.isClosed() {
		return apperrors.New(apperrors.CodeTransportClosed, "pointer channel is closed")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	frame := fmt.Sprintf("type:button\nname:%s\n\n", name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apperrors.New(apperrors.CodeTransportClosed, "pointer channel is closed")
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		p.closed = true
		return apperrors.Wrap(apperrors.CodeTransportClosed, "pointer write failed", err)
	}
	return nil
}

func (p *pointerChannel) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close closes the input socket.
func (p *pointerChannel) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.conn.Close()
}
