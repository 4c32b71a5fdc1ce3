package server

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/device"
)

// channelBufferSize is the buffer size for the broadcast channel and the
// per-client send channels. Events beyond the buffer are dropped for slow
// clients rather than blocking the push-delivery goroutine.
const channelBufferSize = 64

// Hub fans device change notifications out to websocket clients and any
// extra sinks (the MQTT notifier). Publish is non-blocking.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*wsClient]bool
	sinks     []func(device.Event)
	broadcast chan device.Event
	stopped   bool
}

// NewHub creates a Hub; Run must be started on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*wsClient]bool),
		broadcast: make(chan device.Event, channelBufferSize),
	}
}

// AddSink registers an additional event consumer. Registration is
// startup-time only.
func (h *Hub) AddSink(fn func(device.Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, fn)
}

// Publish queues an event for delivery. Never blocks; when the broadcast
// channel is full the event is dropped with a warning.
func (h *Hub) Publish(ev device.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Warn().Str("device", ev.Device).Msg("broadcast channel full, dropping event")
	}
}

// Run delivers queued events until Stop closes the channel.
func (h *Hub) Run() {
	for ev := range h.broadcast {
		h.mu.RLock()
		for _, sink := range h.sinks {
			sink(ev)
		}
		for client := range h.clients {
			select {
			case client.send <- ev:
			default:
				// Slow client; drop this event for it.
			}
		}
		h.mu.RUnlock()
	}
}

// Stop closes the broadcast channel and disconnects all clients.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	close(h.broadcast)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) addClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) removeClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}
