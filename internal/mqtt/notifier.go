// Package mqtt publishes device change notifications to an MQTT broker
// for home-automation integration. Publishing is fire-and-forget: broker
// trouble is logged and never affects device control.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/device"
)

// Config holds MQTT connection settings.
type Config struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	ClientID  string `toml:"client_id"`
	TopicBase string `toml:"topic_base"`
}

// Notifier publishes device events to the broker.
type Notifier struct {
	client    paho.Client
	topicBase string

	mu        sync.RWMutex
	connected bool
}

// NewNotifier creates a Notifier. Connect must be called before events
// are delivered; events published while disconnected are dropped.
func NewNotifier(cfg Config) *Notifier {
	if cfg.ClientID == "" {
		cfg.ClientID = "tvcompanion"
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = "tvcompanion"
	}

	n := &Notifier{topicBase: cfg.TopicBase}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(paho.Client) {
		log.Info().Msg("mqtt connected")
		n.mu.Lock()
		n.connected = true
		n.mu.Unlock()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
		n.mu.Lock()
		n.connected = false
		n.mu.Unlock()
	})

	n.client = paho.NewClient(opts)
	return n
}

// Connect starts the MQTT connection. With connect-retry enabled the call
// succeeds once the broker is first reachable.
func (n *Notifier) Connect() error {
	token := n.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Publish sends one device event. Topic layout is
// {base}/{device}/{kind}, retained so integrations see the latest state
// on subscribe.
func (n *Notifier) Publish(ev device.Event) {
	n.mu.RLock()
	connected := n.connected
	n.mu.RUnlock()
	if !connected {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("could not marshal device event")
		return
	}

	topic := fmt.Sprintf("%s/%s/%s", n.topicBase, ev.Device, ev.Kind)
	token := n.client.Publish(topic, 0, true, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	n.client.Disconnect(250)
}
