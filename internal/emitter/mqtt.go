// Package emitter mirrors frame and icon broadcasts to an MQTT broker and
// accepts painter events from an MQTT control topic.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fkcurrie/led-matrix-painter/internal/framebuffer"
	"github.com/fkcurrie/led-matrix-painter/internal/router"
	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

const (
	publishTimeout   = 2 * time.Second
	subscribeTimeout = 5 * time.Second
)

// Broker is the subset of an MQTT client the emitter uses
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Dispatcher applies an inbound painter event
type Dispatcher interface {
	Dispatch(client router.Client, event string, payload any) router.Outcome
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Received  uint64
	Errors    uint64
}

// Emitter publishes broadcasts to MQTT topics under a common prefix
type Emitter struct {
	cfg    types.MQTTConfig
	logger *slog.Logger
	client mqtt.Client

	mu        sync.RWMutex
	broker    Broker
	connected bool
	published map[string]uint64
	received  uint64
	errors    uint64
}

// NewEmitter creates an emitter; call Connect or UseBroker before use
func NewEmitter(cfg types.MQTTConfig, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		cfg:       cfg,
		logger:    logger.With("component", "mqtt"),
		published: make(map[string]uint64),
	}
}

// Connect establishes the connection to the configured broker
func (e *Emitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect", "broker", e.cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	e.logger.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection aborted: %w", ctx.Err())
	case <-time.After(subscribeTimeout):
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.client = client
	e.UseBroker(client)
	return nil
}

// UseBroker wires an already connected broker
func (e *Emitter) UseBroker(b Broker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broker = b
	e.connected = true
}

// Disconnect closes the MQTT connection
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.logger.Info("mqtt disconnected")
	}
	e.setConnected(false)
}

// Topic returns the full topic for a suffix
func (e *Emitter) Topic(suffix string) string {
	if e.cfg.TopicPrefix == "" {
		return suffix
	}
	return e.cfg.TopicPrefix + "/" + suffix
}

// Tap mirrors a hub broadcast. state_update goes to <prefix>/state (plus the
// encoded frame on <prefix>/pixels_gs3), icons_list to <prefix>/icons. Both
// are retained so late subscribers see the current value.
func (e *Emitter) Tap(event string, payload any) {
	switch event {
	case router.BroadcastState:
		e.publish(e.Topic("state"), payload)
		if state, ok := payload.(types.State); ok {
			e.publishRaw(e.Topic("pixels_gs3"), []byte(framebuffer.Encode(state.Frame)))
		}
	case router.BroadcastIcons:
		e.publish(e.Topic("icons"), payload)
	}
}

func (e *Emitter) publish(topic string, payload any) {
	data, err := e.marshal(payload)
	if err != nil {
		e.countError()
		e.logger.Error("failed to encode mqtt payload", "topic", topic, "error", err)
		return
	}
	e.publishRaw(topic, data)
}

func (e *Emitter) publishRaw(topic string, data []byte) {
	e.mu.RLock()
	broker, connected := e.broker, e.connected
	e.mu.RUnlock()

	if broker == nil || !connected {
		e.countError()
		e.logger.Debug("mqtt not connected, dropping publish", "topic", topic)
		return
	}

	token := broker.Publish(topic, e.cfg.QoS, true, data)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			e.countError()
			e.logger.Warn("mqtt publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			e.countError()
			e.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
			return
		}

		e.mu.Lock()
		e.published[topic]++
		e.mu.Unlock()
	}()
}

func (e *Emitter) marshal(payload any) ([]byte, error) {
	if e.cfg.Encoding == "msgpack" {
		return msgpack.Marshal(payload)
	}
	return json.Marshal(payload)
}

// Stats returns emitter statistics
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Received:  e.received,
		Errors:    e.errors,
	}
}

func (e *Emitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
