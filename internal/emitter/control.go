package emitter

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Command is a painter event received on the control topic
type Command struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StartControl subscribes to <prefix>/control and dispatches every command
// as if a websocket client without a reply channel had sent it
func (e *Emitter) StartControl(d Dispatcher) error {
	e.mu.RLock()
	broker := e.broker
	e.mu.RUnlock()
	if broker == nil {
		return fmt.Errorf("mqtt not connected")
	}

	topic := e.Topic("control")
	e.logger.Info("subscribing to control topic", "topic", topic, "qos", e.cfg.QoS)

	token := broker.Subscribe(topic, e.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		e.handleControl(d, msg)
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("control topic subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control topic subscription failed: %w", err)
	}
	return nil
}

// StopControl unsubscribes from the control topic
func (e *Emitter) StopControl() {
	e.mu.RLock()
	broker := e.broker
	e.mu.RUnlock()
	if broker == nil {
		return
	}

	token := broker.Unsubscribe(e.Topic("control"))
	token.WaitTimeout(subscribeTimeout)
}

func (e *Emitter) handleControl(d Dispatcher, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil || cmd.Event == "" {
		e.countError()
		e.logger.Warn("ignoring malformed control command", "topic", msg.Topic())
		return
	}

	e.mu.Lock()
	e.received++
	e.mu.Unlock()

	var payload any
	if len(cmd.Data) > 0 {
		payload = []byte(cmd.Data)
		var text string
		if json.Unmarshal(cmd.Data, &text) == nil {
			payload = text
		}
	}
	out := d.Dispatch(nil, cmd.Event, payload)
	e.logger.Debug("control command handled", "event", cmd.Event, "result", out.Result.String(), "reason", out.Reason)
}
