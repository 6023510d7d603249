package emitter

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fkcurrie/led-matrix-painter/internal/router"
	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

type fakeBroker struct {
	mu        sync.Mutex
	published []message
	handlers  map[string]mqtt.MessageHandler
	failWith  error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, message{Topic: topic, QoS: qos, Retained: retained, Payload: payload.([]byte)})
	return doneToken{err: b.failWith}
}

func (b *fakeBroker) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = callback
	return doneToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		delete(b.handlers, t)
	}
	return doneToken{}
}

func (b *fakeBroker) messages() []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]message(nil), b.published...)
}

func (b *fakeBroker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	h(nil, &fakeMessage{topic: topic, payload: payload})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestEmitter(encoding string) (*Emitter, *fakeBroker) {
	e := NewEmitter(types.MQTTConfig{TopicPrefix: "matrix", QoS: 1, Encoding: encoding}, quietLogger())
	b := newFakeBroker()
	e.UseBroker(b)
	return e, b
}

func TestTapMirrorsState(t *testing.T) {
	e, b := newTestEmitter("json")

	e.Tap(router.BroadcastState, types.State{Width: 2, Height: 1, Frame: []int{1, 0}})

	msgs := b.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "matrix/state", msgs[0].Topic)
	assert.Equal(t, byte(1), msgs[0].QoS)
	assert.True(t, msgs[0].Retained)
	assert.JSONEq(t, `{"w": 2, "h": 1, "frame": [1, 0]}`, string(msgs[0].Payload))
	assert.Equal(t, "matrix/pixels_gs3", msgs[1].Topic)
	assert.Equal(t, "7,0", string(msgs[1].Payload))

	require.Eventually(t, func() bool {
		return e.Stats().Published["matrix/state"] == 1 && e.Stats().Published["matrix/pixels_gs3"] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTapMirrorsIconsAsMsgpack(t *testing.T) {
	e, b := newTestEmitter("msgpack")
	icons := []types.Icon{{Name: "smile", Frame: []int{1, 0}}}

	e.Tap(router.BroadcastIcons, icons)
	e.Tap("something_else", 1)

	msgs := b.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "matrix/icons", msgs[0].Topic)

	var decoded []types.Icon
	require.NoError(t, msgpack.Unmarshal(msgs[0].Payload, &decoded))
	assert.Equal(t, icons, decoded)
}

func TestPublishFailureCountsError(t *testing.T) {
	e, b := newTestEmitter("json")
	b.failWith = errors.New("broker gone")

	e.Tap(router.BroadcastIcons, []types.Icon{})
	require.Eventually(t, func() bool { return e.Stats().Errors == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, e.Stats().Published)
}

func TestTapWithoutBroker(t *testing.T) {
	e := NewEmitter(types.MQTTConfig{TopicPrefix: "m"}, quietLogger())
	e.Tap(router.BroadcastIcons, []types.Icon{})

	stats := e.Stats()
	assert.False(t, stats.Connected)
	assert.Equal(t, uint64(1), stats.Errors)
}

func TestTopic(t *testing.T) {
	e := NewEmitter(types.MQTTConfig{}, quietLogger())
	assert.Equal(t, "state", e.Topic("state"))

	e = NewEmitter(types.MQTTConfig{TopicPrefix: "lab/matrix"}, quietLogger())
	assert.Equal(t, "lab/matrix/state", e.Topic("state"))
}

type call struct {
	client  router.Client
	event   string
	payload any
}

type recordingDispatcher struct {
	calls []call
}

func (d *recordingDispatcher) Dispatch(client router.Client, event string, payload any) router.Outcome {
	d.calls = append(d.calls, call{client: client, event: event, payload: payload})
	return router.Outcome{Result: types.Applied}
}

func TestControlDispatchesCommands(t *testing.T) {
	e, b := newTestEmitter("json")
	d := &recordingDispatcher{}
	require.NoError(t, e.StartControl(d))

	b.deliver("matrix/control", []byte(`{"event": "set_xy", "data": {"x": 1, "y": 0}}`))
	b.deliver("matrix/control", []byte(`{"event": "clear"}`))
	b.deliver("matrix/control", []byte(`{"event": "load_icon", "data": "{\"name\": \"smile\"}"}`))
	b.deliver("matrix/control", []byte(`not json`))
	b.deliver("matrix/control", []byte(`{"data": {}}`))

	require.Len(t, d.calls, 3)
	assert.Nil(t, d.calls[0].client)
	assert.Equal(t, "set_xy", d.calls[0].event)
	assert.Equal(t, router.Payload{"x": 1.0, "y": 0.0}, router.DecodePayload(d.calls[0].payload))
	assert.Equal(t, "clear", d.calls[1].event)
	assert.Nil(t, d.calls[1].payload)
	assert.Equal(t, `{"name": "smile"}`, d.calls[2].payload)

	stats := e.Stats()
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(2), stats.Errors)

	e.StopControl()
	assert.Empty(t, b.handlers)
}

func TestControlRequiresBroker(t *testing.T) {
	e := NewEmitter(types.MQTTConfig{}, quietLogger())
	assert.Error(t, e.StartControl(&recordingDispatcher{}))
}
