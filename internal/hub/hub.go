// Package hub is the websocket publish/subscribe transport between browser
// clients and the router. Messages in both directions are JSON envelopes of
// the form {"event": "...", "data": ...}.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fkcurrie/led-matrix-painter/internal/router"
)

// DefaultSendQueue is the per-client outbound buffer used when none is configured
const DefaultSendQueue = 16

// Envelope is the wire format of every websocket message
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Tap observes every broadcast (messages published without a target client)
type Tap func(event string, payload any)

// Hub tracks connected clients and routes envelopes between them and the
// subscribed handlers
type Hub struct {
	upgrader  websocket.Upgrader
	sendQueue int
	logger    *slog.Logger

	mu       sync.RWMutex
	clients  map[string]*Client
	handlers map[string]router.Handler
	taps     []Tap
}

// New creates a hub. sendQueue bounds each client's outbound buffer; a
// client whose buffer is full is disconnected.
func New(sendQueue int, logger *slog.Logger) *Hub {
	if sendQueue <= 0 {
		sendQueue = DefaultSendQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sendQueue: sendQueue,
		logger:    logger.With("component", "hub"),
		clients:   make(map[string]*Client),
		handlers:  make(map[string]router.Handler),
	}
}

// Subscribe registers h for the named inbound event, replacing any previous
// handler
func (h *Hub) Subscribe(event string, handler router.Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = handler
}

// AddTap registers an observer for broadcasts
func (h *Hub) AddTap(tap Tap) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, tap)
}

// Publish sends payload to client, or to every client when client is nil
func (h *Hub) Publish(event string, payload any, client router.Client) {
	msg, err := encode(event, payload)
	if err != nil {
		h.logger.Error("failed to encode message", "event", event, "error", err)
		return
	}

	if client != nil {
		h.mu.RLock()
		defer h.mu.RUnlock()

		c, ok := h.clients[client.ID()]
		if !ok {
			h.logger.Debug("dropping message for unknown client", "event", event, "client", client.ID())
			return
		}
		h.enqueue(c, msg)
		return
	}

	h.mu.RLock()
	for _, c := range h.clients {
		h.enqueue(c, msg)
	}
	taps := append([]Tap(nil), h.taps...)
	h.mu.RUnlock()

	for _, tap := range taps {
		tap(event, payload)
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and serves the client until
// it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendQueue),
	}
	h.register(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", "client", c.id, "remote", c.conn.RemoteAddr().String(), "clients", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client disconnected", "client", c.id, "clients", n)
}

// enqueue hands msg to the client's write pump. The caller holds h.mu.
func (h *Hub) enqueue(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("client send queue full, disconnecting", "client", c.id)
		c.conn.Close()
	}
}

func (h *Hub) dispatch(c *Client, env Envelope) {
	h.mu.RLock()
	handler, ok := h.handlers[env.Event]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug("no handler for event", "event", env.Event, "client", c.id)
		return
	}
	handler(c, decodeData(env.Data))
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// decodeData unwraps payloads that were sent as JSON text inside a string so
// the router sees the text form
func decodeData(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}
	}
	return raw
}
