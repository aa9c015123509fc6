package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/termhost/backend/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultQueueSize is the per-connection outbound frame limit.
	DefaultQueueSize = 256
)

// Hub fans published events out to subscribed WebSocket connections.
// It implements terminal.Sink.
type Hub struct {
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	queueSize int

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

var _ terminal.Sink = (*Hub)(nil)

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics, queueSize int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		logger:    logger,
		metrics:   metrics,
		queueSize: queueSize,
		clients:   make(map[*client]struct{}),
	}
}

// Publish delivers ev to every connection subscribed to its name. A
// connection whose queue is full is dropped; Publish never blocks on a
// slow client.
func (h *Hub) Publish(_ context.Context, ev terminal.Event) error {
	frame, err := sonic.Marshal(EventFrame{
		Type:    TypeEvent,
		Event:   ev.Name,
		Payload: ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Name, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.subscribed(ev.Name) {
			continue
		}
		if !c.enqueue(frame) {
			h.logger.Warn("Dropping slow websocket client",
				zap.String("conn_id", c.id.String()),
				zap.String("event", ev.Name))
			c.close()
			continue
		}
		h.metrics.RecordWSMessage("out", TypeEvent)
	}
	return nil
}

// Len returns the number of registered connections
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(conn *websocket.Conn) (*client, error) {
	c := &client{
		id:     id.NewConnID(),
		conn:   conn,
		send:   make(chan []byte, h.queueSize),
		subs:   make(map[string]struct{}),
		closed: make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("hub closed")
	}
	h.clients[c] = struct{}{}
	h.metrics.IncWSConnections()
	return c, nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.DecWSConnections()
	}
	h.mu.Unlock()
	c.close()
}

// client is one WebSocket connection. All writes go through send so the
// write pump is the only writer on conn.
type client struct {
	id   id.ConnID
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	subs map[string]struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *client) subscribe(event string) {
	c.mu.Lock()
	c.subs[event] = struct{}{}
	c.mu.Unlock()
}

func (c *client) unsubscribe(event string) {
	c.mu.Lock()
	delete(c.subs, event)
	c.mu.Unlock()
}

func (c *client) subscribed(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[Wildcard]; ok {
		return true
	}
	_, ok := c.subs[event]
	return ok
}

// enqueue reports false when the client is closed or its queue is full
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// writePump drains the send queue and keeps the connection alive with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
