package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/pkg/logger"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 5 * time.Second
)

// HubOption applies a configuration option to the Hub.
type HubOption func(*Hub)

// WithSendBuffer sets how many events a client may lag behind before it is dropped.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds each websocket write.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithHubLogger sets the hub logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// Client is one websocket subscriber.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Done is closed once the client's connection is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Hub broadcasts events as JSON text frames to websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	sendBuffer   int
	writeTimeout time.Duration
	log          logger.Logger
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:      make(map[*Client]struct{}),
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		log:          logger.Default().Named("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (*Hub) Name() string { return "ws" }

// Attach registers conn and starts its read and write pumps. The client is
// removed when the peer disconnects or falls behind.
func (h *Hub) Attach(conn *websocket.Conn) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.send)
		go h.writePump(c)
		return c
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return c
}

func (h *Hub) writePump(c *Client) {
	defer close(c.done)
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			// Drain so remove never blocks on a full buffer.
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards inbound frames; a read error means the peer is gone.
func (h *Hub) readPump(c *Client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends payload to every client. Clients whose buffer is full are
// disconnected.
func (h *Hub) Broadcast(payload []byte) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn(context.Background(), "websocket client too slow, disconnecting")
		h.remove(c)
	}
}

// Notify broadcasts ev as JSON.
func (h *Hub) Notify(_ context.Context, ev announce.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		<-c.done
	}
}
