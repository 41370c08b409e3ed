package handlers

import (
	"sync"
	"time"

	"chat-relay/internal/utils"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one live websocket connection. Frames are queued on send and
// written by WritePump so a slow browser never blocks a broadcast.
type Client struct {
	ID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(id string, bufSize int) *Client {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Client{ID: id, send: make(chan []byte, bufSize)}
}

// Frames exposes the outbound queue; it is closed when the client is unregistered.
func (c *Client) Frames() <-chan []byte {
	return c.send
}

func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// WritePump drains the client's queue into conn and pings it periodically.
// It returns when the queue is closed or a write fails.
func (c *Client) WritePump(conn frameWriter, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("write failed", zap.String("session", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks live connections by session id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[c.ID]; ok && old != c {
		old.close()
	}
	h.clients[c.ID] = c
}

// Unregister removes the connection and closes its queue.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// SendTo queues an event for one connection. It reports false when the
// connection is unknown or had to be dropped.
func (h *Hub) SendTo(id, event string, payload any) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	frame, err := utils.EncodeFrame(event, payload)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return false
	}
	if !c.enqueue(frame) {
		h.evict(c)
		return false
	}
	return true
}

// Broadcast queues an event for every connection.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := utils.EncodeFrame(event, payload)
	if err != nil {
		h.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(frame) {
			h.evict(c)
		}
	}
}

func (h *Hub) IsConnected(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) evict(c *Client) {
	h.mu.Lock()
	cur, ok := h.clients[c.ID]
	if ok && cur == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()
	if ok && cur == c {
		h.logger.Warn("send buffer full, dropping connection", zap.String("session", c.ID))
		c.close()
	}
}
