// Package ws pushes scene and status updates to canvas clients and accepts
// their pointer and toolbar input.
package ws

import (
	"context"
	"log/slog"
	"sync"

	"nhooyr.io/websocket"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/session"
)

// Hub manages WebSocket connections grouped by project and fans session
// events out to them.
type Hub struct {
	manager    *session.Manager
	clients    map[*Client]bool
	gestures   map[string]*Client // project -> client that pressed last
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger
	mu         sync.RWMutex

	// Events waiting for delivery, at most one per project and kind.
	// Messages are rendered at delivery, so a later duplicate adds nothing.
	queueMu sync.Mutex
	queue   []session.Event
	queued  map[session.Event]bool
	wake    chan struct{}
}

// Client represents a single WebSocket connection bound to one project.
type Client struct {
	hub     *Hub
	project string
	send    chan []byte
	conn    *websocket.Conn

	mu       sync.Mutex
	viewport geometry.Size
	closed   bool
}

// NewHub creates a hub and subscribes it to every session of m.
func NewHub(m *session.Manager, logger *slog.Logger) *Hub {
	h := &Hub{
		manager:    m,
		clients:    make(map[*Client]bool),
		gestures:   make(map[string]*Client),
		queued:     make(map[session.Event]bool),
		wake:       make(chan struct{}, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
	if m != nil {
		m.OnChange(h.Publish)
	}
	return h
}

// Run starts the hub's event loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "project", client.project)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", "project", client.project)

		case <-h.wake:
			for _, ev := range h.drain() {
				h.deliver(ev)
			}

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish queues a session event without blocking the editing session.
// Repeats of an event that is still queued are folded into it.
func (h *Hub) Publish(ev session.Event) {
	h.queueMu.Lock()
	if !h.queued[ev] {
		h.queued[ev] = true
		h.queue = append(h.queue, ev)
	}
	h.queueMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// drain takes every queued event in publish order.
func (h *Hub) drain() []session.Event {
	h.queueMu.Lock()
	defer h.queueMu.Unlock()
	evs := h.queue
	h.queue = nil
	clear(h.queued)
	return evs
}

// Pending returns the number of events waiting for delivery.
func (h *Hub) Pending() int {
	h.queueMu.Lock()
	defer h.queueMu.Unlock()
	return len(h.queue)
}

// claimGesture records c as the owner of the project's active gesture.
func (h *Hub) claimGesture(c *Client) {
	h.mu.Lock()
	h.gestures[c.project] = c
	h.mu.Unlock()
}

// releaseGesture drops c's ownership and reports whether c held it.
func (h *Hub) releaseGesture(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gestures[c.project] != c {
		return false
	}
	delete(h.gestures, c.project)
	return true
}

// deliver renders the event once per client, since scenes depend on each
// client's viewport.
func (h *Hub) deliver(ev session.Event) {
	if h.manager == nil {
		return
	}
	sess, ok := h.manager.Lookup(ev.ProjectID)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.project != ev.ProjectID {
			continue
		}
		msg, err := renderMessage(sess, ev.Kind, client.Viewport())
		if err != nil {
			h.logger.Error("encoding websocket message", "kind", ev.Kind, "error", err)
			return
		}
		if !client.trySend(msg) {
			client.close()
			delete(h.clients, client)
		}
	}
}

func renderMessage(s *session.Session, kind session.EventKind, viewport geometry.Size) ([]byte, error) {
	switch kind {
	case session.EventStatus:
		return statusMessage(s)
	case session.EventPrompt:
		return promptMessage(s)
	default:
		return sceneMessage(s, viewport)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Viewport returns the client's last reported canvas size.
func (c *Client) Viewport() geometry.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *Client) setViewport(v geometry.Size) {
	c.mu.Lock()
	c.viewport = v
	c.mu.Unlock()
}

// trySend queues msg unless the client is backed up or closed.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
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
