// Package hub fans robot status events out to websocket clients using a
// channel-based register/broadcast loop.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// HistorySize is how many recent events a new client receives on connect.
const HistorySize = 100

// envelope is an encoded event tagged with its source for client filters.
type envelope struct {
	source string
	data   []byte
}

// Hub maintains the set of active clients and broadcasts events to them.
// It implements robot.Observer, so it can be handed to the control loops.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	history []envelope
	running bool
}

// New creates a hub. Call Run before clients connect.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.running = false
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			for _, env := range h.history {
				if !client.wants(env.source) {
					continue
				}
				select {
				case client.send <- env.data:
				default:
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "client", client.id, "sources", client.sourceList(), "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client", client.id, "clients", count)

		case env := <-h.broadcast:
			h.mu.Lock()
			h.history = append(h.history, env)
			if len(h.history) > HistorySize {
				h.history = h.history[1:]
			}
			for client := range h.clients {
				if !client.wants(env.source) {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					// Too slow to keep up
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "client", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify encodes e and queues it for broadcast. It never blocks; events are
// dropped when the queue is full.
func (h *Hub) Notify(e robot.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encode event", "error", err)
		return
	}
	select {
	case h.broadcast <- envelope{source: e.Source, data: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "source", e.Source, "kind", e.Kind)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

var _ robot.Observer = (*Hub)(nil)
