// Package realtime multiplexes graph sessions over websockets. Connections
// viewing the same graph share a room; every change is broadcast to the
// whole room.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/osintbuddy/backend/internal/graphing"
	"github.com/osintbuddy/backend/pkg/logger"
)

// GraphService is what sessions need from the graph layer.
type GraphService interface {
	ReadGraph(ctx context.Context, graphName string) (graphing.GraphView, error)
	UpdateNode(ctx context.Context, graphName string, node map[string]any) error
	RemoveNode(ctx context.Context, graphName string, node map[string]any) error
}

// Relay forwards room broadcasts to other server instances.
type Relay interface {
	Publish(room string, data []byte) error
}

type room struct {
	clients map[*Client]struct{}
}

type Hub struct {
	svc GraphService

	mu    sync.Mutex
	rooms map[string]*room
	relay Relay
}

func NewHub(svc GraphService) *Hub {
	return &Hub{
		svc:   svc,
		rooms: make(map[string]*room),
	}
}

// SetRelay enables cross-instance broadcasts.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[c.room]
	if !ok {
		r = &room{clients: make(map[*Client]struct{})}
		h.rooms[c.room] = r
	}
	r.clients[c] = struct{}{}
	logger.Info("[Realtime] Client joined", "graph", c.room, "conn", c.id, "members", len(r.clients))
}

// leave removes the client from its room and deletes the room once empty.
// Leaving twice is a no-op.
func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	if len(r.clients) == 0 {
		delete(h.rooms, c.room)
	}
	logger.Info("[Realtime] Client left", "graph", c.room, "conn", c.id, "members", len(r.clients))
}

// Members returns the number of connections in a room.
func (h *Hub) Members(roomKey string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomKey]; ok {
		return len(r.clients)
	}
	return 0
}

// Rooms returns the number of open rooms.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Broadcast sends msg to every connection in the room, here and, when a
// relay is set, on other instances.
func (h *Hub) Broadcast(roomKey string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("[Realtime] Failed to encode broadcast", "graph", roomKey, "err", err)
		return
	}
	h.deliver(roomKey, data)

	h.mu.Lock()
	relay := h.relay
	h.mu.Unlock()
	if relay != nil {
		if err := relay.Publish(roomKey, data); err != nil {
			logger.Warn("[Realtime] Failed to relay broadcast", "graph", roomKey, "err", err)
		}
	}
}

// deliver writes data to the local members of a room. Members whose send
// buffer is full are dropped and closed.
func (h *Hub) deliver(roomKey string, data []byte) {
	var slow []*Client

	h.mu.Lock()
	if r, ok := h.rooms[roomKey]; ok {
		for c := range r.clients {
			if !c.enqueue(data) {
				slow = append(slow, c)
			}
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		logger.Warn("[Realtime] Dropping slow client", "graph", roomKey, "conn", c.id)
		c.close()
	}
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var all []*Client
	for _, r := range h.rooms {
		for c := range r.clients {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}
