package ws

import (
	"sync"

	"contact_game/internal/logger"
)

// Hub keeps the broadcast groups: room id → connected clients. Matchmaking
// itself lives in the engine; the hub only fans messages out.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[roomID]
	if !ok {
		group = make(map[*Client]struct{})
		h.groups[roomID] = group
	}
	group[c] = struct{}{}
}

func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[roomID]
	if !ok {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.groups, roomID)
	}
}

// Broadcast queues a message for every client of the room. Slow clients are
// dropped rather than allowed to stall the group.
func (h *Hub) Broadcast(roomID string, msg []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.groups[roomID]))
	for c := range h.groups[roomID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.Send <- msg:
		default:
			logger.Warn("broadcast: client send buffer full, closing", "user", c.Username, "room", roomID)
			c.Close()
		}
	}
}

// GroupSize is used by tests and the health surface.
func (h *Hub) GroupSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[roomID])
}
