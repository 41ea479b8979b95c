// Package hub implements the live side of a party: the room of
// connections subscribed to its broadcasts, and the websocket client
// pumps that feed the session manager.
package hub

import (
	"sync"

	"github.com/bjwdenbesten/Graphical/internal/party"
)

// Hub tracks which connections belong to which room and fans events
// out to all of them. It satisfies party.Rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[party.Conn]bool
}

func New() *Hub {
	return &Hub{
		rooms: make(map[string]map[party.Conn]bool),
	}
}

func (h *Hub) Join(roomID string, c party.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[party.Conn]bool)
	}
	h.rooms[roomID][c] = true
}

func (h *Hub) Leave(roomID string, c party.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Size(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) Exists(roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID]
	return ok
}

// Broadcast delivers the event to every current room member. The
// member snapshot is taken under the read lock; sends happen outside
// it so one slow connection can't stall the room map.
func (h *Hub) Broadcast(roomID string, event string, data any) {
	h.mu.RLock()
	conns := make([]party.Conn, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Emit(event, data)
	}
}
