package signaling

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks live connections and their substrate room membership. It is the
// transport-side counterpart of room.Registry: the registry holds the
// authoritative participant state, the hub only knows which *websocket.Conn
// to write to for a given connection or room id.
//
// Hub implements Emitter for the Router.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*Conn
	rooms map[string]map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[string]*Conn),
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

// remove drops the connection from the hub and from any room it entered.
// Emptied rooms are forgotten.
func (h *Hub) remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for roomID, members := range h.rooms {
		if _, ok := members[connID]; !ok {
			continue
		}
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// EnterRoom subscribes connID to room broadcasts. Unknown connections are
// ignored (the connection may have torn down between registry mutation and
// this call).
func (h *Hub) EnterRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Conn)
		h.rooms[roomID] = members
	}
	members[connID] = c
}

// EmitTo writes an event to a single connection. It reports whether connID
// named a live connection; the write itself is best-effort.
func (h *Hub) EmitTo(connID, event string, data any) bool {
	h.mu.Lock()
	c, ok := h.conns[connID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	_ = c.send(event, data)
	return true
}

// EmitRoom writes an event to every connection in the room, including the
// sender if it is a member.
func (h *Hub) EmitRoom(roomID, event string, data any) {
	h.mu.Lock()
	members := make([]*Conn, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		_ = c.send(event, data)
	}
}

// CloseAll sends a going-away close frame to every connection and closes
// them. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.rooms = make(map[string]map[string]*Conn)
	h.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
		c.Close()
	}
}
