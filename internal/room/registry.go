// Package room holds the authoritative in-memory room membership state.
//
// The registry is the sole owner of all room and participant data. Everything
// else (the relay router, the transport hub) queries it per request and never
// retains a copy.
package room

import (
	"errors"
	"sync"
)

var (
	// ErrRoomExists is returned by CreateOrJoin when create intent targets a
	// room id that is already live.
	ErrRoomExists = errors.New("room: a room with this name already exists")

	// ErrRoomNotFound is returned by CreateOrJoin when join intent targets a
	// room id that does not exist.
	ErrRoomNotFound = errors.New("room: no room has been created")

	// ErrRoomFull is returned by CreateOrJoin when the room is at the
	// registry's configured member cap.
	ErrRoomFull = errors.New("room: room is full")
)

// Participant is one member of a room. It is a value, not an entity: it
// exists only inside a Room's member list.
type Participant struct {
	// Identity is the application-supplied handle (typically an email).
	Identity string

	// ConnectionID is the transport-assigned opaque id of the live
	// connection. Unique within a room.
	ConnectionID string
}

// Room is a named group of participants. Members are kept in insertion order.
type Room struct {
	ID      string
	Members []Participant
}

// Registry maps room ids to membership lists.
//
// Invariants, held at every return point:
//   - a room is present iff it has at least one member
//   - no two members of a room share a ConnectionID
//   - member order is insertion order
//
// All methods are safe for concurrent use; a single mutex guards the state.
// Disconnect cleanup is an O(rooms) scan, which is fine at the scale this
// server targets; a connection-id index would be the next step if room
// counts grow large.
type Registry struct {
	mu sync.Mutex

	// maxMembers caps room size when > 0.
	maxMembers int

	rooms map[string][]Participant
}

// NewRegistry returns an empty registry. maxMembers <= 0 means unlimited.
func NewRegistry(maxMembers int) *Registry {
	return &Registry{
		maxMembers: maxMembers,
		rooms:      make(map[string][]Participant),
	}
}

// CreateOrJoin adds the connection to roomID, creating the room when
// createIntent is true.
//
// Create intent against a live room fails with ErrRoomExists; join intent
// against an absent room fails with ErrRoomNotFound. Neither failure mutates
// state.
//
// Rejoining a room the connection is already a member of is idempotent: the
// existing entry's identity is refreshed in place and no duplicate is
// appended.
//
// On success the returned Room and Participant are copies; callers may hold
// them across emits without racing the registry.
func (r *Registry) CreateOrJoin(connID, identity, roomID string, createIntent bool) (Room, Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.rooms[roomID]
	if createIntent && exists {
		return Room{}, Participant{}, ErrRoomExists
	}
	if !createIntent && !exists {
		return Room{}, Participant{}, ErrRoomNotFound
	}

	p := Participant{Identity: identity, ConnectionID: connID}

	rejoined := false
	for i := range members {
		if members[i].ConnectionID == connID {
			members[i].Identity = identity
			rejoined = true
			break
		}
	}
	if !rejoined {
		if r.maxMembers > 0 && len(members) >= r.maxMembers {
			return Room{}, Participant{}, ErrRoomFull
		}
		members = append(members, p)
	}
	r.rooms[roomID] = members

	return Room{ID: roomID, Members: copyMembers(members)}, p, nil
}

// RemoveConnection reconciles a disconnect against room state.
//
// It removes at most one membership entry, from the first room found to
// contain connID, and deletes the room when that empties it. A connection
// that never joined a room is a benign no-op: removed is false and roomID is
// empty.
func (r *Registry) RemoveConnection(connID string) (roomID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, members := range r.rooms {
		for i, p := range members {
			if p.ConnectionID != connID {
				continue
			}
			members = append(members[:i], members[i+1:]...)
			if len(members) == 0 {
				delete(r.rooms, id)
			} else {
				r.rooms[id] = members
			}
			return id, true
		}
	}
	return "", false
}

// Lookup returns a copy of the room, or ok=false when it does not exist.
func (r *Registry) Lookup(roomID string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return Room{ID: roomID, Members: copyMembers(members)}, true
}

// Snapshot returns a copy of the full registry. The wire protocol includes
// the registry in join acks and join broadcasts.
func (r *Registry) Snapshot() map[string]Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Room, len(r.rooms))
	for id, members := range r.rooms {
		out[id] = Room{ID: id, Members: copyMembers(members)}
	}
	return out
}

// Len reports the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func copyMembers(members []Participant) []Participant {
	out := make([]Participant, len(members))
	copy(out, members)
	return out
}
