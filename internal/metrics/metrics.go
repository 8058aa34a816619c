package metrics

import "sync"

// Counter names. The signaling server increments these at routing decision
// points; /metrics exposes them in Prometheus' text format.
const (
	WSConnections = "ws_connections"

	RoomsCreated            = "rooms_created"
	RoomJoins               = "room_joins"
	JoinRejectedNoRoom      = "join_rejected_no_room"
	CreateRejectedDuplicate = "create_rejected_duplicate"
	JoinRejectedRoomFull    = "join_rejected_room_full"

	RelaysForwarded           = "relays_forwarded"
	RelayDroppedUnknownTarget = "relay_dropped_unknown_target"

	DisconnectCleanups = "disconnect_cleanups"

	BadMessages           = "bad_messages"
	DropReasonRateLimited = "rate_limited"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// A deployment that wants a real metrics backend can scrape the Prometheus
// handler; keeping the registry in-process keeps routing logic testable
// without a metrics dependency.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc is nil-tolerant so call sites don't have to guard against an
// unconfigured registry.
func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
