package signaling

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/tessellate-io/beacon/internal/metrics"
	"github.com/tessellate-io/beacon/internal/room"
)

// Emitter is the slice of the transport substrate the router needs: unicast,
// room broadcast, and substrate-level room membership for broadcast
// addressing.
//
// EmitTo reports whether the target was a live connection; sends to unknown
// or dead connections are dropped silently, which for negotiation relay is
// by contract not an error.
type Emitter interface {
	EmitTo(connID, event string, data any) bool
	EmitRoom(roomID, event string, data any)
	EnterRoom(connID, roomID string)
}

// Router dispatches inbound signaling events.
//
// It is stateless: room-lifecycle events mutate or query the injected
// registry, negotiation relay events translate a logical target id straight
// into a unicast emit without touching the registry or the payload.
type Router struct {
	registry *room.Registry
	emit     Emitter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewRouter(registry *room.Registry, emit Emitter, m *metrics.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		registry: registry,
		emit:     emit,
		metrics:  m,
		log:      logger,
	}
}

// HandleConnect observes a new connection. The substrate already tracks
// identity; there is nothing to record here.
func (rt *Router) HandleConnect(connID string) {
	rt.log.Debug("socket connected", "conn_id", connID)
}

// HandleDisconnect reconciles an abrupt or orderly disconnect against room
// state. It never fails.
func (rt *Router) HandleDisconnect(connID string) {
	rt.log.Debug("socket disconnected", "conn_id", connID)

	roomID, removed := rt.registry.RemoveConnection(connID)
	if !removed {
		return
	}
	rt.metrics.Inc(metrics.DisconnectCleanups)
	rt.log.Info("participant removed on disconnect", "conn_id", connID, "room", roomID)
}

// HandleMessage routes one inbound frame from connID.
//
// A non-nil error means the frame was not valid signaling protocol and the
// connection should be failed; client-data errors inside a well-formed event
// (absent room, duplicate room, unknown relay target) are handled locally
// and never returned.
func (rt *Router) HandleMessage(connID string, data []byte) error {
	env, err := parseEnvelope(data)
	if err != nil {
		rt.metrics.Inc(metrics.BadMessages)
		return err
	}

	switch env.Event {
	case eventJoinRoom:
		rt.handleRoomRequest(connID, env.Data, false)
	case eventCreateRoom:
		rt.handleRoomRequest(connID, env.Data, true)
	case eventUserCall:
		rt.relayOffer(connID, env.Data, eventIncomingCall)
	case eventCallAccepted:
		rt.relayAnswer(connID, env.Data, eventCallAcceptedByPeer)
	case eventPeerNegoNeeded:
		rt.relayOffer(connID, env.Data, eventPeerNegoNeededRelay)
	case eventPeerNegoDone:
		rt.relayAnswer(connID, env.Data, eventPeerNegoFinal)
	}
	return nil
}

func (rt *Router) handleRoomRequest(connID string, data json.RawMessage, createIntent bool) {
	var req roomRequest
	// Absent or mistyped fields degrade to zero values; a zero room id then
	// fails the registry lookup instead of faulting the connection.
	_ = json.Unmarshal(data, &req)

	joined, p, err := rt.registry.CreateOrJoin(connID, req.Email, req.Room, createIntent)
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		rt.metrics.Inc(metrics.JoinRejectedNoRoom)
		rt.emit.EmitTo(connID, eventErrorNoRoom, errorNotice{Msg: "No room has been created!"})
		return
	case errors.Is(err, room.ErrRoomExists):
		rt.metrics.Inc(metrics.CreateRejectedDuplicate)
		rt.emit.EmitTo(connID, eventErrorDuplicate, errorNotice{Msg: "A room with this name already exist!"})
		return
	case errors.Is(err, room.ErrRoomFull):
		rt.metrics.Inc(metrics.JoinRejectedRoomFull)
		rt.emit.EmitTo(connID, eventErrorRoomFull, errorNotice{Msg: "This room is full!"})
		return
	case err != nil:
		// The registry has no other failure modes today.
		rt.log.Error("create_or_join failed", "conn_id", connID, "room", req.Room, "err", err)
		return
	}

	if createIntent {
		rt.metrics.Inc(metrics.RoomsCreated)
	}
	rt.metrics.Inc(metrics.RoomJoins)
	rt.log.Info("participant joined room",
		"conn_id", connID,
		"room", joined.ID,
		"identity", p.Identity,
		"members", len(joined.Members),
	)

	// The registry mutation above happens-before both emits. Entering the
	// substrate room first means the joiner receives its own join broadcast.
	rooms := roomsFromSnapshot(rt.registry.Snapshot())
	rt.emit.EnterRoom(connID, joined.ID)
	rt.emit.EmitRoom(joined.ID, eventUserJoined, userJoined{
		Email: p.Identity,
		ID:    connID,
		Rooms: rooms,
	})
	rt.emit.EmitTo(connID, eventJoinRoomAck, joinAck{
		Email: req.Email,
		Room:  req.Room,
		Rooms: rooms,
	})
}

func (rt *Router) relayOffer(connID string, data json.RawMessage, outEvent string) {
	var p callPayload
	_ = json.Unmarshal(data, &p)
	rt.forward(connID, p.To, outEvent, offerRelay{From: connID, Offer: p.Offer})
}

func (rt *Router) relayAnswer(connID string, data json.RawMessage, outEvent string) {
	var p callPayload
	_ = json.Unmarshal(data, &p)
	rt.forward(connID, p.To, outEvent, answerRelay{From: connID, Answer: p.Answer})
}

func (rt *Router) forward(fromID, toID, outEvent string, data any) {
	if rt.emit.EmitTo(toID, outEvent, data) {
		rt.metrics.Inc(metrics.RelaysForwarded)
		rt.log.Debug("relayed negotiation event", "event", outEvent, "from", fromID, "to", toID)
		return
	}
	rt.metrics.Inc(metrics.RelayDroppedUnknownTarget)
	rt.log.Debug("dropped relay to unknown target", "event", outEvent, "from", fromID, "to", toID)
}
