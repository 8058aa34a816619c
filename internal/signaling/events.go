package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tessellate-io/beacon/internal/room"
)

// Inbound event names (client -> server).
const (
	eventJoinRoom       = "join-room-from-client"
	eventCreateRoom     = "create-room-from-client"
	eventUserCall       = "user-call-from-client"
	eventCallAccepted   = "call-accepted-from-client"
	eventPeerNegoNeeded = "peer-nego-needed-from-client"
	eventPeerNegoDone   = "peer-nego-done-from-client"
)

// Outbound event names (server -> client).
const (
	eventUserJoined          = "user-joined-from-server"
	eventJoinRoomAck         = "join-room-from-server"
	eventErrorNoRoom         = "error-no-room-from-server"
	eventErrorDuplicate      = "error-duplicate-from-server"
	eventErrorRoomFull       = "error-room-full-from-server"
	eventIncomingCall        = "incomming-call-from-server"
	eventCallAcceptedByPeer  = "call-accepted-from-server"
	eventPeerNegoNeededRelay = "peer-nego-needed-from-server"
	eventPeerNegoFinal       = "peer-nego-final-from-server"
)

// envelope is the framing for every signaling message in both directions:
// an event name plus an event-specific JSON object.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// parseEnvelope decodes an inbound signaling frame.
//
// The envelope itself is decoded strictly (unknown top-level fields and
// trailing data are rejected, unknown event names are rejected). The Data
// payload is left raw: per-event decoding tolerates absent fields so that
// malformed requests degrade to room-not-found / silent-drop behavior
// instead of faulting the connection.
func parseEnvelope(data []byte) (envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return envelope{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return envelope{}, fmt.Errorf("unexpected trailing data")
	}

	switch env.Event {
	case eventJoinRoom, eventCreateRoom,
		eventUserCall, eventCallAccepted,
		eventPeerNegoNeeded, eventPeerNegoDone:
		return env, nil
	default:
		return envelope{}, fmt.Errorf("unsupported event %q", env.Event)
	}
}

func marshalEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}

// roomRequest is the payload of join-room-from-client and
// create-room-from-client.
type roomRequest struct {
	Email string `json:"email"`
	Room  string `json:"room"`
}

// callPayload covers all four negotiation relay events. Offer/Answer are
// opaque: the relay never parses negotiation semantics.
type callPayload struct {
	To     string          `json:"to"`
	Offer  json.RawMessage `json:"offer,omitempty"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

// wireUser and wireRoom are the registry's wire representation, carried in
// join acks and join broadcasts.
type wireUser struct {
	Email    string `json:"email"`
	SocketID string `json:"socketId"`
}

type wireRoom struct {
	Users []wireUser `json:"users"`
}

type wireRooms map[string]wireRoom

func roomsFromSnapshot(snap map[string]room.Room) wireRooms {
	out := make(wireRooms, len(snap))
	for id, rm := range snap {
		users := make([]wireUser, len(rm.Members))
		for i, p := range rm.Members {
			users[i] = wireUser{Email: p.Identity, SocketID: p.ConnectionID}
		}
		out[id] = wireRoom{Users: users}
	}
	return out
}

// userJoined is broadcast to a room when a participant joins it.
type userJoined struct {
	Email string    `json:"email"`
	ID    string    `json:"id"`
	Rooms wireRooms `json:"rooms"`
}

// joinAck is the direct acknowledgment to the joining connection: the
// original request fields plus the registry state.
type joinAck struct {
	Email string    `json:"email"`
	Room  string    `json:"room"`
	Rooms wireRooms `json:"rooms"`
}

// errorNotice carries error-no-room, error-duplicate and error-room-full.
type errorNotice struct {
	Msg string `json:"msg"`
}

// offerRelay carries incomming-call-from-server and
// peer-nego-needed-from-server.
type offerRelay struct {
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

// answerRelay carries call-accepted-from-server and
// peer-nego-final-from-server.
type answerRelay struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}
