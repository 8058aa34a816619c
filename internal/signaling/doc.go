// Package signaling implements the WebSocket signaling surface: a JSON
// event protocol for room lifecycle (create/join, membership broadcast) and
// opaque WebRTC negotiation relay between peers.
//
// The package splits into three layers: Conn/Hub are the transport substrate
// (connection registry, unicast and room broadcast), Router holds the
// routing semantics against room.Registry, and Server terminates the
// WebSocket endpoint and enforces per-connection hardening (read limits,
// idle timeout, keepalive pings, message rate limiting).
package signaling
