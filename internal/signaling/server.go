package signaling

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tessellate-io/beacon/internal/metrics"
	"github.com/tessellate-io/beacon/internal/origin"
	"github.com/tessellate-io/beacon/internal/ratelimit"
)

// Config wires together the runtime knobs for the signaling endpoint.
type Config struct {
	// AllowedOrigins is the browser origin allowlist for the WebSocket
	// upgrade. Empty means same-host only.
	AllowedOrigins []string

	// IdleTimeout closes connections that produce no traffic (including
	// pong responses) for this long.
	IdleTimeout time.Duration

	// PingInterval is the keepalive ping cadence. Must be below IdleTimeout.
	PingInterval time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int
}

// Server terminates signaling WebSockets and feeds frames to the Router.
//
// Endpoint:
//   - GET /ws : WebSocket signaling (room lifecycle + negotiation relay)
type Server struct {
	cfg     Config
	hub     *Hub
	router  *Router
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewServer(cfg Config, hub *Hub, router *Router, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		hub:     hub,
		router:  router,
		metrics: m,
		log:     logger,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) idleTimeout() time.Duration {
	if s.cfg.IdleTimeout <= 0 {
		return 60 * time.Second
	}
	return s.cfg.IdleTimeout
}

func (s *Server) pingInterval() time.Duration {
	if s.cfg.PingInterval <= 0 {
		return 20 * time.Second
	}
	return s.cfg.PingInterval
}

func (s *Server) maxMessageBytes() int64 {
	if s.cfg.MaxMessageBytes <= 0 {
		return 64 * 1024
	}
	return s.cfg.MaxMessageBytes
}

func (s *Server) maxMessagesPerSecond() int {
	if s.cfg.MaxMessagesPerSecond <= 0 {
		return 50
	}
	return s.cfg.MaxMessagesPerSecond
}

func (s *Server) checkOrigin(r *http.Request) bool {
	originHeader := strings.TrimSpace(r.Header.Get("Origin"))
	if originHeader == "" {
		// Non-browser clients (CLIs, tests) send no Origin.
		return true
	}
	normalizedOrigin, originHost, ok := origin.Normalize(originHeader)
	return ok && origin.Allowed(normalizedOrigin, originHost, r.Host, s.cfg.AllowedOrigins)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := newConn(uuid.NewString(), ws)
	s.hub.add(conn)
	s.metrics.Inc(metrics.WSConnections)
	s.router.HandleConnect(conn.ID())

	s.serveConn(conn)
}

func (s *Server) serveConn(conn *Conn) {
	defer func() {
		s.hub.remove(conn.ID())
		s.router.HandleDisconnect(conn.ID())
		conn.Close()
	}()

	ws := conn.ws
	idle := s.idleTimeout()

	ws.SetReadLimit(s.maxMessageBytes())
	_ = ws.SetReadDeadline(time.Now().Add(idle))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(idle))
	})

	// Keepalive pings run beside the read loop. WriteControl is safe
	// concurrently with WriteMessage, so no writeMu here.
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(s.pingInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()

	limiter := ratelimit.NewTokenBucket(
		ratelimit.RealClock{},
		int64(s.maxMessagesPerSecond()),
		int64(s.maxMessagesPerSecond()),
	)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(idle))

		// Apply the per-connection rate limit *after* reading the message so
		// the bytes already in the TCP receive buffer are consumed. Closing
		// before reading can trigger an abortive close (RST) that keeps the
		// client from observing the close code.
		if !limiter.Allow(1) {
			s.metrics.Inc(metrics.DropReasonRateLimited)
			s.log.Warn("rate limit exceeded", "conn_id", conn.ID())
			conn.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			conn.closeWith(websocket.CloseUnsupportedData, "expected text message")
			return
		}

		if err := s.router.HandleMessage(conn.ID(), data); err != nil {
			s.log.Warn("bad signaling message", "conn_id", conn.ID(), "err", err)
			conn.closeWith(websocket.ClosePolicyViolation, "bad message")
			return
		}
	}
}
