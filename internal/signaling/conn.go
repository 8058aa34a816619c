package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 1 * time.Second

// Conn is one signaling connection. Writes are serialized with a mutex; the
// single reader goroutine lives in Server.serveConn.
type Conn struct {
	id string
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn) *Conn {
	return &Conn{id: id, ws: ws}
}

func (c *Conn) ID() string { return c.id }

// send marshals the event into the wire envelope and writes it. Write
// failures are returned but callers generally ignore them: a broken
// connection surfaces in the read loop, which owns teardown.
func (c *Conn) send(event string, data any) error {
	frame, err := marshalEvent(event, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Conn) closeWith(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
	})
}
