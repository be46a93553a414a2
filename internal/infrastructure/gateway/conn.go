package gateway

import (
	"sync"
	"time"

	"slate/internal/core/ports"

	"github.com/gorilla/websocket"
)

// Conn wraps one websocket connection with its fixed per-connection context
// and a write lock. gorilla/websocket allows only one concurrent writer, and
// broadcasts arrive from other connections' goroutines.
type Conn struct {
	ws           *websocket.Conn
	ctx          *ports.ConnContext
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closed       bool
}

func newConn(ws *websocket.Conn, ctx *ports.ConnContext, writeTimeout time.Duration) *Conn {
	return &Conn{
		ws:           ws,
		ctx:          ctx,
		writeTimeout: writeTimeout,
	}
}

func (c *Conn) Context() *ports.ConnContext {
	return c.ctx
}

// Send writes one event frame to the connection.
func (c *Conn) Send(env *OutboundEnvelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(env)
}

func (c *Conn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// Close sends a close frame and marks the connection dead for writers.
func (c *Conn) Close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.ws.Close()
}
