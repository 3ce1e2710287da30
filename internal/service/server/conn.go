package server

import (
	"encoding/json"
	"sync"
	"time"

	"galle/internal/utils/log"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 256
	writeTimeout   = 10 * time.Second
)

// conn wraps one websocket connection behind a buffered write pump so
// that the gate, router, and pipeline can all push to it concurrently.
// After close every Send becomes a no-op.
type conn struct {
	id string
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(id string, ws *websocket.Conn) *conn {
	return &conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *conn) ID() string { return c.id }

// Send queues the payload for delivery and never returns an error for a
// delivery problem: a closed connection swallows the payload, and a full
// buffer drops it rather than blocking the caller. Callers that need the
// payload on the wire cannot learn of the loss here; the drop is logged
// with the payload so it can be traced back to a message.
func (c *conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- payload:
	default:
		log.Warn("send buffer full, payload dropped",
			zap.String("conn", c.id), zap.ByteString("payload", payload))
	}
	return nil
}

func (c *conn) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// close stops the write pump. Idempotent.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send channel onto the wire. It owns all writes
// to the underlying websocket.
func (c *conn) writePump() {
	defer c.ws.Close()

	for payload := range c.send {
		if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			log.Debug("set write deadline failed", zap.String("conn", c.id), zap.Error(err))
			return
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Debug("write failed", zap.String("conn", c.id), zap.Error(err))
			return
		}
	}

	_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}
