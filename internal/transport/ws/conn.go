package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/parley/internal/models"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 64
)

// errClientGone is reported when a frame cannot be handed to the client,
// either because its send queue is full or the connection is closing.
var errClientGone = errors.New("client unreachable")

// conn is one client connection. It doubles as the callback handle the chat
// core holds for the logged-in account: the core sees only the session.Pusher
// interface, never the socket.
type conn struct {
	id   string // connection ID, assigned at upgrade time
	sock *websocket.Conn
	log  zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(id string, sock *websocket.Conn, log zerolog.Logger) *conn {
	return &conn{
		id:   id,
		sock: sock,
		log:  log.With().Str("conn_id", id).Logger(),
		send: make(chan []byte, sendQueueSize),
	}
}

// writePump owns all writes to the socket. It exits when the send channel is
// closed, closing the socket behind it.
func (c *conn) writePump() {
	defer c.sock.Close()
	for data := range c.send {
		c.sock.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
			c.log.Debug().Err(err).Msg("write failed")
			return
		}
	}
}

// shutdown closes the send channel exactly once; writePump then closes the
// socket. Frames enqueued after shutdown are dropped.
func (c *conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// enqueue hands a frame to the writer. A full queue means the client is too
// slow or gone; the frame is dropped and the caller treats the client as
// disconnected.
func (c *conn) enqueue(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientGone
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errClientGone
	}
}

// MessageFromAccount implements session.Pusher.
func (c *conn) MessageFromAccount(msg models.Message) error {
	return c.enqueue(PushFrame(msg))
}

// MessageFromGroup implements session.Pusher.
func (c *conn) MessageFromGroup(msg models.Message) error {
	return c.enqueue(PushFrame(msg))
}

// NotifyLogout implements session.Pusher.
func (c *conn) NotifyLogout() error {
	return c.enqueue(Frame{Type: TypeLoggedOut})
}
