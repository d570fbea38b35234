package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/parley/internal/transport/ws"
)

// ErrConnClosed is returned by calls made after the connection has gone away.
var ErrConnClosed = errors.New("connection closed")

// PushHandler receives server-initiated frames. *Agent implements it.
type PushHandler interface {
	MessageFromAccount(msg Message) (bool, error)
	MessageFromGroup(msg Message) (bool, error)
	NotifyLoggedOut(ctx context.Context)
}

// Conn is a websocket connection to the chat server, implementing Transport.
// Requests are correlated with results by frame ID; pushes are handed to the
// attached PushHandler from the read loop.
type Conn struct {
	sock *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan ws.Frame
	handler PushHandler
	closed  bool
}

// Dial connects to a chat server at url (e.g. "ws://localhost:9190/ws").
func Dial(ctx context.Context, url string, log zerolog.Logger) (*Conn, error) {
	sock, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		sock:    sock,
		log:     log.With().Str("component", "conn").Logger(),
		pending: make(map[uint64]chan ws.Frame),
	}
	go c.readLoop()
	return c, nil
}

// Attach registers the handler for pushes. Pushes arriving with no handler
// attached are dropped.
func (c *Conn) Attach(h PushHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Close tears down the connection. In-flight calls fail with ErrConnClosed.
func (c *Conn) Close() error {
	return c.sock.Close()
}

func (c *Conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			c.log.Debug().Err(err).Msg("connection closed")
			return
		}

		f, err := ws.ParseFrame(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("bad frame")
			continue
		}

		if f.Type == ws.TypeResult {
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			if ok {
				delete(c.pending, f.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- f
			}
			continue
		}

		c.dispatchPush(f)
	}
}

func (c *Conn) dispatchPush(f ws.Frame) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		c.log.Debug().Str("type", f.Type).Msg("push dropped, no handler attached")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch f.Type {
	case ws.TypeMessageAccount:
		if _, err := h.MessageFromAccount(f.PushMessage()); err != nil {
			c.log.Warn().Err(err).Msg("rejected direct message push")
		}
	case ws.TypeMessageGroup:
		if _, err := h.MessageFromGroup(f.PushMessage()); err != nil {
			c.log.Warn().Err(err).Msg("rejected group message push")
		}
	case ws.TypeLoggedOut:
		h.NotifyLoggedOut(ctx)
	default:
		c.log.Debug().Str("type", f.Type).Msg("unknown push type")
	}
}

// call sends a request frame and waits for its result.
func (c *Conn) call(ctx context.Context, f ws.Frame) (ws.Frame, error) {
	ch := make(chan ws.Frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ws.Frame{}, ErrConnClosed
	}
	c.nextID++
	f.ID = c.nextID
	c.pending[f.ID] = ch
	c.mu.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return ws.Frame{}, err
	}

	c.writeMu.Lock()
	err = c.sock.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return ws.Frame{}, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ws.Frame{}, ErrConnClosed
		}
		if resp.Error != "" {
			return ws.Frame{}, errors.New(resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
		return ws.Frame{}, ctx.Err()
	}
}

// Hello implements Transport.
func (c *Conn) Hello(ctx context.Context) (int64, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeHello})
	if err != nil {
		return 0, err
	}
	return resp.ClientID, nil
}

// CreateAccount implements Transport.
func (c *Conn) CreateAccount(ctx context.Context, name string) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeCreateAccount, Account: name})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// DeleteAccount implements Transport.
func (c *Conn) DeleteAccount(ctx context.Context, name string) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeDeleteAccount, Account: name})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// CreateGroup implements Transport.
func (c *Conn) CreateGroup(ctx context.Context, name string, members []string) error {
	_, err := c.call(ctx, ws.Frame{Type: ws.TypeCreateGroup, Group: name, Members: members})
	return err
}

// DeleteGroup implements Transport.
func (c *Conn) DeleteGroup(ctx context.Context, name string) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeDeleteGroup, Group: name})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// ListAccounts implements Transport.
func (c *Conn) ListAccounts(ctx context.Context, pattern string) ([]string, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeListAccounts, Pattern: pattern})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// ListGroups implements Transport.
func (c *Conn) ListGroups(ctx context.Context, pattern string) ([]string, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeListGroups, Pattern: pattern})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// Login implements Transport.
func (c *Conn) Login(ctx context.Context, clientID int64, seq uint64, account string) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeLogin, ClientID: clientID, Seq: seq, Account: account})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Logout implements Transport.
func (c *Conn) Logout(ctx context.Context, clientID int64, seq uint64, account string) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeLogout, ClientID: clientID, Seq: seq, Account: account})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// LoginStatus implements Transport.
func (c *Conn) LoginStatus(ctx context.Context, clientID int64) (string, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeLoginStatus, ClientID: clientID})
	if err != nil {
		return "", err
	}
	return resp.Account, nil
}

// SendToAccount implements Transport.
func (c *Conn) SendToAccount(ctx context.Context, clientID int64, seq uint64, sender, recipient, body string, timestamp int64) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{
		Type:      ws.TypeSendAccount,
		ClientID:  clientID,
		Seq:       seq,
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		Timestamp: timestamp,
	})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// SendToGroup implements Transport.
func (c *Conn) SendToGroup(ctx context.Context, clientID int64, seq uint64, sender, group, body string, timestamp int64) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{
		Type:      ws.TypeSendGroup,
		ClientID:  clientID,
		Seq:       seq,
		Sender:    sender,
		Group:     group,
		Body:      body,
		Timestamp: timestamp,
	})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// Undelivered implements Transport.
func (c *Conn) Undelivered(ctx context.Context, account string) (bool, error) {
	resp, err := c.call(ctx, ws.Frame{Type: ws.TypeUndelivered, Account: account})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}
