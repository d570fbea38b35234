// Package agent mirrors one logical chat user on the client side: it holds
// the server-issued client ID, numbers outgoing requests, tracks the
// logged-in account, and filters duplicate pushes from the server.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eldtechnologies/parley/internal/dedup"
	"github.com/eldtechnologies/parley/internal/models"
)

// ErrWrongRecipient is returned when a push arrives for an account this
// agent is not logged in as; the server should treat the client as needing a
// login-status refresh.
var ErrWrongRecipient = errors.New("message addressed to a different account")

// Message is the routed chat message as seen by clients.
type Message = models.Message

// Transport is the agent's view of the server. *Conn implements it over a
// websocket; tests implement it in-process.
type Transport interface {
	Hello(ctx context.Context) (int64, error)

	CreateAccount(ctx context.Context, name string) (bool, error)
	DeleteAccount(ctx context.Context, name string) (bool, error)
	CreateGroup(ctx context.Context, name string, members []string) error
	DeleteGroup(ctx context.Context, name string) (bool, error)
	ListAccounts(ctx context.Context, pattern string) ([]string, error)
	ListGroups(ctx context.Context, pattern string) ([]string, error)

	Login(ctx context.Context, clientID int64, seq uint64, account string) (bool, error)
	Logout(ctx context.Context, clientID int64, seq uint64, account string) (bool, error)
	LoginStatus(ctx context.Context, clientID int64) (string, error)
	SendToAccount(ctx context.Context, clientID int64, seq uint64, sender, recipient, body string, timestamp int64) (bool, error)
	SendToGroup(ctx context.Context, clientID int64, seq uint64, sender, group, body string, timestamp int64) (bool, error)
	Undelivered(ctx context.Context, account string) (bool, error)
}

// Display receives each message the first time it is accepted.
type Display func(msg Message)

// Agent is the per-process client state machine.
type Agent struct {
	transport Transport
	display   Display
	filter    *dedup.Filter

	mu       sync.Mutex
	clientID int64
	seq      uint64 // next outgoing sequence number
	account  string // empty means logged out
}

// New registers with the server (fetching this process's client ID, exactly
// once) and returns a ready agent. display may be nil.
func New(ctx context.Context, t Transport, display Display) (*Agent, error) {
	id, err := t.Hello(ctx)
	if err != nil {
		return nil, fmt.Errorf("register client: %w", err)
	}
	if display == nil {
		display = func(Message) {}
	}
	return &Agent{
		transport: t,
		display:   display,
		filter:    dedup.NewFilter(),
		clientID:  id,
	}, nil
}

// ClientID returns the server-issued client ID.
func (a *Agent) ClientID() int64 {
	return a.clientID
}

// Account returns the account this agent believes it is logged in as, or "".
func (a *Agent) Account() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account
}

// nextSeq issues the next outgoing sequence number. The counter starts at 0
// and is never reset; the lock guarantees no two requests share a number.
func (a *Agent) nextSeq() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := a.seq
	a.seq++
	return seq
}

// Login logs this agent in as account. A false result with nil error means
// the server saw the request as a stale retransmit.
func (a *Agent) Login(ctx context.Context, account string) (bool, error) {
	ok, err := a.transport.Login(ctx, a.clientID, a.nextSeq(), account)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	a.account = account
	a.mu.Unlock()
	return ok, nil
}

// Logout logs this agent out of its current account.
func (a *Agent) Logout(ctx context.Context) (bool, error) {
	a.mu.Lock()
	account := a.account
	a.mu.Unlock()

	ok, err := a.transport.Logout(ctx, a.clientID, a.nextSeq(), account)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	a.account = ""
	a.mu.Unlock()
	return ok, nil
}

// RefreshLoginStatus replaces the local account name with the server's
// authoritative answer.
func (a *Agent) RefreshLoginStatus(ctx context.Context) error {
	account, err := a.transport.LoginStatus(ctx, a.clientID)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.account = account
	a.mu.Unlock()
	return nil
}

// SendToAccount sends a direct message from the logged-in account.
func (a *Agent) SendToAccount(ctx context.Context, recipient, body string, timestamp int64) (bool, error) {
	return a.transport.SendToAccount(ctx, a.clientID, a.nextSeq(), a.Account(), recipient, body, timestamp)
}

// SendToGroup sends a message to a group from the logged-in account.
func (a *Agent) SendToGroup(ctx context.Context, group, body string, timestamp int64) (bool, error) {
	return a.transport.SendToGroup(ctx, a.clientID, a.nextSeq(), a.Account(), group, body, timestamp)
}

// FetchUndelivered asks the server to drain this account's offline queue
// into this connection.
func (a *Agent) FetchUndelivered(ctx context.Context) (bool, error) {
	return a.transport.Undelivered(ctx, a.Account())
}

// MessageFromAccount applies a direct-message push. A duplicate server
// sequence number returns false without re-emitting; a recipient mismatch
// returns ErrWrongRecipient.
func (a *Agent) MessageFromAccount(msg Message) (bool, error) {
	return a.accept(msg)
}

// MessageFromGroup applies a group-message push with the same rules as
// MessageFromAccount.
func (a *Agent) MessageFromGroup(msg Message) (bool, error) {
	return a.accept(msg)
}

func (a *Agent) accept(msg Message) (bool, error) {
	if !a.filter.Observe(msg.Seq) {
		return false, nil
	}
	if msg.Recipient != a.Account() {
		return false, fmt.Errorf("%w: got %q, logged in as %q", ErrWrongRecipient, msg.Recipient, a.Account())
	}
	a.display(msg)
	return true, nil
}

// NotifyLoggedOut applies a server-initiated logout push: the local account
// name is cleared and then refreshed from the server, which settles any race
// between a server-side eviction and a concurrent local login or logout.
func (a *Agent) NotifyLoggedOut(ctx context.Context) {
	a.mu.Lock()
	a.account = ""
	a.mu.Unlock()

	// Best effort: if the server is unreachable we stay logged out locally.
	_ = a.RefreshLoginStatus(ctx)
}
