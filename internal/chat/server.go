// Package chat implements the server-side session and routing state machine:
// the operations a client can invoke, duplicate suppression for retransmitted
// requests, and delivery of messages to live clients or offline queues.
package chat

import (
	"context"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/parley/internal/dedup"
	"github.com/eldtechnologies/parley/internal/directory"
	"github.com/eldtechnologies/parley/internal/metrics"
	"github.com/eldtechnologies/parley/internal/models"
	"github.com/eldtechnologies/parley/internal/queue"
	"github.com/eldtechnologies/parley/internal/session"
)

// Server is the chat service. One instance owns all shared state; every
// method is safe for concurrent use and assumes nothing about call ordering,
// even from a single client.
type Server struct {
	log      zerolog.Logger
	dir      directory.Store
	sessions *session.Registry
	ledger   *dedup.Ledger
	queue    queue.Store

	nextClient atomic.Int64  // client ID allocator
	nextSeq    atomic.Uint64 // server event sequence, stamped at push/enqueue time
}

// New creates a Server on top of the given directory and queue backends.
func New(log zerolog.Logger, dir directory.Store, q queue.Store) *Server {
	return &Server{
		log:      log.With().Str("component", "chat").Logger(),
		dir:      dir,
		sessions: session.NewRegistry(log),
		ledger:   dedup.NewLedger(),
		queue:    q,
	}
}

// Sessions exposes the session registry for stats reporting.
func (s *Server) Sessions() *session.Registry { return s.sessions }

// RegisterClient hands out the next client ID. IDs are unique for the
// lifetime of the server process and never reused.
func (s *Server) RegisterClient() int64 {
	id := s.nextClient.Add(1)
	metrics.ClientsRegistered.Inc()
	return id
}

// CreateAccount inserts an account, returning false if the name is taken.
func (s *Server) CreateAccount(ctx context.Context, name string) (bool, error) {
	return s.dir.CreateAccount(ctx, name)
}

// DeleteAccount removes an account, returning false if it was absent. Group
// membership lists and any live session for the account are left untouched.
func (s *Server) DeleteAccount(ctx context.Context, name string) (bool, error) {
	return s.dir.DeleteAccount(ctx, name)
}

// CreateGroup replaces any existing group of the same name with the given
// member set. Members are not validated against the account list.
func (s *Server) CreateGroup(ctx context.Context, name string, members []string) error {
	return s.dir.CreateGroup(ctx, name, members)
}

// DeleteGroup removes a group, returning false if it was absent.
func (s *Server) DeleteGroup(ctx context.Context, name string) (bool, error) {
	return s.dir.DeleteGroup(ctx, name)
}

// ListAccounts returns a snapshot of account names. The pattern argument is
// accepted for forward compatibility and currently ignored.
func (s *Server) ListAccounts(ctx context.Context, pattern string) ([]string, error) {
	return s.dir.ListAccounts(ctx, pattern)
}

// ListGroups returns a snapshot of group names. The pattern argument is
// accepted for forward compatibility and currently ignored.
func (s *Server) ListGroups(ctx context.Context, pattern string) ([]string, error) {
	return s.dir.ListGroups(ctx, pattern)
}

// Login authenticates clientID as account, evicting any conflicting session.
// It returns ErrUnknownAccount if the account has not been created, and
// false if the request is a stale retransmit.
func (s *Server) Login(ctx context.Context, clientID int64, seq uint64, p session.Pusher, account string) (bool, error) {
	known, err := s.dir.HasAccount(ctx, account)
	if err != nil {
		return false, err
	}
	if !known {
		return false, ErrUnknownAccount
	}

	ok := s.sessions.Login(clientID, seq, p, account)
	if ok {
		metrics.Logins.Inc()
		s.log.Info().Int64("client_id", clientID).Str("account", account).Msg("logged in")
	}
	return ok, nil
}

// Logout removes clientID's session for account. It returns false for an
// unknown client, a mismatched account, or a sequence number that does not
// advance past the session's.
func (s *Server) Logout(clientID int64, seq uint64, account string) bool {
	ok := s.sessions.Logout(clientID, seq, account)
	if ok {
		s.log.Info().Int64("client_id", clientID).Str("account", account).Msg("logged out")
	}
	return ok
}

// LoginStatus returns the account clientID is logged in as, or "".
func (s *Server) LoginStatus(clientID int64) string {
	return s.sessions.Account(clientID)
}

// SendToAccount routes a direct message. The (clientID, seq) pair identifies
// the request: a retransmit returns false with no delivery attempt.
func (s *Server) SendToAccount(ctx context.Context, clientID int64, seq uint64, sender, recipient, body string, timestamp int64) (bool, error) {
	if !s.ledger.Observe(clientID, seq) {
		metrics.DuplicateSends.Inc()
		return false, nil
	}

	msg := models.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		Timestamp: timestamp,
	}
	if err := s.deliver(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

// SendToGroup routes a message to every member of the named group except the
// sender. An unknown group resolves to zero recipients and is not an error.
func (s *Server) SendToGroup(ctx context.Context, clientID int64, seq uint64, sender, group, body string, timestamp int64) (bool, error) {
	if !s.ledger.Observe(clientID, seq) {
		metrics.DuplicateSends.Inc()
		return false, nil
	}

	members, err := s.dir.GroupMembers(ctx, group)
	if err != nil {
		return false, err
	}

	for _, member := range members {
		// A sender is never delivered its own group message.
		if member == sender {
			continue
		}
		msg := models.Message{
			ID:        ulid.Make().String(),
			Group:     group,
			Sender:    sender,
			Recipient: member,
			Body:      body,
			Timestamp: timestamp,
		}
		if err := s.deliver(ctx, msg); err != nil {
			return false, err
		}
	}
	return true, nil
}

// deliver stamps a fresh server sequence number on msg, then pushes it to the
// recipient's live session or appends it to the recipient's offline queue.
// Push failures are swallowed: the client is presumed disconnected, and the
// send that triggered the delivery still succeeds.
func (s *Server) deliver(ctx context.Context, msg models.Message) error {
	msg.Seq = s.nextSeq.Add(1)

	kind := "direct"
	if msg.IsGroup() {
		kind = "group"
	}

	p, live := s.sessions.Pusher(msg.Recipient)
	if !live {
		if err := s.queue.Append(ctx, msg.Recipient, msg); err != nil {
			return err
		}
		metrics.MessagesQueued.WithLabelValues(kind).Inc()
		return nil
	}

	if err := push(p, msg); err != nil {
		metrics.PushFailures.Inc()
		s.log.Debug().Err(err).Str("to", msg.Recipient).Msg("push failed, client presumed gone")
		return nil
	}
	metrics.MessagesDelivered.WithLabelValues(kind).Inc()
	return nil
}

// Undelivered drains account's offline queue into p, oldest first. Pushes
// that fail are dropped like any other unreachable-client push.
func (s *Server) Undelivered(ctx context.Context, p session.Pusher, account string) (bool, error) {
	msgs, err := s.queue.Drain(ctx, account)
	if err != nil {
		return false, err
	}

	for _, msg := range msgs {
		if err := push(p, msg); err != nil {
			metrics.PushFailures.Inc()
			s.log.Debug().Err(err).Str("to", account).Msg("drain push failed, client presumed gone")
			continue
		}
		metrics.MessagesDrained.Inc()
	}
	return true, nil
}

func push(p session.Pusher, msg models.Message) error {
	if msg.IsGroup() {
		return p.MessageFromGroup(msg)
	}
	return p.MessageFromAccount(msg)
}
