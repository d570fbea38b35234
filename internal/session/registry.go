// Package session owns the authoritative mapping between accounts and the
// single client currently logged in as each of them.
package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/parley/internal/metrics"
	"github.com/eldtechnologies/parley/internal/models"
)

// Pusher is the server's handle to a connected client. The transport layer
// resolves it to a live connection; a push error means the client is presumed
// disconnected, and callers ignore it.
type Pusher interface {
	MessageFromAccount(msg models.Message) error
	MessageFromGroup(msg models.Message) error
	NotifyLogout() error
}

// Session binds one account to the one client currently authenticated as it.
type Session struct {
	Account  string
	ClientID int64
	LastSeq  uint64 // last accepted client sequence number
	Pusher   Pusher
}

// Registry tracks live sessions, indexed both by account and by client ID.
// The two indexes always agree: at most one session per account, at most one
// session per client, and the same session appears in both.
type Registry struct {
	log zerolog.Logger

	mu        sync.Mutex
	byAccount map[string]*Session
	byClient  map[int64]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:       log.With().Str("component", "session").Logger(),
		byAccount: make(map[string]*Session),
		byClient:  make(map[int64]*Session),
	}
}

// Login binds account to (clientID, p), evicting whichever party would
// otherwise break the one-session-per-account / one-account-per-client
// bijection. Each evicted client is notified with a logout push.
//
// A login that repeats an existing (clientID, account) binding with a
// sequence number at or below the recorded one is a stale retransmit and
// returns false with no state change. The whole check-evict-bind sequence
// runs under one lock, so a racing login observes either the fully old or
// the fully new state.
//
// Account existence is the caller's concern; the registry will happily bind
// any name it is given.
func (r *Registry) Login(clientID int64, seq uint64, p Pusher, account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.byClient[clientID]; s != nil && s.Account == account && s.LastSeq >= seq {
		return false
	}

	// The client is switching accounts: log it out of the old one.
	if s := r.byClient[clientID]; s != nil {
		r.evict(s)
	}
	// The account is held by another client: take it over.
	if s := r.byAccount[account]; s != nil {
		r.evict(s)
	}

	ns := &Session{Account: account, ClientID: clientID, LastSeq: seq, Pusher: p}
	r.byAccount[account] = ns
	r.byClient[clientID] = ns

	r.log.Debug().Int64("client_id", clientID).Str("account", account).Msg("session bound")
	return true
}

// evict notifies a session's client and removes the session from both
// indexes. Callers must hold r.mu.
func (r *Registry) evict(s *Session) {
	if err := s.Pusher.NotifyLogout(); err != nil {
		r.log.Debug().Err(err).Str("account", s.Account).Msg("logout notify failed, client presumed gone")
	}
	delete(r.byAccount, s.Account)
	delete(r.byClient, s.ClientID)
	metrics.SessionsEvicted.Inc()
}

// Logout removes the session bound to clientID. It returns false if the
// client has no session, the session's account does not match, or seq does
// not advance past the session's last accepted sequence number (a logout
// arriving before, or as a duplicate of, a newer login).
func (r *Registry) Logout(clientID int64, seq uint64, account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.byClient[clientID]
	if s == nil || s.Account != account || seq <= s.LastSeq {
		return false
	}

	if err := s.Pusher.NotifyLogout(); err != nil {
		r.log.Debug().Err(err).Str("account", account).Msg("logout notify failed, client presumed gone")
	}
	delete(r.byAccount, s.Account)
	delete(r.byClient, s.ClientID)

	r.log.Debug().Int64("client_id", clientID).Str("account", account).Msg("session removed")
	return true
}

// Account returns the account name bound to clientID, or "" if none.
func (r *Registry) Account(clientID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.byClient[clientID]; s != nil {
		return s.Account
	}
	return ""
}

// Pusher returns the push handle for the client logged in as account, if any.
func (r *Registry) Pusher(account string) (Pusher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.byAccount[account]
	if s == nil {
		return nil, false
	}
	return s.Pusher, true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byAccount)
}
