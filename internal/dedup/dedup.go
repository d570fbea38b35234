// Package dedup provides the at-most-once filters used on both sides of the
// wire: the server ledger keyed by (client ID, client sequence number) for
// inbound sends, and the client filter keyed by server sequence number for
// inbound pushes.
//
// Neither filter is ever pruned; entries live for the lifetime of the
// process. A retransmitted request therefore stays suppressed no matter how
// late it arrives.
package dedup

import "sync"

// Ledger records which client sequence numbers the server has already
// accepted from each client.
type Ledger struct {
	mu   sync.Mutex
	seen map[int64]map[uint64]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[int64]map[uint64]struct{})}
}

// Observe records (clientID, seq) and reports whether it was seen for the
// first time. A false return means the request is a retransmit and must not
// be applied again.
func (l *Ledger) Observe(clientID int64, seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	seqs := l.seen[clientID]
	if seqs == nil {
		seqs = make(map[uint64]struct{})
		l.seen[clientID] = seqs
	}
	if _, dup := seqs[seq]; dup {
		return false
	}
	seqs[seq] = struct{}{}
	return true
}

// Filter records which server sequence numbers a client has already accepted.
type Filter struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

// NewFilter creates an empty filter.
func NewFilter() *Filter {
	return &Filter{seen: make(map[uint64]struct{})}
}

// Observe records seq and reports whether it was seen for the first time.
func (f *Filter) Observe(seq uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[seq]; dup {
		return false
	}
	f.seen[seq] = struct{}{}
	return true
}
