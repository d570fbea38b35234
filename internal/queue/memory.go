package queue

import (
	"context"
	"sync"

	"github.com/eldtechnologies/parley/internal/models"
)

// MemoryStore is the in-process queue backend and the default when no
// REDIS_URL is configured.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string][]models.Message
}

// NewMemoryStore creates an empty in-memory queue.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string][]models.Message)}
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Append adds msg to account's queue.
func (s *MemoryStore) Append(ctx context.Context, account string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[account] = append(s.pending[account], msg)
	return nil
}

// Drain removes and returns all queued messages for account in insertion
// order. The snapshot-and-clear happens under the lock, so an append racing
// with the drain lands either in the returned slice or in the queue for the
// next drain.
func (s *MemoryStore) Drain(ctx context.Context, account string) ([]models.Message, error) {
	s.mu.Lock()
	msgs := s.pending[account]
	delete(s.pending, account)
	s.mu.Unlock()

	return msgs, nil
}

// Pending returns the total number of queued messages across accounts.
func (s *MemoryStore) Pending(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, msgs := range s.pending {
		n += int64(len(msgs))
	}
	return n, nil
}
