// Package queue stores undelivered messages per account until the account's
// next drain.
package queue

import (
	"context"

	"github.com/eldtechnologies/parley/internal/models"
)

// Store defines the interface for the offline message queue.
// MemoryStore and RedisStore implement this interface.
//
// Append and Drain must be safe against each other for the same account: a
// message appended while a drain is in progress is either included in that
// drain or left for the next one, never lost.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// Append adds msg to account's queue. Queue order is insertion order.
	Append(ctx context.Context, account string, msg models.Message) error

	// Drain removes and returns all queued messages for account, in
	// insertion order.
	Drain(ctx context.Context, account string) ([]models.Message, error)

	// Pending returns the total number of queued messages across accounts.
	Pending(ctx context.Context) (int64, error)
}
