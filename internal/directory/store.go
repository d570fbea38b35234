// Package directory owns the set of account names and the mapping from group
// name to member account names.
package directory

import "context"

// Store defines the interface for the account/group directory.
// MemoryStore, SQLiteStore and PostgresStore implement this interface.
//
// The pattern argument on the list calls is accepted for forward
// compatibility but not yet implemented: every backend returns the unfiltered
// snapshot regardless of pattern.
type Store interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Account operations
	CreateAccount(ctx context.Context, name string) (bool, error)
	DeleteAccount(ctx context.Context, name string) (bool, error)
	HasAccount(ctx context.Context, name string) (bool, error)
	ListAccounts(ctx context.Context, pattern string) ([]string, error)
	CountAccounts(ctx context.Context) (int64, error)

	// Group operations. CreateGroup unconditionally replaces any existing
	// group of the same name; membership is not validated against accounts.
	CreateGroup(ctx context.Context, name string, members []string) error
	DeleteGroup(ctx context.Context, name string) (bool, error)
	GroupMembers(ctx context.Context, name string) ([]string, error)
	ListGroups(ctx context.Context, pattern string) ([]string, error)
	CountGroups(ctx context.Context) (int64, error)
}
