package directory

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-process directory backend. It is the default in
// tests and when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]struct{}
	groups   map[string][]string
}

// NewMemoryStore creates an empty in-memory directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]struct{}),
		groups:   make(map[string][]string),
	}
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() {}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// CreateAccount inserts name, returning false if it already exists.
func (s *MemoryStore) CreateAccount(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[name]; ok {
		return false, nil
	}
	s.accounts[name] = struct{}{}
	return true, nil
}

// DeleteAccount removes name, returning false if it was absent. It does not
// cascade into group membership lists.
func (s *MemoryStore) DeleteAccount(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[name]; !ok {
		return false, nil
	}
	delete(s.accounts, name)
	return true, nil
}

// HasAccount reports whether name exists.
func (s *MemoryStore) HasAccount(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[name]
	return ok, nil
}

// ListAccounts returns a sorted snapshot of account names.
func (s *MemoryStore) ListAccounts(ctx context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.accounts))
	for name := range s.accounts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// CountAccounts returns the number of accounts.
func (s *MemoryStore) CountAccounts(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.accounts)), nil
}

// CreateGroup replaces any existing group of the same name with the given
// member set.
func (s *MemoryStore) CreateGroup(ctx context.Context, name string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups[name] = append([]string(nil), members...)
	return nil
}

// DeleteGroup removes name, returning false if it was absent.
func (s *MemoryStore) DeleteGroup(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; !ok {
		return false, nil
	}
	delete(s.groups, name)
	return true, nil
}

// GroupMembers returns a copy of the group's member list, or nil if the
// group does not exist.
func (s *MemoryStore) GroupMembers(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.groups[name]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), members...), nil
}

// ListGroups returns a sorted snapshot of group names.
func (s *MemoryStore) ListGroups(ctx context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.groups))
	for name := range s.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// CountGroups returns the number of groups.
func (s *MemoryStore) CountGroups(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.groups)), nil
}
