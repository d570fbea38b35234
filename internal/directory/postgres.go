package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the shared-database directory backend, selected by
// DATABASE_URL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		name TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS groups (
		name TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_name TEXT NOT NULL REFERENCES groups(name) ON DELETE CASCADE,
		member TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (group_name, member)
	);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateAccount inserts name, returning false if it already exists.
func (s *PostgresStore) CreateAccount(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteAccount removes name, returning false if it was absent.
func (s *PostgresStore) DeleteAccount(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE name = $1`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// HasAccount reports whether name exists.
func (s *PostgresStore) HasAccount(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM accounts WHERE name = $1`, name).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListAccounts returns a sorted snapshot of account names.
func (s *PostgresStore) ListAccounts(ctx context.Context, pattern string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNames(rows)
}

// CountAccounts returns the number of accounts.
func (s *PostgresStore) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}

// CreateGroup replaces any existing group of the same name with the given
// member set.
func (s *PostgresStore) CreateGroup(ctx context.Context, name string, members []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO groups (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, name); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_name = $1`, name); err != nil {
		return err
	}
	for i, member := range members {
		if _, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_name, member, position) VALUES ($1, $2, $3)
			ON CONFLICT (group_name, member) DO NOTHING
		`, name, member, i); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteGroup removes name, returning false if it was absent.
func (s *PostgresStore) DeleteGroup(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE name = $1`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GroupMembers returns the group's member list in insertion order, or nil if
// the group does not exist.
func (s *PostgresStore) GroupMembers(ctx context.Context, name string) ([]string, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM groups WHERE name = $1`, name).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT member FROM group_members WHERE group_name = $1 ORDER BY position
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members, err := collectNames(rows)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// ListGroups returns a sorted snapshot of group names.
func (s *PostgresStore) ListGroups(ctx context.Context, pattern string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNames(rows)
}

// CountGroups returns the number of groups.
func (s *PostgresStore) CountGroups(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM groups`).Scan(&count)
	return count, err
}

func collectNames(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
