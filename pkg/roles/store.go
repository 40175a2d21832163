package roles

import (
	"context"
	"database/sql"
	"fmt"
)

// Store handles role persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Seed creates the three known roles if the roles table is empty. It runs
// once at process startup and is idempotent: any existing roles make it a
// no-op.
func (s *Store) Seed(ctx context.Context) error {
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, name := range All() {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO roles (name) VALUES ($1)`, name,
		); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}
	}
	return nil
}

// Count returns the number of role records
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

// IDsForNames resolves role names to their IDs. An unresolvable name is
// reported as UnknownRoleError with its exact string.
func (s *Store) IDsForNames(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM roles WHERE name = $1`, name,
		).Scan(&id)
		if err == sql.ErrNoRows {
			return nil, &UnknownRoleError{Name: name}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role %s: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NamesForUser returns the role names held by a user, sorted by name
func (s *Store) NamesForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
