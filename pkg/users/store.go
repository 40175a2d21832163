// Package users persists user accounts and implements the signup/signin
// flows on top of the credential core.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/lsec-edu/microlearn/pkg/auth"
	"github.com/lsec-edu/microlearn/pkg/roles"
)

// Store handles user persistence. Email uniqueness is enforced by the
// store's unique index, so concurrent signups with the same email resolve
// to exactly one winner.
type Store struct {
	db    *sql.DB
	roles *roles.Store
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, roles: roles.NewStore(db)}
}

// isUniqueViolation reports whether err is a unique-index conflict.
// Postgres reports SQLSTATE 23505; the sqlite message form covers the
// test database.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create persists a new user and its role links in one transaction.
// The user must already carry a salt/digest pair; roleIDs must be
// resolved role references.
func (s *Store) Create(ctx context.Context, u *auth.User, roleIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (name, email, salt, digest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, u.Name, u.Email, u.Salt, u.Digest, now, now).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		`, u.ID, roleID); err != nil {
			return fmt.Errorf("failed to link role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetByID retrieves a user and its role names by ID
func (s *Store) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves a user and its role names by email
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getOne(ctx, `WHERE email = $1`, email)
}

func (s *Store) getOne(ctx context.Context, where string, arg interface{}) (*auth.User, error) {
	u := &auth.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, salt, digest, created_at, updated_at
		FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Salt, &u.Digest, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Roles, err = s.roles.NamesForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// List returns users without credential fields. With newest true it
// returns the most recently created accounts first, capped at limit.
func (s *Store) List(ctx context.Context, newest bool, limit int) ([]*auth.User, error) {
	query := `
		SELECT id, name, email, created_at, updated_at
		FROM users
		ORDER BY id ASC
	`
	args := []interface{}{}
	if newest {
		query = `
			SELECT id, name, email, created_at, updated_at
			FROM users
			ORDER BY id DESC
			LIMIT $1
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	list := make([]*auth.User, 0)
	for rows.Next() {
		u := &auth.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Role lookups run after the row set is drained so they never
	// contend with the open cursor for a connection.
	rows.Close()

	for _, u := range list {
		if u.Roles, err = s.roles.NamesForUser(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Update persists the user's mutable fields: name, email and the
// credential pair. Callers mutate the pair only through SetPassword, so
// salt and digest always change together.
func (s *Store) Update(ctx context.Context, u *auth.User) error {
	u.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, email = $2, salt = $3, digest = $4, updated_at = $5
		WHERE id = $6
	`, u.Name, u.Email, u.Salt, u.Digest, u.UpdatedAt, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user; role links and progress rows cascade
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
