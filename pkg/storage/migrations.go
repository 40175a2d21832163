package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(32) NOT NULL UNIQUE
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(32) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					salt VARCHAR(64) NOT NULL,
					digest VARCHAR(64) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			`,
		},
		{
			Version:     3,
			Description: "Create user_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create modules table",
			SQL: `
				CREATE TABLE IF NOT EXISTS modules (
					id BIGSERIAL PRIMARY KEY,
					number INTEGER NOT NULL UNIQUE,
					name VARCHAR(32) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     5,
			Description: "Create lessons table",
			SQL: `
				CREATE TABLE IF NOT EXISTS lessons (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(32) NOT NULL,
					module_id BIGINT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
					icon BYTEA,
					icon_content_type VARCHAR(64),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_lessons_module_id ON lessons(module_id);
			`,
		},
		{
			Version:     6,
			Description: "Create cards table",
			SQL: `
				CREATE TABLE IF NOT EXISTS cards (
					id BIGSERIAL PRIMARY KEY,
					question VARCHAR(100) NOT NULL,
					correct_answer VARCHAR(100) NOT NULL,
					wrong_answer VARCHAR(100) NOT NULL,
					lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
					gif BYTEA,
					gif_content_type VARCHAR(64),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_cards_lesson_id ON cards(lesson_id);
			`,
		},
		{
			Version:     7,
			Description: "Create microlearnings table",
			SQL: `
				CREATE TABLE IF NOT EXISTS microlearnings (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(32) NOT NULL,
					lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
					image BYTEA,
					image_content_type VARCHAR(64),
					gif BYTEA,
					gif_content_type VARCHAR(64),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_microlearnings_lesson_id ON microlearnings(lesson_id);
			`,
		},
		{
			Version:     8,
			Description: "Create progress tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS lesson_progress (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
					completed_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, lesson_id)
				);

				CREATE TABLE IF NOT EXISTS microlearning_progress (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					microlearning_id BIGINT NOT NULL REFERENCES microlearnings(id) ON DELETE CASCADE,
					completed_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, microlearning_id)
				);
			`,
		},
	}
}

// Migrate applies all pending migrations in order, recording applied
// versions in schema_migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range GetMigrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
			m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}

	return nil
}
