package api

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// errFileTooLarge marks an upload exceeding its size cap
var errFileTooLarge = errors.New("api: file too large")

// nullString maps the empty string to SQL NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether err is a unique-index conflict.
// Postgres reports SQLSTATE 23505; the sqlite message form covers the
// test database.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports whether err is a foreign key conflict.
// Postgres reports SQLSTATE 23503; the sqlite message form covers the
// test database.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
