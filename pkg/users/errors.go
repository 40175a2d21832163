package users

import "errors"

var (
	// ErrNotFound is returned when no user matches the lookup
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicateEmail is returned when the email is already registered
	ErrDuplicateEmail = errors.New("users: duplicate email")
	// ErrValidation is returned for missing or malformed signup fields
	ErrValidation = errors.New("users: invalid fields")
	// ErrBadCredentials is returned when the password does not match
	ErrBadCredentials = errors.New("users: bad credentials")
)
