package auth

import "time"

// User represents an account on the platform
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Salt      string    `json:"-"` // never exposed
	Digest    string    `json:"-"` // never exposed
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SetPassword is the only path that mutates the credential pair. It
// generates a fresh salt and derives the digest in one step so a user can
// never end up with a digest under a stale salt.
func (u *User) SetPassword(plaintext string) error {
	salt := NewSalt()
	digest, err := Derive(plaintext, salt)
	if err != nil {
		return err
	}
	u.Salt = salt
	u.Digest = digest
	return nil
}

// Authenticate reports whether plaintext matches the stored credential
func (u *User) Authenticate(plaintext string) bool {
	return Verify(plaintext, u.Salt, u.Digest)
}

// HasRole reports whether the user holds the named role
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}
