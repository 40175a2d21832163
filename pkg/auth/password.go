package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrEmptyPassword is returned when deriving from an empty plaintext
	ErrEmptyPassword = errors.New("auth: empty password")
	// ErrEmptySalt is returned when deriving without a salt
	ErrEmptySalt = errors.New("auth: empty salt")
)

// NewSalt returns a fresh random per-user salt
func NewSalt() string {
	return uuid.NewString()
}

// Derive computes the one-way digest of plaintext under salt. It is
// deterministic: the same inputs always yield the same digest. Empty
// inputs fail closed — an empty digest is never valid.
func Derive(plaintext, salt string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if salt == "" {
		return "", ErrEmptySalt
	}

	mac := hmac.New(sha1.New, []byte(salt))
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the digest of plaintext under salt and compares it to
// storedDigest in constant time. A missing salt or digest always fails.
func Verify(plaintext, salt, storedDigest string) bool {
	if storedDigest == "" {
		return false
	}
	digest, err := Derive(plaintext, salt)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(digest), []byte(storedDigest))
}
