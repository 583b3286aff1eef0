// ABOUTME: Password hashing and verification using bcrypt
// ABOUTME: Keeps comparisons constant-time even when no account exists

package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned when a password doesn't match its hash
var ErrWrongPassword = errors.New("wrong password")

// dummyHash is a valid bcrypt hash compared against when the account doesn't
// exist, so login latency doesn't reveal which usernames are registered.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword hashes a plaintext password with bcrypt at default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a bcrypt hash.
// Returns ErrWrongPassword on mismatch.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// DummyCompare burns the same bcrypt work as a real comparison. Call it on
// the unknown-user path so both login failures take the same time.
func DummyCompare(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}
