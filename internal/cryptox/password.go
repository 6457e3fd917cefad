// Package cryptox implements password hashing and verification for the user
// directory. Hashes are salted PBKDF2-HMAC-SHA512; the salt is stored as the
// first 64 hex characters of the opaque hash string.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltHexLen = 64
	iterations = 100000
	keyLen     = 64
)

// HashPassword derives an opaque hash string from the password. The result
// embeds the salt, so it is self-contained for later verification.
func HashPassword(password string) (string, error) {
	raw := make([]byte, 60)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("salt generation: %w", err)
	}

	sum := sha256.Sum256(raw)
	salt := hex.EncodeToString(sum[:])

	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen, sha512.New)
	return salt + hex.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches the stored opaque hash.
// Comparison is constant-time.
func VerifyPassword(stored, password string) bool {
	if len(stored) <= saltHexLen {
		return false
	}
	salt := stored[:saltHexLen]
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen, sha512.New)
	candidate := hex.EncodeToString(key)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(stored[saltHexLen:])) == 1
}
