package password

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 12
	// MinLength counts characters
	MinLength = 8
	// MaxLength counts bytes; bcrypt rejects longer input
	MaxLength = 72
)

// Cost is the bcrypt cost used by Hash. Tests lower it.
var Cost = DefaultCost

// Hash hashes a password using bcrypt
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares a password with a bcrypt hash
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether hash was made with a cost other than Cost,
// e.g. after DefaultCost was raised
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != Cost
}

// HashToken is the SHA-256 hex digest stored for refresh tokens. Tokens are
// random and long, so a fast hash is enough.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidatePassword checks length: at least MinLength characters and at most
// MaxLength bytes
func ValidatePassword(plain string) bool {
	return utf8.RuneCountInString(plain) >= MinLength && len(plain) <= MaxLength
}
