package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a client id or secret is wrong.
var ErrInvalidCredentials = errors.New("invalid client credentials")

// MaxSecretLength is the longest secret bcrypt can hash.
const MaxSecretLength = 72

// HashSecret hashes a client secret with bcrypt.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	if len(secret) > MaxSecretLength {
		return "", fmt.Errorf("secret exceeds maximum length of %d bytes", MaxSecretLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckSecret reports whether secret matches hash.
func CheckSecret(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// ValidHash reports whether hash is a bcrypt hash.
func ValidHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("not a bcrypt hash: %w", err)
	}
	return nil
}

// unknownClientHash is compared against for unknown ids so that a lookup
// miss costs as much as a wrong secret.
var unknownClientHash, _ = bcrypt.GenerateFromPassword([]byte("fielddoc-unknown-client"), bcrypt.DefaultCost)

// Clients maps client ids to bcrypt hashes of their secrets.
type Clients map[string]string

// Authenticate checks secret against the hash stored for id.
func (c Clients) Authenticate(id, secret string) error {
	hash, ok := c[id]
	if !ok {
		bcrypt.CompareHashAndPassword(unknownClientHash, []byte(secret))
		return ErrInvalidCredentials
	}
	if !CheckSecret(secret, hash) {
		return ErrInvalidCredentials
	}
	return nil
}
