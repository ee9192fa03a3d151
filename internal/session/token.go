package session

import (
	"crypto/rand"
	"encoding/hex"
)

// tokenBytes gives 256 bits of entropy. The token is a bearer capability:
// unguessability, the TTL, and single-active invalidation are the whole
// threat model, so there is no signature over it.
const tokenBytes = 32

// NewToken returns a cryptographically random, hex-encoded session token.
// Global uniqueness is guaranteed by the storage constraint; callers
// regenerate on the astronomically unlikely collision.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
