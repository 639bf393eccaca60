// Package codehash computes the keyed digest stored in place of plaintext
// authentication codes. The digest is deterministic so validation can look a
// presented code up by hash; the server-side secret keeps a leaked table
// useless without it.
package codehash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher hashes codes with HMAC-SHA256 under a server-side secret.
type Hasher struct {
	secret []byte
}

// New creates a Hasher. The secret must be the same across every instance
// that reads or writes the code store.
func New(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns the hex digest stored for, and looked up by, a code.
func (h *Hasher) Hash(code string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
