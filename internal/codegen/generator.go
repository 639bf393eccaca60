// Package codegen produces the high-entropy authentication codes handed to
// users. Codes are 32 characters over a 62-symbol alphabet, roughly 190 bits
// of entropy, which makes brute force infeasible within the five-minute
// validity window.
package codegen

import (
	"crypto/rand"
	"fmt"
)

// CodeLength is the length of every generated code.
const CodeLength = 32

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxByte is the largest multiple of len(alphabet) below 256. Bytes at or
// above it are rejected to keep the selection unbiased.
const maxByte = 248

// Generate returns a new authentication code from the system CSPRNG. It has
// no side effects; collision handling is the store's job via its uniqueness
// constraint. A randomness failure is returned as-is, never worked around
// with a weaker source.
func Generate() (string, error) {
	out := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(out) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == CodeLength {
				break
			}
		}
	}
	return string(out), nil
}
