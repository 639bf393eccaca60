package domain

import (
	"context"
	"time"
)

// AuthCodeRepository persists authentication codes. Implementations must make
// Insert's supersession step and Redeem's used-flip atomic with their
// storage-native primitives; read-then-write in application code is not
// enough for either.
type AuthCodeRepository interface {
	// Insert stores a new code record. Any outstanding unused code for the
	// same (owner, purpose) pair is removed in the same operation, so at most
	// one valid code per pair exists at any time.
	Insert(ctx context.Context, code *AuthCode) error

	// Redeem atomically marks the record matching codeHash as used and
	// returns it. Failures are reported with the sentinel errors in this
	// package: ErrCodeNotFound, ErrCodeExpired, ErrCodeUsed,
	// ErrPurposeMismatch, or a wrapped ErrStorage. A purpose mismatch never
	// consumes the code.
	Redeem(ctx context.Context, codeHash string, purpose Purpose, now time.Time) (*AuthCode, error)

	// DeleteExpiredBefore removes every record whose expiry lies before
	// cutoff, used or not, and reports how many were deleted. Idempotent.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdentityUpdater is the capability handed the verified owner after a
// successful redemption. The validator itself never calls the identity
// store; the HTTP completion handlers do, at most once per redemption by
// construction of the used-flip.
type IdentityUpdater interface {
	ConfirmEmail(ctx context.Context, ownerID string) error
	SetPassword(ctx context.Context, ownerID, newPassword string) error
}

// PasswordHasher hashes and verifies user passwords for the identity store.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}

// Sender delivers an issued code to its owner. Transport (SMTP, provider
// API) lives outside this service; implementations receive the plaintext
// embedded in actionURL exactly once and must not persist it.
type Sender interface {
	Send(ctx context.Context, ownerID string, purpose Purpose, actionURL string) error
}
