package domain

import "errors"

// Redemption outcomes. These are expected results of validation, not
// exceptional failures; the HTTP layer collapses all of them into one
// generic user-facing message while logs keep the distinction.
var (
	ErrCodeNotFound    = errors.New("auth code not found")
	ErrCodeExpired     = errors.New("auth code expired")
	ErrCodeUsed        = errors.New("auth code already used")
	ErrPurposeMismatch = errors.New("auth code purpose mismatch")
)

var (
	// ErrStorage wraps persistence-layer failures. Callers surface a generic
	// retryable error without detail.
	ErrStorage = errors.New("auth code storage failure")
	// ErrGeneration means the secure randomness source failed. There is no
	// fallback source; the request fails.
	ErrGeneration = errors.New("auth code generation failure")
)
