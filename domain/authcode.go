package domain

import "time"

// CodeValidity is the window during which an issued code can be redeemed.
// Fixed policy, deliberately not configurable.
const CodeValidity = 5 * time.Minute

// Purpose identifies the action an authentication code authorizes. Codes are
// never interchangeable across purposes.
type Purpose string

const (
	PurposeEmailConfirmation Purpose = "email_confirmation"
	PurposePasswordReset     Purpose = "password_reset"
)

// ParsePurpose maps a wire value to a Purpose.
func ParsePurpose(s string) (Purpose, bool) {
	switch Purpose(s) {
	case PurposeEmailConfirmation:
		return PurposeEmailConfirmation, true
	case PurposePasswordReset:
		return PurposePasswordReset, true
	default:
		return "", false
	}
}

// AuthCode is a single-use, time-limited authentication code. Only the keyed
// hash of the code is ever stored; the plaintext exists exactly once, in the
// return value of issuance.
type AuthCode struct {
	ID        string     `bson:"_id"                json:"id"`
	CodeHash  string     `bson:"code_hash"          json:"-"`
	OwnerID   string     `bson:"owner_id"           json:"owner_id"`
	Purpose   Purpose    `bson:"purpose"            json:"purpose"`
	CreatedAt time.Time  `bson:"created_at"         json:"created_at"`
	ExpiresAt time.Time  `bson:"expires_at"         json:"expires_at"`
	Used      bool       `bson:"used"               json:"used"`
	UsedAt    *time.Time `bson:"used_at,omitempty"  json:"used_at,omitempty"`
}

// IsExpired reports whether the code's validity window has passed.
func (c *AuthCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsValid reports whether the code can still be redeemed: unused and not yet
// expired.
func (c *AuthCode) IsValid(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt)
}

// RedeemError explains why an existing record cannot be redeemed for the
// given purpose, or nil if it can. Purpose is checked first so that a
// mismatched presentation is reported without revealing the code's state.
func (c *AuthCode) RedeemError(purpose Purpose, now time.Time) error {
	switch {
	case c.Purpose != purpose:
		return ErrPurposeMismatch
	case c.Used:
		return ErrCodeUsed
	case c.IsExpired(now):
		return ErrCodeExpired
	default:
		return nil
	}
}
