package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keeperfind/keeper-auth/domain"
	"github.com/keeperfind/keeper-auth/internal/codegen"
	"github.com/keeperfind/keeper-auth/internal/codehash"
	"github.com/keeperfind/keeper-auth/internal/metrics"
)

// storageTimeout bounds every round-trip to the code store so a slow backend
// surfaces as a storage failure instead of a hang.
const storageTimeout = 5 * time.Second

// AuthCodeService manages the lifecycle of authentication codes: issuance,
// one-time redemption, and sweeping of stale records. All state lives in the
// injected repository; the service itself is safe for concurrent use.
type AuthCodeService struct {
	repo      domain.AuthCodeRepository
	hasher    *codehash.Hasher
	retention time.Duration
	now       func() time.Time
}

// NewAuthCodeService creates an AuthCodeService. retention is how long
// records are kept past expiry before the sweeper removes them; zero is
// valid.
func NewAuthCodeService(repo domain.AuthCodeRepository, hasher *codehash.Hasher, retention time.Duration) *AuthCodeService {
	if retention < 0 {
		retention = 0
	}
	return &AuthCodeService{
		repo:      repo,
		hasher:    hasher,
		retention: retention,
		now:       time.Now,
	}
}

// Issue generates a new code for the owner and purpose, persists its keyed
// hash with a five-minute expiry, and returns the plaintext for delivery.
// The plaintext is never recoverable after this call. Any outstanding valid
// code for the same (owner, purpose) pair is superseded.
func (s *AuthCodeService) Issue(ctx context.Context, ownerID string, purpose domain.Purpose) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", fmt.Errorf("owner id cannot be empty")
	}

	plaintext, err := codegen.Generate()
	if err != nil {
		log.Error().Err(err).Msg("Secure code generation failed")
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	now := s.now().UTC()
	code := &domain.AuthCode{
		ID:        uuid.NewString(),
		CodeHash:  s.hasher.Hash(plaintext),
		OwnerID:   ownerID,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.CodeValidity),
	}

	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := s.repo.Insert(ctx, code); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Str("purpose", string(purpose)).
			Msg("Failed to store authentication code")
		return "", err
	}

	metrics.CodesIssuedTotal.WithLabelValues(string(purpose)).Inc()
	log.Debug().Str("id", code.ID).Str("owner_id", ownerID).Str("purpose", string(purpose)).
		Time("expires_at", code.ExpiresAt).Msg("Authentication code issued")

	return plaintext, nil
}

// Validate redeems a presented code for the expected purpose. On success the
// record is atomically marked used and the owner it authorizes is returned;
// a second call with the same code yields domain.ErrCodeUsed, never a second
// success. A purpose mismatch leaves the code redeemable for its real
// purpose.
func (s *AuthCodeService) Validate(ctx context.Context, presented string, purpose domain.Purpose) (string, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		metrics.CodeValidationsTotal.WithLabelValues(outcomeLabel(domain.ErrCodeNotFound)).Inc()
		return "", domain.ErrCodeNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	code, err := s.repo.Redeem(ctx, s.hasher.Hash(presented), purpose, s.now().UTC())
	if err != nil {
		metrics.CodeValidationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		log.Info().Err(err).Str("purpose", string(purpose)).Msg("Code validation rejected")
		return "", err
	}

	metrics.CodeValidationsTotal.WithLabelValues("success").Inc()
	log.Info().Str("id", code.ID).Str("owner_id", code.OwnerID).Str("purpose", string(purpose)).
		Msg("Authentication code redeemed")

	return code.OwnerID, nil
}

// Sweep deletes records whose expiry lies further in the past than the
// retention margin and reports how many were removed. A failed sweep is
// harmless; stale rows are inert and the next interval retries.
func (s *AuthCodeService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)

	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	count, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.CodesSweptTotal.Add(float64(count))
	return count, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrCodeUsed):
		return "already_used"
	case errors.Is(err, domain.ErrPurposeMismatch):
		return "purpose_mismatch"
	default:
		return "storage_error"
	}
}
