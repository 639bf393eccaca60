package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeperfind/keeper-auth/cache"
	"github.com/keeperfind/keeper-auth/domain"
	"github.com/keeperfind/keeper-auth/internal/codehash"
)

// Full lifecycle against a real store with a controlled clock.
func TestEndToEndLifecycle(t *testing.T) {
	store := cache.NewMemoryCodeStore(time.Hour)
	defer store.Stop()

	svc := NewAuthCodeService(store, codehash.New("test-secret"), time.Hour)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := start
	svc.now = func() time.Time { return current }
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user-1", domain.PurposeEmailConfirmation)
	require.NoError(t, err)

	// Just inside the window: redeems and returns the owner.
	current = start.Add(4*time.Minute + 59*time.Second)
	owner, err := svc.Validate(ctx, code, domain.PurposeEmailConfirmation)
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)

	// One second later: the same code is spent, not expired.
	current = current.Add(time.Second)
	_, err = svc.Validate(ctx, code, domain.PurposeEmailConfirmation)
	assert.ErrorIs(t, err, domain.ErrCodeUsed)
}

func TestEndToEndExpiry(t *testing.T) {
	store := cache.NewMemoryCodeStore(time.Hour)
	defer store.Stop()

	svc := NewAuthCodeService(store, codehash.New("test-secret"), time.Hour)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := start
	svc.now = func() time.Time { return current }
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user-1", domain.PurposeEmailConfirmation)
	require.NoError(t, err)

	// Never redeemed; ten minutes later the window has long passed.
	current = start.Add(10 * time.Minute)
	_, err = svc.Validate(ctx, code, domain.PurposeEmailConfirmation)
	assert.ErrorIs(t, err, domain.ErrCodeExpired)

	// Not yet past the retention margin, so the sweep leaves it in place for
	// the expiry check above to keep answering.
	count, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Past expiry plus retention the record finally goes.
	current = start.Add(5*time.Minute + time.Hour + time.Second)
	count, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.Validate(ctx, code, domain.PurposeEmailConfirmation)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestEndToEndSupersession(t *testing.T) {
	store := cache.NewMemoryCodeStore(time.Hour)
	defer store.Stop()

	svc := NewAuthCodeService(store, codehash.New("test-secret"), time.Hour)
	ctx := context.Background()

	codeA, err := svc.Issue(ctx, "user-1", domain.PurposePasswordReset)
	require.NoError(t, err)
	codeB, err := svc.Issue(ctx, "user-1", domain.PurposePasswordReset)
	require.NoError(t, err)
	require.NotEqual(t, codeA, codeB)

	_, err = svc.Validate(ctx, codeA, domain.PurposePasswordReset)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound, "superseded code must no longer validate")

	owner, err := svc.Validate(ctx, codeB, domain.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)
}
