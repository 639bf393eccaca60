package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/keeperfind/keeper-auth/domain"
)

// MemoryCodeStore implements domain.AuthCodeRepository using ttlcache, for
// development and tests. Entries are kept past their validity window by the
// retention margin so redemption can still tell an expired code from an
// unknown one; the cache TTL bounds growth even without sweeps.
type MemoryCodeStore struct {
	mu        sync.Mutex
	cache     *ttlcache.Cache[string, *domain.AuthCode]
	retention time.Duration
}

// NewMemoryCodeStore creates a new in-memory code store with automatic
// cleanup.
func NewMemoryCodeStore(retention time.Duration) *MemoryCodeStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.AuthCode](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryCodeStore{
		cache:     cache,
		retention: retention,
	}
}

// Insert implements domain.AuthCodeRepository. The mutex makes the
// supersession scan and the insert one atomic step.
func (s *MemoryCodeStore) Insert(_ context.Context, code *domain.AuthCode) error {
	if code.CodeHash == "" {
		return fmt.Errorf("%w: code hash cannot be empty", domain.ErrStorage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache.Get(code.CodeHash) != nil {
		return fmt.Errorf("%w: code hash already exists", domain.ErrStorage)
	}

	// Supersession: any outstanding unused code for this owner and purpose
	// dies with the new issuance.
	for hash, item := range s.cache.Items() {
		existing := item.Value()
		if existing.OwnerID == code.OwnerID && existing.Purpose == code.Purpose && !existing.Used {
			s.cache.Delete(hash)
		}
	}

	ttl := code.ExpiresAt.Sub(code.CreatedAt) + s.retention
	s.cache.Set(code.CodeHash, code, ttl)
	return nil
}

// Redeem implements domain.AuthCodeRepository. The mutex serializes the
// check and the used-flip, so two concurrent redemptions of one code cannot
// both succeed.
func (s *MemoryCodeStore) Redeem(_ context.Context, codeHash string, purpose domain.Purpose, now time.Time) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(codeHash)
	if item == nil {
		return nil, domain.ErrCodeNotFound
	}

	code := item.Value()
	if err := code.RedeemError(purpose, now); err != nil {
		return nil, err
	}

	usedAt := now
	code.Used = true
	code.UsedAt = &usedAt

	redeemed := *code
	return &redeemed, nil
}

// DeleteExpiredBefore implements domain.AuthCodeRepository.
func (s *MemoryCodeStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for hash, item := range s.cache.Items() {
		if item.Value().ExpiresAt.Before(cutoff) {
			s.cache.Delete(hash)
			count++
		}
	}
	return count, nil
}

// Count reports the number of records currently held.
func (s *MemoryCodeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Stop halts the background cleanup goroutine.
func (s *MemoryCodeStore) Stop() {
	s.cache.Stop()
}

var _ domain.AuthCodeRepository = (*MemoryCodeStore)(nil)
