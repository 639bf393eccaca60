// Package redis provides a Redis-backed authentication code store. Each code
// lives in a hash keyed by its digest, with an active-pointer key per
// (owner, purpose) pair backing supersession. Lua scripts make the
// supersession step and the used-flip atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keeperfind/keeper-auth/domain"
)

// CodeStore implements domain.AuthCodeRepository using Redis.
type CodeStore struct {
	client    *redis.Client
	prefix    string // Optional prefix for keys
	retention time.Duration
}

// NewCodeStore creates a new [CodeStore] instance.
func NewCodeStore(client *redis.Client, prefix string, retention time.Duration) *CodeStore {
	if retention < 0 {
		retention = 0
	}
	return &CodeStore{
		client:    client,
		prefix:    prefix,
		retention: retention,
	}
}

func (r *CodeStore) codeKey(codeHash string) string {
	return fmt.Sprintf("%s:code:%s", r.prefix, codeHash)
}

func (r *CodeStore) activeKey(ownerID string, purpose domain.Purpose) string {
	return fmt.Sprintf("%s:active:%s:%s", r.prefix, ownerID, purpose)
}

// issueScript deletes the previously active code for the pair, rejects a
// digest collision, stores the new record, and repoints the active pointer.
// KEYS[1] = new code key, KEYS[2] = active pointer key.
// ARGV = id, owner_id, purpose, created_at, expires_at, code ttl ms, pointer ttl ms.
var issueScript = redis.NewScript(`
local prev = redis.call("GET", KEYS[2])
if prev then
  redis.call("DEL", prev)
end
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "owner_id", ARGV[2],
  "purpose", ARGV[3],
  "created_at", ARGV[4],
  "expires_at", ARGV[5],
  "used", "0",
  "used_at", "")
redis.call("PEXPIRE", KEYS[1], ARGV[6])
redis.call("SET", KEYS[2], KEYS[1], "PX", ARGV[7])
return 1
`)

// redeemScript classifies and, when the record is redeemable, flips used in
// the same server-side step. KEYS[1] = code key. ARGV = purpose, now (unix).
var redeemScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return "not_found"
end
if redis.call("HGET", KEYS[1], "purpose") ~= ARGV[1] then
  return "purpose_mismatch"
end
if redis.call("HGET", KEYS[1], "used") == "1" then
  return "used"
end
if tonumber(ARGV[2]) >= tonumber(redis.call("HGET", KEYS[1], "expires_at")) then
  return "expired"
end
redis.call("HSET", KEYS[1], "used", "1", "used_at", ARGV[2])
return "ok"
`)

// Insert implements domain.AuthCodeRepository.
func (r *CodeStore) Insert(ctx context.Context, code *domain.AuthCode) error {
	if code.CodeHash == "" {
		return fmt.Errorf("%w: code hash cannot be empty", domain.ErrStorage)
	}

	validity := code.ExpiresAt.Sub(code.CreatedAt)
	codeTTL := validity + r.retention

	res, err := issueScript.Run(ctx, r.client,
		[]string{r.codeKey(code.CodeHash), r.activeKey(code.OwnerID, code.Purpose)},
		code.ID,
		code.OwnerID,
		string(code.Purpose),
		strconv.FormatInt(code.CreatedAt.Unix(), 10),
		strconv.FormatInt(code.ExpiresAt.Unix(), 10),
		strconv.FormatInt(codeTTL.Milliseconds(), 10),
		strconv.FormatInt(validity.Milliseconds(), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("%w: insert auth code in Redis: %v", domain.ErrStorage, err)
	}
	if res == 0 {
		return fmt.Errorf("%w: code hash already exists", domain.ErrStorage)
	}
	return nil
}

// Redeem implements domain.AuthCodeRepository.
func (r *CodeStore) Redeem(ctx context.Context, codeHash string, purpose domain.Purpose, now time.Time) (*domain.AuthCode, error) {
	key := r.codeKey(codeHash)

	res, err := redeemScript.Run(ctx, r.client,
		[]string{key},
		string(purpose),
		strconv.FormatInt(now.Unix(), 10),
	).Text()
	if err != nil {
		return nil, fmt.Errorf("%w: redeem auth code in Redis: %v", domain.ErrStorage, err)
	}

	switch res {
	case "ok":
	case "not_found":
		return nil, domain.ErrCodeNotFound
	case "purpose_mismatch":
		return nil, domain.ErrPurposeMismatch
	case "used":
		return nil, domain.ErrCodeUsed
	case "expired":
		return nil, domain.ErrCodeExpired
	default:
		return nil, fmt.Errorf("%w: unexpected redeem result %q", domain.ErrStorage, res)
	}

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read redeemed code: %v", domain.ErrStorage, err)
	}
	return parseRecord(codeHash, fields)
}

// DeleteExpiredBefore implements domain.AuthCodeRepository. Key TTLs already
// bound growth; the scan exists so an explicit sweep reports what it
// removed and can apply a shorter cutoff than the retention TTL.
func (r *CodeStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	iter := r.client.Scan(ctx, 0, r.codeKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		expiresAt, err := r.client.HGet(ctx, key, "expires_at").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and read
			}
			return count, fmt.Errorf("%w: read expiry during sweep: %v", domain.ErrStorage, err)
		}
		exp, err := strconv.ParseInt(expiresAt, 10, 64)
		if err != nil {
			continue
		}
		if exp < cutoff.Unix() {
			if err := r.client.Del(ctx, key).Err(); err != nil {
				return count, fmt.Errorf("%w: delete expired code: %v", domain.ErrStorage, err)
			}
			count++
		}
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("%w: scan codes during sweep: %v", domain.ErrStorage, err)
	}
	return count, nil
}

func parseRecord(codeHash string, fields map[string]string) (*domain.AuthCode, error) {
	if len(fields) == 0 {
		return nil, domain.ErrCodeNotFound
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed created_at: %v", domain.ErrStorage, err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed expires_at: %v", domain.ErrStorage, err)
	}

	code := &domain.AuthCode{
		ID:        fields["id"],
		CodeHash:  codeHash,
		OwnerID:   fields["owner_id"],
		Purpose:   domain.Purpose(fields["purpose"]),
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		ExpiresAt: time.Unix(expiresAt, 0).UTC(),
		Used:      fields["used"] == "1",
	}
	if code.Used && fields["used_at"] != "" {
		usedAt, err := strconv.ParseInt(fields["used_at"], 10, 64)
		if err == nil {
			t := time.Unix(usedAt, 0).UTC()
			code.UsedAt = &t
		}
	}
	return code, nil
}

var _ domain.AuthCodeRepository = (*CodeStore)(nil)
