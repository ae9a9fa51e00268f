package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session keys so the database can be shared with
// other ephemeral data.
const keyPrefix = "session:"

// tokenBytes yields 128 bits of randomness per token, hex encoded.
const tokenBytes = 16

// defaultOpTimeout bounds every round trip to Redis so a wedged store
// surfaces as ErrUnavailable instead of an indefinite hang.
const defaultOpTimeout = 3 * time.Second

// RedisStore implements Store on top of a shared go-redis client handle.
// The client is injected by the caller and its lifecycle belongs to the
// process, not to this type.
type RedisStore struct {
	rdb       redis.UniversalClient
	opTimeout time.Duration
	now       func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an already-connected client.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb, opTimeout: defaultOpTimeout, now: time.Now}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create writes a fresh session record with a store-level TTL and returns
// the generated token.
func (s *RedisStore) Create(ctx context.Context, userPublicID string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	rec := Record{
		UserPublicID: userPublicID,
		ExpTimestamp: s.now().Add(ttl).Unix(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode session record: %w", err)
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Set(opCtx, keyPrefix+token, payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

// Get fetches the record for a token. Returns (nil, nil) when the key is
// missing or already expired store-side.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	payload, err := s.rdb.Get(opCtx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

// Delete removes the session key. Reports whether a record existed so
// logout can stay idempotent.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.rdb.Del(opCtx, keyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// IsValid reports whether the token resolves to a record and the embedded
// expiry has not passed. The store TTL already pruned anything older than
// its own deadline; checking the embedded timestamp as well keeps the two
// expiry mechanisms honest against each other.
func (s *RedisStore) IsValid(ctx context.Context, sessionID string) (bool, error) {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	return s.now().Unix() < rec.ExpTimestamp, nil
}
