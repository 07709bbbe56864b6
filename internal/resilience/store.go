// internal/resilience/store.go
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore shares breaker state across process instances. Both operations
// are best effort: the breaker falls back to fresh state on Load errors and
// ignores Save errors.
type StateStore interface {
	// Load returns the stored state for a breaker name, or nil when absent.
	Load(ctx context.Context, name string) (*BreakerState, error)
	// Save stores the state under the breaker name with the store's TTL.
	Save(ctx context.Context, name string, state BreakerState) error
}

// RedisStateStore keeps breaker state in Redis under a TTL so that stale
// entries age out on their own.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func breakerKey(name string) string {
	return "breaker:" + name
}

func (s *RedisStateStore) Load(ctx context.Context, name string) (*BreakerState, error) {
	val, err := s.rdb.Get(ctx, breakerKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load breaker state: %w", err)
	}

	var state BreakerState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("decode breaker state: %w", err)
	}
	return &state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, name string, state BreakerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode breaker state: %w", err)
	}
	if err := s.rdb.Set(ctx, breakerKey(name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save breaker state: %w", err)
	}
	return nil
}
