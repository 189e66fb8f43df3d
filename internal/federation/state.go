package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/authservice/internal/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrStateNotFound = errors.New("oauth2 state not found or expired")

// StateStore keeps the one-time state parameter issued with an authorize
// redirect, keyed by state and holding the registration id it was issued for.
type StateStore interface {
	Save(ctx context.Context, state, registrationID string) error
	// Consume returns the registration id and removes the state.
	Consume(ctx context.Context, state string) (string, error)
}

func NewState() string {
	return uuid.NewString()
}

const DefaultStateKeyPrefix = "authservice:oauth2:state:"

type RedisStateStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStateStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStateStore{rdb: rdb, prefix: DefaultStateKeyPrefix, ttl: ttl}
}

func (s *RedisStateStore) Save(ctx context.Context, state, registrationID string) error {
	if err := s.rdb.Set(ctx, s.prefix+state, registrationID, s.ttl).Err(); err != nil {
		return fmt.Errorf("save oauth2 state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrStateNotFound
	}

	v, err := s.rdb.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume oauth2 state: %w", err)
	}

	return v, nil
}

// MemoryStateStore is the single-process StateStore used with the memory driver.
type MemoryStateStore struct {
	c *cache.Cache[string]
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryStateStore{c: cache.New[string](ttl)}
}

func (s *MemoryStateStore) Save(ctx context.Context, state, registrationID string) error {
	s.c.Sweep()
	s.c.Set(state, registrationID)
	return nil
}

func (s *MemoryStateStore) Consume(ctx context.Context, state string) (string, error) {
	v, ok := s.c.Take(state)
	if !ok {
		return "", ErrStateNotFound
	}
	return v, nil
}
