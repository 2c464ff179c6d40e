package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jordanlanch/leadintake/pkg/cache"
)

const keyPrefix = "intake:session"

// RedisProvider stores session data in Redis. Every key carries the session
// TTL so a whole session's state expires together once the visitor is gone.
type RedisProvider struct {
	cache *cache.Client
	ttl   time.Duration
}

// NewRedisProvider creates a Redis-backed session store provider
func NewRedisProvider(cache *cache.Client, ttl time.Duration) *RedisProvider {
	return &RedisProvider{cache: cache, ttl: ttl}
}

// ForSession returns the store scoped to the given session ID
func (p *RedisProvider) ForSession(id string) Store {
	return &redisStore{provider: p, sessionID: id}
}

// EndSession removes every key belonging to the session
func (p *RedisProvider) EndSession(ctx context.Context, id string) error {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, id)

	var cursor uint64
	for {
		keys, next, err := p.cache.Redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan session keys: %w", err)
		}
		if len(keys) > 0 {
			if err := p.cache.Delete(ctx, keys...); err != nil {
				return fmt.Errorf("failed to delete session keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

type redisStore struct {
	provider  *RedisProvider
	sessionID string
}

func (s *redisStore) key(key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, s.sessionID, key)
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.provider.cache.Get(ctx, s.key(key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	return s.provider.cache.Set(ctx, s.key(key), value, s.provider.ttl)
}

func (s *redisStore) Remove(ctx context.Context, key string) error {
	return s.provider.cache.Delete(ctx, s.key(key))
}
