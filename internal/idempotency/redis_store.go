package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore remembers which idempotency keys a client already used, and what they
// produced, for ttl.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func lockKey(scope, key string) string   { return "idemp:" + scope + ":" + key }
func resultKey(scope, key string) string { return "idemp:map:" + scope + ":" + key }

// TryLock claims key for scope. It reports false when another request holds it.
func (s *RedisStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, lockKey(scope, key), "1", s.ttl).Result()
}

// Release frees a claim whose request failed, so the client may retry with the same key.
func (s *RedisStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, lockKey(scope, key)).Err()
}

func (s *RedisStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, resultKey(scope, key), value, s.ttl).Err()
}

func (s *RedisStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, resultKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
