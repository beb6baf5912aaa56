package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a reachable Redis, e.g. REDIS_ADDR=localhost:6379.
func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	store := NewRedisStore(rdb, time.Minute)
	key := uuid.NewString()

	_, found, err := store.Recall(ctx, "user-1", key)
	require.NoError(t, err)
	assert.False(t, found)

	ok, err := store.TryLock(ctx, "user-1", key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryLock(ctx, "user-1", key)
	require.NoError(t, err)
	assert.False(t, ok, "second claim of the same key must fail")

	require.NoError(t, store.Remember(ctx, "user-1", key, "order-1"))
	val, found, err := store.Recall(ctx, "user-1", key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-1", val)

	require.NoError(t, store.Release(ctx, "user-1", key))
	ok, err = store.TryLock(ctx, "user-1", key)
	require.NoError(t, err)
	assert.True(t, ok)
}
