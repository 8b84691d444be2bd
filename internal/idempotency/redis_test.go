package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func redisClientForTest(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("SHOP_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore_Lifecycle(t *testing.T) {
	client := redisClientForTest(t)
	ctx := context.Background()
	store := NewRedisStore(client, time.Minute)
	key, err := OrderCreateKey("u-1", uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { client.Del(context.Background(), key) })

	_, started, err := store.Begin(ctx, key)
	require.NoError(t, err)
	require.True(t, started)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	require.Positive(t, ttl)

	_, _, err = store.Begin(ctx, key)
	require.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, store.Complete(ctx, key, "order-1"))
	existing, started, err := store.Begin(ctx, key)
	require.NoError(t, err)
	require.False(t, started)
	require.Equal(t, "order-1", existing)

	require.NoError(t, store.Abort(ctx, key))
	_, started, err = store.Begin(ctx, key)
	require.NoError(t, err)
	require.True(t, started)
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, 0)
	_, _, err := store.Begin(context.Background(), "k")
	require.Error(t, err)
	require.Error(t, store.Ping(context.Background()))
}
