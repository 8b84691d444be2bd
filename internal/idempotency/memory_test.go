package idempotency

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOrderCreateKey(t *testing.T) {
	key, err := OrderCreateKey("u-1", " abc ")
	require.NoError(t, err)
	require.Equal(t, "idem:order:create:u-1:abc", key)

	_, err = OrderCreateKey("u-1", "   ")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = OrderCreateKey("", "abc")
	require.ErrorIs(t, err, ErrInvalidKey)
	_, err = OrderCreateKey("u-1", strings.Repeat("k", MaxKeyLength+1))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	existing, started, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.True(t, started)
	require.Empty(t, existing)

	_, _, err = store.Begin(ctx, "k")
	require.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, store.Complete(ctx, "k", "order-1"))
	existing, started, err = store.Begin(ctx, "k")
	require.NoError(t, err)
	require.False(t, started)
	require.Equal(t, "order-1", existing)
}

func TestMemoryStore_AbortReleasesKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	_, started, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.True(t, started)
	require.NoError(t, store.Abort(ctx, "k"))

	_, started, err = store.Begin(ctx, "k")
	require.NoError(t, err)
	require.True(t, started)
}

func TestMemoryStore_ExpiredKeyStartsAgain(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	_, _, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k", "order-1"))

	now = now.Add(2 * time.Minute)
	existing, started, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.True(t, started)
	require.Empty(t, existing)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Begin(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
