package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStateStore(rdb, time.Hour), mr
}

func TestRedisStateStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := BreakerState{
		Failures:    4,
		State:       StateOpen,
		NextAttempt: time.Now().Add(30 * time.Second).UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Save(ctx, "google", state))

	loaded, err := store.Load(ctx, "google")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state.Failures, loaded.Failures)
	assert.Equal(t, state.State, loaded.State)
	assert.True(t, state.NextAttempt.Equal(loaded.NextAttempt))
}

func TestRedisStateStore_LoadMissingReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	loaded, err := store.Load(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStateStore_EntriesExpire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "google", BreakerState{Failures: 1}))
	mr.FastForward(2 * time.Hour)

	loaded, err := store.Load(ctx, "google")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBreaker_HydratesFromSharedStore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	shared := BreakerState{
		Failures:    5,
		State:       StateOpen,
		NextAttempt: time.Now().Add(time.Minute),
	}
	require.NoError(t, store.Save(ctx, "test", shared))

	b := newTestBreaker(t, testFailoverConfig(), WithStateStore(store))

	invoked := false
	err := b.Execute(ctx, func(context.Context) error {
		invoked = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, invoked, "hydrated OPEN state must fail fast")
}
