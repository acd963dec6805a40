package adapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagly/claim-intake/internal/identity/adapter"
	"github.com/bagly/claim-intake/internal/identity/app"
	redisclient "github.com/bagly/claim-intake/internal/redis"
)

var _ app.CounterStore = (*adapter.CounterStore)(nil)

func newTestCounterStore(t *testing.T) (*adapter.CounterStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redisclient.NewClient(redisclient.Config{
		Addr:    mr.Addr(),
		Timeout: 5 * time.Second,
	})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	return adapter.NewCounterStore(client.RDB), mr
}

func TestCounterStore_Get(t *testing.T) {
	t.Run("absent key reads as zero", func(t *testing.T) {
		s, _ := newTestCounterStore(t)

		n, err := s.Get(context.Background(), "otp:ratelimit:52998224725")

		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("reads stored integer", func(t *testing.T) {
		s, mr := newTestCounterStore(t)
		require.NoError(t, mr.Set("otp:ratelimit:52998224725", "2"))

		n, err := s.Get(context.Background(), "otp:ratelimit:52998224725")

		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("non-integer value is an error", func(t *testing.T) {
		s, mr := newTestCounterStore(t)
		require.NoError(t, mr.Set("k", "abc"))

		_, err := s.Get(context.Background(), "k")

		assert.Error(t, err)
	})
}

func TestCounterStore_Increment(t *testing.T) {
	t.Run("creates at one with TTL", func(t *testing.T) {
		s, mr := newTestCounterStore(t)
		key := "otp:attempts:52998224725"

		n, err := s.Increment(context.Background(), key, 30*time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, 30*time.Minute, mr.TTL(key))
	})

	t.Run("counts up and refreshes TTL", func(t *testing.T) {
		s, mr := newTestCounterStore(t)
		ctx := context.Background()
		key := "otp:attempts:52998224725"

		_, err := s.Increment(ctx, key, 30*time.Minute)
		require.NoError(t, err)
		mr.FastForward(10 * time.Minute)

		n, err := s.Increment(ctx, key, 30*time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.Equal(t, 30*time.Minute, mr.TTL(key))
	})

	t.Run("expired counter restarts at one", func(t *testing.T) {
		s, mr := newTestCounterStore(t)
		ctx := context.Background()
		key := "otp:ratelimit:52998224725"

		for i := 0; i < 3; i++ {
			_, err := s.Increment(ctx, key, 15*time.Minute)
			require.NoError(t, err)
		}
		mr.FastForward(15 * time.Minute)

		n, err := s.Increment(ctx, key, 15*time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("counters are independent per key", func(t *testing.T) {
		s, _ := newTestCounterStore(t)
		ctx := context.Background()

		_, err := s.Increment(ctx, "otp:ratelimit:52998224725", time.Minute)
		require.NoError(t, err)

		n, err := s.Get(ctx, "otp:resend:52998224725")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestCounterStore_SetAndDelete(t *testing.T) {
	s, mr := newTestCounterStore(t)
	ctx := context.Background()
	key := "otp:block:52998224725"

	require.NoError(t, s.Set(ctx, key, 1, 30*time.Minute))
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	n, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Delete(ctx, key))
	assert.False(t, mr.Exists(key))

	// deleting again is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestCounterStore_RedisDown(t *testing.T) {
	s, mr := newTestCounterStore(t)
	mr.Close()
	ctx := context.Background()

	_, err := s.Get(ctx, "k")
	assert.Error(t, err)

	_, err = s.Increment(ctx, "k", time.Minute)
	assert.Error(t, err)

	assert.Error(t, s.Set(ctx, "k", 1, time.Minute))
	assert.Error(t, s.Delete(ctx, "k"))
}
