package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis uses DB 15 and skips when no local redis is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	opts, err := redis.ParseURL("redis://localhost:6379/15")
	require.NoError(t, err)

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available for testing")
	}

	client.FlushDB(context.Background())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestKeys(t *testing.T) {
	day := time.Date(2026, 4, 2, 22, 0, 0, 0, time.FixedZone("UTC-5", -5*60*60))

	assert.Equal(t, "notifications:user-1", NotificationChannel("user-1"))
	assert.Equal(t, "lease:session:sess-1", SessionLeaseKey("sess-1"))
	assert.Equal(t, "booking_seq:20260403", BookingSequenceKey(day))
}

func TestLocker(t *testing.T) {
	client := setupTestRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		release, err := locker.Acquire(ctx, "lease:test:1", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "lease:test:1", time.Minute)
		assert.True(t, errors.Is(err, ErrLeaseHeld))

		require.NoError(t, release(ctx))

		release, err = locker.Acquire(ctx, "lease:test:1", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
	})

	t.Run("stale release does not drop a newer lease", func(t *testing.T) {
		release, err := locker.Acquire(ctx, "lease:test:2", 50*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(100 * time.Millisecond)

		newer, err := locker.Acquire(ctx, "lease:test:2", time.Minute)
		require.NoError(t, err)

		require.NoError(t, release(ctx))

		_, err = locker.Acquire(ctx, "lease:test:2", time.Minute)
		assert.ErrorIs(t, err, ErrLeaseHeld)

		require.NoError(t, newer(ctx))
	})
}

func TestDailySequence(t *testing.T) {
	client := setupTestRedis(t)
	seq := NewDailySequence(client, time.Hour)
	ctx := context.Background()

	day := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	t.Run("starts at one and increments", func(t *testing.T) {
		n, err := seq.Next(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = seq.Next(ctx, day.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("days are independent", func(t *testing.T) {
		n, err := seq.Next(ctx, day.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("sets expiry", func(t *testing.T) {
		ttl, err := client.TTL(ctx, BookingSequenceKey(day)).Result()
		require.NoError(t, err)
		assert.True(t, ttl > 0)
	})

	t.Run("concurrent callers never share a number", func(t *testing.T) {
		other := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

		var mu sync.Mutex
		seen := make(map[int64]bool)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := seq.Next(ctx, other)
				assert.NoError(t, err)
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 20)
	})
}
