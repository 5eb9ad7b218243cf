package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), mr
}

func TestCustomerKey(t *testing.T) {
	assert.Equal(t, "lock:customer:customer-1", CustomerKey("customer-1"))
}

func TestRedisLocker_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("sets key with ttl when absent", func(t *testing.T) {
		locker, mr := newTestLocker(t)

		h, ok := locker.Acquire(ctx, "lock:customer:c1", 30*time.Second)
		require.True(t, ok)
		assert.Equal(t, "lock:customer:c1", h.Key)
		assert.NotEmpty(t, h.Token)

		got, err := mr.Get("lock:customer:c1")
		require.NoError(t, err)
		assert.Equal(t, h.Token, got)
		assert.Equal(t, 30*time.Second, mr.TTL("lock:customer:c1"))
	})

	t.Run("fails while held", func(t *testing.T) {
		locker, _ := newTestLocker(t)

		_, ok := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)
		_, ok = locker.Acquire(ctx, "k", time.Minute)
		assert.False(t, ok)
	})

	t.Run("succeeds after ttl expiry", func(t *testing.T) {
		locker, mr := newTestLocker(t)

		_, ok := locker.Acquire(ctx, "k", time.Second)
		require.True(t, ok)
		mr.FastForward(2 * time.Second)

		_, ok = locker.Acquire(ctx, "k", time.Second)
		assert.True(t, ok)
	})

	t.Run("store fault is reported as not acquired", func(t *testing.T) {
		locker, mr := newTestLocker(t)
		mr.Close()

		_, ok := locker.Acquire(ctx, "k", time.Second)
		assert.False(t, ok)
	})
}

func TestRedisLocker_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes own lease", func(t *testing.T) {
		locker, mr := newTestLocker(t)

		h, ok := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)

		assert.True(t, locker.Release(ctx, h))
		assert.False(t, mr.Exists("k"))
	})

	t.Run("second release reports nothing to delete", func(t *testing.T) {
		locker, _ := newTestLocker(t)

		h, _ := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, locker.Release(ctx, h))
		assert.False(t, locker.Release(ctx, h))
	})

	t.Run("does not delete a successor's lease", func(t *testing.T) {
		locker, mr := newTestLocker(t)

		stale, ok := locker.Acquire(ctx, "k", time.Second)
		require.True(t, ok)
		mr.FastForward(2 * time.Second)
		fresh, ok := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)

		assert.False(t, locker.Release(ctx, stale))
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, fresh.Token, got)
	})

	t.Run("zero handle is a no-op", func(t *testing.T) {
		locker, _ := newTestLocker(t)
		assert.False(t, locker.Release(ctx, Handle{}))
	})

	t.Run("store fault is reported as not released", func(t *testing.T) {
		locker, mr := newTestLocker(t)
		h, ok := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)
		mr.Close()

		assert.False(t, locker.Release(ctx, h))
	})
}

func TestRedisLocker_AcquireWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt wins", func(t *testing.T) {
		locker, _ := newTestLocker(t)
		_, ok := locker.AcquireWithRetry(ctx, "k", time.Minute, 3, time.Millisecond)
		assert.True(t, ok)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		locker, _ := newTestLocker(t)
		_, ok := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)

		start := time.Now()
		_, ok = locker.AcquireWithRetry(ctx, "k", time.Minute, 3, 20*time.Millisecond)
		assert.False(t, ok)
		// two waits between three attempts
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("acquires once holder releases", func(t *testing.T) {
		locker, _ := newTestLocker(t)
		held, ok := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)

		go func() {
			time.Sleep(30 * time.Millisecond)
			locker.Release(ctx, held)
		}()

		h, ok := locker.AcquireWithRetry(ctx, "k", time.Minute, 50, 10*time.Millisecond)
		require.True(t, ok)
		assert.NotEqual(t, held.Token, h.Token)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		locker, _ := newTestLocker(t)
		_, ok := locker.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, ok = locker.AcquireWithRetry(cctx, "k", time.Minute, 1000, 10*time.Millisecond)
		assert.False(t, ok)
		assert.Less(t, time.Since(start), time.Second)
	})
}
