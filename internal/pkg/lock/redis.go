// Package lock provides a per-key lease backed by Redis.
//
// A lease is advisory and time-bound: the holder owns the key until it
// releases it or the TTL elapses, whichever comes first. A holder that
// overruns its TTL silently loses exclusivity, so the TTL must exceed the
// worst-case duration of the guarded work.
package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const customerKeyPrefix = "lock:customer:"

// releaseScript deletes the key only while it still holds the caller's token,
// so a holder whose lease expired cannot delete a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Handle identifies one acquired lease. It must be released exactly once.
type Handle struct {
	Key    string
	Token  string
	Expiry time.Time
}

type Locker interface {
	// Acquire sets key only if absent. It reports true iff this call created the entry.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Handle, bool)
	// AcquireWithRetry calls Acquire up to maxAttempts times, waiting retryDelay
	// between failed attempts. Exhaustion is reported as false, never as an error.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxAttempts int, retryDelay time.Duration) (Handle, bool)
	// Release deletes the lease and reports whether an entry owned by h existed.
	Release(ctx context.Context, h Handle) bool
}

type redisLocker struct {
	client redis.Cmdable
}

func NewRedisLocker(client redis.Cmdable) Locker {
	return &redisLocker{client: client}
}

// CustomerKey returns the lock key guarding all order processing for a customer.
func CustomerKey(customerID string) string {
	return customerKeyPrefix + customerID
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Handle, bool) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		slog.ErrorContext(ctx, "lock acquire failed", "key", key, "error", err)
		return Handle{}, false
	}
	if !ok {
		slog.DebugContext(ctx, "lock already held", "key", key)
		return Handle{}, false
	}

	slog.DebugContext(ctx, "lock acquired", "key", key, "ttl", ttl)
	return Handle{Key: key, Token: token, Expiry: time.Now().Add(ttl)}, true
}

func (l *redisLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxAttempts int, retryDelay time.Duration) (Handle, bool) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if h, ok := l.Acquire(ctx, key, ttl); ok {
			return h, true
		}
		if attempt >= maxAttempts {
			slog.WarnContext(ctx, "lock not acquired after all attempts", "key", key, "attempts", attempt)
			return Handle{}, false
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.WarnContext(ctx, "lock wait cancelled", "key", key, "attempts", attempt, "error", ctx.Err())
			return Handle{}, false
		case <-timer.C:
		}
	}
}

func (l *redisLocker) Release(ctx context.Context, h Handle) bool {
	if h.Key == "" {
		return false
	}

	deleted, err := releaseScript.Run(ctx, l.client, []string{h.Key}, h.Token).Int64()
	if err != nil {
		slog.ErrorContext(ctx, "lock release failed", "key", h.Key, "error", err)
		return false
	}
	if deleted == 0 {
		slog.WarnContext(ctx, "no lock found to release", "key", h.Key)
		return false
	}

	slog.DebugContext(ctx, "lock released", "key", h.Key)
	return true
}
