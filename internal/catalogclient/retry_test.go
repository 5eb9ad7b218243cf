package catalogclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTemp = errors.New("temporary")

func TestRetryWithBackoffCountsTotalAttempts(t *testing.T) {
	calls := 0
	_, err := retryWithBackoff(context.Background(), RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond}, "test",
		func(error) bool { return true },
		func() (int, error) {
			calls++
			return 0, errTemp
		})
	assert.ErrorIs(t, err, errTemp)
	assert.Equal(t, 4, calls)
}

func TestRetryWithBackoffZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	v, err := retryWithBackoff(context.Background(), RetryConfig{}, "test",
		func(error) bool { return true },
		func() (string, error) {
			calls++
			return "ok", nil
		})
	assert.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffCapsDelay(t *testing.T) {
	calls := 0
	start := time.Now()
	_, _ = retryWithBackoff(context.Background(), RetryConfig{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 10}, "test",
		func(error) bool { return true },
		func() (int, error) {
			calls++
			return 0, errTemp
		})
	elapsed := time.Since(start)
	assert.Equal(t, 4, calls)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}
