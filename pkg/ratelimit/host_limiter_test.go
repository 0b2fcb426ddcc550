package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_Wait(t *testing.T) {
	limiter := NewHostLimiter(200 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "ourworldindata.org"))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "first request should be immediate")

	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "ourworldindata.org"))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	// Other hosts are independent.
	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "stats.oecd.org"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestHostLimiter_PerHostInterval(t *testing.T) {
	limiter := NewHostLimiter(time.Hour)
	limiter.SetInterval("fast.example", 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx, "fast.example"))
	}
	assert.Equal(t, int64(3), limiter.GetStats()["fast.example"].RequestCount)
}

func TestHostLimiter_ErrorBackoff(t *testing.T) {
	limiter := NewHostLimiter(0)

	for i := 0; i < 5; i++ {
		limiter.RecordError("ourworldindata.org")
	}

	stats := limiter.GetStats()["ourworldindata.org"]
	assert.Equal(t, int64(5), stats.ErrorCount)
	assert.True(t, stats.InBackoff)
	assert.WithinDuration(t, time.Now().Add(150*time.Second), stats.BackoffUntil, 5*time.Second)
}

func TestHostLimiter_BackoffCapped(t *testing.T) {
	limiter := NewHostLimiter(0)
	limiter.SetBackoff(1, time.Minute, 2*time.Minute)

	for i := 0; i < 10; i++ {
		limiter.RecordError("a")
	}
	stats := limiter.GetStats()["a"]
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), stats.BackoffUntil, 5*time.Second)
}

func TestHostLimiter_RecordSuccess(t *testing.T) {
	limiter := NewHostLimiter(0)

	limiter.RecordError("a")
	limiter.RecordError("a")
	assert.Equal(t, int64(2), limiter.GetStats()["a"].ErrorCount)

	limiter.RecordSuccess("a")
	assert.Equal(t, int64(0), limiter.GetStats()["a"].ErrorCount)
}

func TestHostLimiter_ContextCancellation(t *testing.T) {
	limiter := NewHostLimiter(time.Minute)
	require.NoError(t, limiter.Wait(context.Background(), "a"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- limiter.Wait(ctx, "a")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}
