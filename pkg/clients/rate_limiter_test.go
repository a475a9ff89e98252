package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d within burst should be granted", i)
	}
	assert.False(t, tb.Allow(), "request beyond burst should be denied")
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(100, 1)

	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(25 * time.Millisecond)
	assert.True(t, tb.Allow(), "bucket should refill at the configured rate")
}

func TestTokenBucketWait(t *testing.T) {
	tb := NewTokenBucket(50, 1)
	require.True(t, tb.Allow())

	start := time.Now()
	err := tb.Wait(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond,
		"Wait should block until a token is available")
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(0.001, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.Error(t, err, "Wait should return when the context is cancelled")
}

func TestTokenBucketStats(t *testing.T) {
	tb := NewTokenBucket(2, 5)
	tb.Allow()
	tb.Allow()

	stats := tb.Stats()
	assert.Equal(t, float64(2), stats.Rate)
	assert.Equal(t, 5, stats.Burst)
	assert.Equal(t, int64(2), stats.AllowedRequests)
	assert.InDelta(t, 3, stats.CurrentTokens, 1)
}
