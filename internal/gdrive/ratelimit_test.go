package gdrive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowRespectsBurst(t *testing.T) {
	// 1 req/sec with burst 2: two immediate tokens, then empty
	r := NewRateLimiter(1, 2)

	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())
}

func TestRateLimiter_RetryAfterBlocksRequests(t *testing.T) {
	r := NewRateLimiter(100, 100)
	require.True(t, r.Allow())

	r.RecordRetryAfter(30)
	assert.False(t, r.Allow())
}

func TestRateLimiter_ZeroRetryAfterAppliesDefault(t *testing.T) {
	r := NewRateLimiter(100, 100)

	r.RecordRetryAfter(0)
	assert.False(t, r.Allow())
}

func TestRateLimiter_WaitHonorsContextDuringBackoff(t *testing.T) {
	r := NewRateLimiter(100, 100)
	r.RecordRetryAfter(30)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_WaitPassesWhenTokensAvailable(t *testing.T) {
	r := NewRateLimiter(100, 100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}
