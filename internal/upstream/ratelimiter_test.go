package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiterAdmitsUpToLimit(t *testing.T) {
	l := newSlidingWindowLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	wait, ok := l.tryAcquire()
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
}

func TestSlidingWindowLimiterEvictsAgedCalls(t *testing.T) {
	l := newSlidingWindowLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	_, ok := l.tryAcquire()
	require.False(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = l.tryAcquire()
	assert.True(t, ok)
}

func TestSlidingWindowLimiterRespectsCancellation(t *testing.T) {
	l := newSlidingWindowLimiter(1, time.Hour)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
