package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testBucket(limit int, window time.Duration) (*TokenBucket, *clock) {
	c := newClock()
	return newTokenBucket(Config{Limit: limit, Window: window}, c.Now), c
}

func TestTokenBucket_FirstRequest(t *testing.T) {
	tb, _ := testBucket(10, time.Minute)
	defer tb.Close()

	info, err := tb.Allow(context.Background(), "client")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 10, info.Limit)
	assert.Equal(t, 9, info.Remaining)
}

func TestTokenBucket_ExceedLimit(t *testing.T) {
	tb, c := testBucket(3, time.Minute)
	defer tb.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := tb.Allow(ctx, "client")
		require.NoError(t, err)
		assert.True(t, info.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 3-i-1, info.Remaining)
	}

	info, err := tb.Allow(ctx, "client")
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, c.Now().Add(time.Minute), info.ResetAt)
	assert.Equal(t, time.Minute, info.RetryAfter(c.Now()))
}

func TestTokenBucket_Refill(t *testing.T) {
	tb, c := testBucket(2, time.Minute)
	defer tb.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := tb.Allow(ctx, "client")
		require.NoError(t, err)
	}
	info, _ := tb.Allow(ctx, "client")
	require.False(t, info.Allowed)

	// One token every 30s.
	c.Advance(30 * time.Second)
	info, _ = tb.Allow(ctx, "client")
	assert.True(t, info.Allowed)
	info, _ = tb.Allow(ctx, "client")
	assert.False(t, info.Allowed)

	c.Advance(10 * time.Minute)
	info, _ = tb.Allow(ctx, "client")
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	tb, _ := testBucket(1, time.Minute)
	defer tb.Close()
	ctx := context.Background()

	info, _ := tb.Allow(ctx, "a")
	assert.True(t, info.Allowed)
	info, _ = tb.Allow(ctx, "a")
	assert.False(t, info.Allowed)
	info, _ = tb.Allow(ctx, "b")
	assert.True(t, info.Allowed)
}

func TestTokenBucket_Evict(t *testing.T) {
	tb, c := testBucket(5, time.Minute)
	defer tb.Close()
	ctx := context.Background()

	tb.Allow(ctx, "old")
	c.Advance(45 * time.Second)
	tb.Allow(ctx, "new")
	require.Equal(t, 2, tb.Len())

	c.Advance(30 * time.Second)
	tb.evict()
	assert.Equal(t, 1, tb.Len())
}

func TestTokenBucket_Concurrent(t *testing.T) {
	tb, _ := testBucket(50, time.Hour)
	defer tb.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := tb.Allow(context.Background(), "client")
			if err == nil && info.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestTokenBucket_CloseTwice(t *testing.T) {
	tb, err := NewTokenBucket(Config{Limit: 1, Window: time.Minute})
	require.NoError(t, err)
	assert.NoError(t, tb.Close())
	assert.NoError(t, tb.Close())
}
