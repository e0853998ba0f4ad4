package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory limiter. Each key owns a bucket of Limit
// tokens refilled continuously over Window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	window   time.Duration
	now      func() time.Time

	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewTokenBucket creates a TokenBucket and starts evicting idle buckets.
func NewTokenBucket(cfg Config) (*TokenBucket, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	tb := newTokenBucket(cfg, time.Now)
	tb.cleanup = time.NewTicker(cfg.Window)
	go tb.cleanupLoop()
	return tb, nil
}

func newTokenBucket(cfg Config, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: float64(cfg.Limit),
		window:   cfg.Window,
		now:      now,
		done:     make(chan struct{}),
	}
}

// Allow takes one token from the bucket of key.
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Info, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, lastSeen: now}
		tb.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastSeen); elapsed > 0 {
		b.tokens = min(tb.capacity, b.tokens+tb.capacity*elapsed.Seconds()/tb.window.Seconds())
	}
	b.lastSeen = now

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	missing := tb.capacity - b.tokens
	return &Info{
		Limit:     int(tb.capacity),
		Remaining: int(b.tokens),
		ResetAt:   now.Add(time.Duration(missing / tb.capacity * float64(tb.window))),
		Allowed:   allowed,
	}, nil
}

func (tb *TokenBucket) cleanupLoop() {
	for {
		select {
		case <-tb.cleanup.C:
			tb.evict()
		case <-tb.done:
			return
		}
	}
}

// evict drops buckets that have been full for a whole window.
func (tb *TokenBucket) evict() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	for key, b := range tb.buckets {
		if now.Sub(b.lastSeen) > tb.window {
			delete(tb.buckets, key)
		}
	}
}

// Len returns the number of tracked clients.
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

// Close stops the eviction loop.
func (tb *TokenBucket) Close() error {
	tb.once.Do(func() {
		close(tb.done)
		if tb.cleanup != nil {
			tb.cleanup.Stop()
		}
	})
	return nil
}
