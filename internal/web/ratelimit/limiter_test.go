package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddoc/fielddoc/internal/web/cache"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	l, err := New(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, l)

	cfg := DefaultConfig()
	cfg.Enabled = true
	l, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &TokenBucket{}, l)
	require.NoError(t, l.Close())

	mr := miniredis.RunT(t)
	cfg.Backend = BackendRedis
	cfg.Redis = cache.RedisConfig{Addr: mr.Addr()}
	l, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &RedisLimiter{}, l)
	require.NoError(t, l.Close())

	cfg.Backend = "memcached"
	_, err = New(ctx, cfg)
	assert.ErrorContains(t, err, "unknown rate limit backend")
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero limit", func(c *Config) { c.Limit = 0 }, "limit must be greater than 0"},
		{"negative limit", func(c *Config) { c.Limit = -1 }, "limit must be greater than 0"},
		{"zero window", func(c *Config) { c.Window = 0 }, "window must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Enabled = true
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestInfo_RetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Zero(t, (&Info{Allowed: true, ResetAt: now.Add(time.Minute)}).RetryAfter(now))
	assert.Equal(t, 30*time.Second, (&Info{ResetAt: now.Add(30 * time.Second)}).RetryAfter(now))
	assert.Equal(t, time.Second, (&Info{ResetAt: now}).RetryAfter(now))
}
