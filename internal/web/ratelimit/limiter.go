// Package ratelimit throttles clients of the documentation routes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/fielddoc/fielddoc/internal/web/cache"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Limiter decides whether the client identified by key may make another
// request.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Info, error)
	Close() error
}

// Info contains information about the current rate limit state
type Info struct {
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Remaining is the number of requests remaining in the current window
	Remaining int
	// ResetAt is when the client regains a full allowance.
	ResetAt time.Time
	// Allowed indicates whether the request should be allowed
	Allowed bool
}

// RetryAfter is the wait before the next request can succeed.
func (i *Info) RetryAfter(now time.Time) time.Duration {
	if i.Allowed {
		return 0
	}
	return max(i.ResetAt.Sub(now), time.Second)
}

// Config holds the rate limit settings.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	// Limit requests are allowed per Window.
	Limit  int               `mapstructure:"limit"`
	Window time.Duration     `mapstructure:"window"`
	Prefix string            `mapstructure:"prefix"`
	Redis  cache.RedisConfig `mapstructure:"redis"`
}

// DefaultConfig allows 100 requests per minute per client.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Limit:   100,
		Window:  time.Minute,
		Prefix:  "fielddoc:ratelimit:",
		Redis:   cache.RedisConfig{Addr: "localhost:6379"},
	}
}

// New opens the configured limiter. A disabled config returns nil.
func New(ctx context.Context, cfg Config) (Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case BackendMemory, "":
		return NewTokenBucket(cfg)
	case BackendRedis:
		return DialRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

func validate(cfg Config) error {
	if cfg.Limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be greater than 0")
	}
	return nil
}
