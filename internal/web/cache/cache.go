// Package cache stores rendered documentation responses in memory or redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backends accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// ErrMiss is returned when a key is not in the cache.
var ErrMiss = errors.New("cache miss")

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value; ErrMiss when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl uses the backend default, a negative
	// ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every value under the cache prefix.
	Clear(ctx context.Context) error

	Close() error
}

// Config holds the cache settings.
type Config struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// DefaultConfig returns an in-memory cache with a five minute TTL.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		TTL:     5 * time.Minute,
		Prefix:  "fielddoc:",
		Redis:   RedisConfig{Addr: "localhost:6379"},
	}
}

// New opens the configured backend. BackendNone returns a nil Cache.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryCache(cfg), nil
	case BackendRedis:
		rc, err := NewRedisCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Key joins parts into a cache key. Parts longer than 64 bytes are hashed so
// keys stay bounded.
func Key(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		if len(p) > 64 {
			sum := sha256.Sum256([]byte(p))
			p = hex.EncodeToString(sum[:])
		}
		out[i] = p
	}
	return strings.Join(out, ":")
}
