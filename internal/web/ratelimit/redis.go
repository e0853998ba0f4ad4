package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow counts the requests of the last window in a sorted set
// scored by unix milliseconds and admits one more when the count is below
// the limit. It returns {allowed, count, oldest score}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	local allowed = 0
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		current = current + 1
		allowed = 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local first = ARGV[1]
	if oldest[2] then
		first = oldest[2]
	end
	return {allowed, current, first}
`)

// RedisLimiter is a sliding window limiter shared by every instance that
// points at the same redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
	seq    atomic.Int64
	owned  bool
}

// DialRedis connects to cfg.Redis and pings it.
func DialRedis(ctx context.Context, cfg Config) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	l, err := NewRedisLimiter(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// NewRedisLimiter creates a limiter on an existing client. Close leaves the
// client open.
func NewRedisLimiter(client *redis.Client, cfg Config) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &RedisLimiter{
		client: client,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}

// Allow records a request of key if the window has room for it.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (*Info, error) {
	now := r.now()
	start := now.Add(-r.window)

	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixMilli(),
		start.UnixMilli(),
		r.limit,
		r.window.Milliseconds(),
		fmt.Sprintf("%d-%d", now.UnixNano(), r.seq.Add(1)),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return nil, errors.New("unexpected redis script result")
	}

	allowed, ok := res[0].(int64)
	if !ok {
		return nil, errors.New("invalid allowed value from redis")
	}
	count, ok := res[1].(int64)
	if !ok {
		return nil, errors.New("invalid count value from redis")
	}
	oldest, ok := res[2].(string)
	if !ok {
		return nil, errors.New("invalid oldest value from redis")
	}
	first, err := strconv.ParseFloat(oldest, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid oldest value from redis: %w", err)
	}

	return &Info{
		Limit:     r.limit,
		Remaining: max(r.limit-int(count), 0),
		ResetAt:   time.UnixMilli(int64(first)).Add(r.window),
		Allowed:   allowed == 1,
	}, nil
}

// Reset forgets every request of key.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the client when DialRedis opened it.
func (r *RedisLimiter) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}
