package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
)

// RateLimiter implements sliding window rate limiting shared across
// processes through Redis
type RateLimiter struct {
	client *Client
	prefix string
	clock  clock.Clock
	poll   time.Duration

	// admit is Allow; swapped in tests
	admit func(ctx context.Context, cfg RateLimitConfig) (bool, int, error)
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier, e.g. "finnhub"
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// FinnhubRateLimit returns the provider limit at the given per-minute ceiling
func FinnhubRateLimit(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Key:    "finnhub",
		Limit:  perMinute,
		Window: time.Minute,
	}
}

// NewRateLimiter creates a new rate limiter. Window timestamps and the
// polling pause between denied attempts come from clk.
func NewRateLimiter(client *Client, prefix string, clk clock.Clock) *RateLimiter {
	r := &RateLimiter{
		client: client,
		prefix: prefix,
		clock:  clk,
		poll:   100 * time.Millisecond,
	}
	r.admit = r.Allow
	return r
}

// ZSET sliding window: prune, count, admit
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := r.clock.Now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - cfg.Window.Milliseconds()

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		nowMs,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
		now.UnixNano(), // unique member so concurrent calls in one ms all count
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed := result[0].(int64) == 1
	remaining := int(result[1].(int64))

	return allowed, remaining, nil
}

// Wait blocks until a request is allowed or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.admit(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.clock.SleepUntil(ctx, r.clock.Now().Add(r.poll)); err != nil {
			return err
		}
	}
}

// Bind fixes cfg so the limiter can be used as a single outbound gate
func (r *RateLimiter) Bind(cfg RateLimitConfig) *BoundLimiter {
	return &BoundLimiter{limiter: r, cfg: cfg}
}

// BoundLimiter is a RateLimiter with a fixed config
type BoundLimiter struct {
	limiter *RateLimiter
	cfg     RateLimitConfig
}

// Acquire waits for one slot
func (b *BoundLimiter) Acquire(ctx context.Context) error {
	return b.limiter.Wait(ctx, b.cfg)
}
