// Package ratelimit throttles calls to the gateway admin API.
//
// Token Bucket Algorithm:
//   - Bucket holds tokens (capacity = max burst)
//   - Tokens refill at a constant rate
//   - Each admin call consumes 1 token
//   - A call waits until a token is available
//
// A large import issues several admin calls per endpoint. Buckets are keyed
// by route environment, so every instance shares one budget per gateway.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter blocks until a call for key may proceed.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// TokenBucketConfig holds configuration for the redis token bucket.
type TokenBucketConfig struct {
	// Capacity is the maximum number of tokens in the bucket.
	Capacity int

	// RefillRate is tokens added per second.
	RefillRate float64

	// KeyPrefix is prepended to all Redis keys.
	KeyPrefix string

	// TTL is how long to keep bucket state after last access.
	TTL time.Duration
}

// DefaultTokenBucketConfig returns a bucket refilling at rate per second.
func DefaultTokenBucketConfig(rate float64, burst int) TokenBucketConfig {
	if burst < 1 {
		burst = 1
	}
	return TokenBucketConfig{
		Capacity:   burst,
		RefillRate: rate,
		KeyPrefix:  "marketplace:admin_rate:",
		TTL:        2 * time.Minute,
	}
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket is a redis-backed token bucket. Refill and consume run in one
// Lua script, so concurrent instances never overdraw a bucket.
type TokenBucket struct {
	client *redis.Client
	config TokenBucketConfig
	script *redis.Script
}

// NewTokenBucket creates a token bucket over client.
func NewTokenBucket(client *redis.Client, config TokenBucketConfig) *TokenBucket {
	log.Info().
		Str("component", "ratelimit").
		Int("capacity", config.Capacity).
		Float64("refill_rate", config.RefillRate).
		Str("key_prefix", config.KeyPrefix).
		Msg("Admin API token bucket initialized")

	return &TokenBucket{
		client: client,
		config: config,
		script: redis.NewScript(tokenBucketLuaScript),
	}
}

// Allow consumes a token for key if one is available.
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*Result, error) {
	raw, err := tb.script.Run(ctx, tb.client,
		[]string{tb.config.KeyPrefix + key},
		tb.config.Capacity,
		tb.config.RefillRate,
		time.Now().UnixMilli(),
		int(tb.config.TTL.Seconds()),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("token bucket check failed: %w", err)
	}

	// {allowed, tokens_remaining}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected token bucket result %v", raw)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)

	res := &Result{Allowed: allowed == 1, Remaining: int(remaining)}
	if !res.Allowed {
		res.RetryAfter = refillInterval(tb.config.RefillRate)
	}
	return res, nil
}

// Wait implements Limiter.
func (tb *TokenBucket) Wait(ctx context.Context, key string) error {
	for {
		res, err := tb.Allow(ctx, key)
		if err != nil {
			return err
		}
		if res.Allowed {
			return nil
		}

		log.Debug().
			Str("component", "ratelimit").
			Str("key", key).
			Dur("retry_after", res.RetryAfter).
			Msg("Admin API budget exhausted, waiting")

		timer := time.NewTimer(res.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Reset clears the bucket of key.
func (tb *TokenBucket) Reset(ctx context.Context, key string) error {
	if err := tb.client.Del(ctx, tb.config.KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset token bucket: %w", err)
	}
	return nil
}

// refillInterval is the time until one token is refilled.
func refillInterval(rate float64) time.Duration {
	if rate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / rate)
}

// KEYS[1] bucket hash; ARGV capacity, refill rate (tokens/s), now (unix ms), ttl (s).
// Returns {allowed (0/1), remaining_tokens}.
const tokenBucketLuaScript = `
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last_refill = tonumber(redis.call('HGET', KEYS[1], 'last_refill'))

local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

if tokens == nil then
    tokens = capacity
    last_refill = now
end

local elapsed_sec = math.max(0, now - last_refill) / 1000.0
tokens = math.min(capacity, tokens + elapsed_sec * refill_rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_refill', tostring(now))
redis.call('EXPIRE', KEYS[1], ttl)

return {allowed, math.floor(tokens)}
`
