package lock

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ClientConfig holds configuration for the redis connection.
type ClientConfig struct {
	// URL format: redis://[:password@]host[:port][/db]
	URL string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultClientConfig returns defaults for url.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewClient opens and pings a redis connection.
func NewClient(cfg ClientConfig) (*redis.Client, error) {
	log.Info().
		Str("component", "redis").
		Str("url", maskRedisURL(cfg.URL)).
		Int("pool_size", cfg.PoolSize).
		Msg("Connecting to Redis")

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.MaxRetries = cfg.MaxRetries
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().
		Str("component", "redis").
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return client, nil
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Redis is a lock held as a redis key with a TTL.
//
// A holder that outlives the TTL loses the lock silently; keep TTL well
// above the longest guarded operation.
type Redis struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
}

// NewRedis creates a redis-backed locker.
func NewRedis(client *redis.Client, ttl, wait time.Duration) *Redis {
	return &Redis{
		client:   client,
		prefix:   "marketplace:lock:",
		ttl:      ttl,
		wait:     wait,
		interval: 50 * time.Millisecond,
	}
}

// Acquire polls SET NX PX until the key is taken or the wait runs out.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("redis SETNX failed: %w", err)
		}
		if ok {
			return r.release(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) release(redisKey, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			if err := r.client.Eval(ctx, releaseScript, []string{redisKey}, token).Err(); err != nil {
				log.Warn().
					Err(err).
					Str("component", "lock").
					Str("key", redisKey).
					Msg("Failed to release lock; it will expire")
			}
		})
	}
}

// maskRedisURL masks the password in a Redis URL for logging.
func maskRedisURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "redis://***"
	}
	return u.Redacted()
}
