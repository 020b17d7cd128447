package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/redis/go-redis/v9"
)

// Defaults for the per-IP sliding window.
const (
	DefaultWindow   = 10 * time.Second
	DefaultLimit    = 15
	DefaultCapacity = 17
	DefaultPrefix   = "rate_limit"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// Window is how far back a timestamp still counts.
	Window time.Duration
	// Limit is the number of requests allowed inside Window.
	Limit int
	// Capacity bounds the stored timestamps per client. Must exceed Limit.
	Capacity int
	// Prefix namespaces the Redis keys.
	Prefix string
	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultConfig returns the 15 requests per 10 seconds policy.
func DefaultConfig() Config {
	return Config{
		Window:   DefaultWindow,
		Limit:    DefaultLimit,
		Capacity: DefaultCapacity,
		Prefix:   DefaultPrefix,
	}
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Limited bool
	// Recent is the number of requests seen inside the window, this one included.
	Recent int
}

// Limiter enforces a per-IP sliding window using one Redis list per client.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client. Zero config
// fields take their defaults.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Capacity <= cfg.Limit {
		cfg.Capacity = cfg.Limit + 2
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow records a request from ip and reports whether the client is over its
// budget. The push, trim, read and expiry run in one MULTI/EXEC batch. On
// backend failure the request is allowed and the wrapped error is returned
// for logging.
func (l *Limiter) Allow(ctx context.Context, ip string) (Decision, error) {
	key := l.key(ip)
	now := l.config.Now().Unix()

	var stamps *redis.StringSliceCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, now)
		pipe.LTrim(ctx, key, int64(-l.config.Capacity), -1)
		stamps = pipe.LRange(ctx, key, 0, -1)
		pipe.Expire(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	window := int64(l.config.Window / time.Second)
	recent := 0
	for _, raw := range stamps.Val() {
		t, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if now-t <= window {
			recent++
		}
	}

	return Decision{Limited: recent > l.config.Limit, Recent: recent}, nil
}

// Check is Allow reduced to an error: ErrRateLimited when over budget, nil
// otherwise, including when the backend is down.
func (l *Limiter) Check(ctx context.Context, ip string) error {
	d, _ := l.Allow(ctx, ip)
	if d.Limited {
		return ErrRateLimited
	}
	return nil
}

// Reset drops the stored window for ip.
func (l *Limiter) Reset(ctx context.Context, ip string) error {
	if err := l.redis.Del(ctx, l.key(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(ip string) string {
	return l.config.Prefix + ":" + internal.IPFingerprint(ip)
}
