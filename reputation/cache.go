package reputation

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a definite verdict is remembered.
const DefaultCacheTTL = 8 * time.Hour

// Cache remembers Benign and Malicious verdicts in Redis under
// <prefix>:<source>:<ip fingerprint>. Unknown and Suspected are never stored.
// Identical concurrent lookups share one upstream call.
type Cache struct {
	redis  redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    logging.Sink
	group  singleflight.Group
}

// NewCache returns a cache. A non-positive ttl uses DefaultCacheTTL.
func NewCache(redisClient redis.UniversalClient, ttl time.Duration, sink logging.Sink) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "reputation",
		log:    logging.OrDiscard(sink),
	}
}

// Wrap returns src with caching in front of it.
func (c *Cache) Wrap(src Source) Source {
	return &cachedSource{cache: c, src: src}
}

// WrapAll wraps every source.
func (c *Cache) WrapAll(srcs []Source) []Source {
	out := make([]Source, len(srcs))
	for i, s := range srcs {
		out[i] = c.Wrap(s)
	}
	return out
}

type cachedSource struct {
	cache *Cache
	src   Source
}

func (s *cachedSource) Name() string { return s.src.Name() }

func (s *cachedSource) Check(ctx context.Context, ip string) Verdict {
	c := s.cache
	key := c.prefix + ":" + s.src.Name() + ":" + internal.IPFingerprint(ip)

	switch val, err := c.redis.Get(ctx, key).Result(); {
	case err == nil && val == "1":
		return Malicious
	case err == nil && val == "0":
		return Benign
	case err != nil && !errors.Is(err, redis.Nil):
		c.log.Log("reputation cache read failed: "+err.Error(), logging.LevelWarn)
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		v := s.src.Check(ctx, ip)
		if v == Benign || v == Malicious {
			val := "0"
			if v == Malicious {
				val = "1"
			}
			if err := c.redis.Set(ctx, key, val, c.ttl).Err(); err != nil {
				c.log.Log("reputation cache write failed: "+err.Error(), logging.LevelWarn)
			}
		}
		return v, nil
	})
	return v.(Verdict)
}
