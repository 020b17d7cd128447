package goGuard

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/MrEthical07/goGuard/reputation"
	"github.com/MrEthical07/goGuard/state"
	"github.com/MrEthical07/goGuard/user"
	"github.com/redis/go-redis/v9"
)

// Config is the complete goGuard configuration. Build a copy from
// [DefaultConfig] or [LoadConfig], adjust it, and hand it to
// [Builder.WithConfig]; the engine keeps its own clone.
type Config struct {
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	State      StateConfig      `mapstructure:"state"`
	PoW        PoWConfig        `mapstructure:"pow"`
	Captcha    CaptchaConfig    `mapstructure:"captcha"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Reputation ReputationConfig `mapstructure:"reputation"`
	User       UserConfig       `mapstructure:"user"`
	Access     AccessConfig     `mapstructure:"access"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Events     EventsConfig     `mapstructure:"events"`
	Server     ServerConfig     `mapstructure:"server"`
}

/*
====================================
BACKENDS
====================================
*/

// RedisConfig describes the Redis deployment used by the binaries. Library
// users pass their own client to [Builder.WithRedis].
type RedisConfig struct {
	// Addrs holds one address for a standalone server, several for a cluster.
	Addrs      []string `mapstructure:"addrs"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
}

// UniversalOptions converts the section into go-redis options.
func (c RedisConfig) UniversalOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:      slices.Clone(c.Addrs),
		Password:   c.Password,
		DB:         c.DB,
		MasterName: c.MasterName,
	}
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" (default) or "json"
	Quiet  bool   `mapstructure:"quiet"`
}

// StateConfig tunes the ephemeral state store.
type StateConfig struct {
	Prefix     string                   `mapstructure:"prefix"`
	DefaultTTL time.Duration            `mapstructure:"default_ttl"`
	TTLs       map[string]time.Duration `mapstructure:"ttls"`
}

/*
====================================
CHALLENGES
====================================
*/

// PoWConfig sets the proof-of-work difficulty in leading zero hex digits.
type PoWConfig struct {
	Difficulty int `mapstructure:"difficulty"`
}

// CaptchaConfig locates the image dataset. With Enabled false the login
// flow demands a solved proof-of-work instead of a CAPTCHA.
type CaptchaConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DatasetPath string `mapstructure:"dataset_path"`
	CachePath   string `mapstructure:"cache_path"`
}

// RateLimitConfig tunes the per-client sliding window.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Window   time.Duration `mapstructure:"window"`
	Limit    int           `mapstructure:"limit"`
	Capacity int           `mapstructure:"capacity"`
}

// ReputationConfig selects IP reputation sources and their policy.
type ReputationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Sources are consulted in order. Entries may carry a key as "name:key".
	Sources  []string      `mapstructure:"sources"`
	Parallel bool          `mapstructure:"parallel"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// SuspectOnTorFailure treats Tor lookups that fail for reasons other than
	// NXDOMAIN as positive.
	SuspectOnTorFailure bool     `mapstructure:"suspect_on_tor_failure"`
	TorZone             string   `mapstructure:"tor_zone"`
	GeoIPCityPath       string   `mapstructure:"geoip_city_path"`
	GeoIPASNPath        string   `mapstructure:"geoip_asn_path"`
	ASNDenylist         []string `mapstructure:"asn_denylist"`
	RulesPath           string   `mapstructure:"rules_path"`
}

/*
====================================
USERS
====================================
*/

// UserConfig selects the user repository and the secret that encrypts
// pending passwords and TOTP secrets.
type UserConfig struct {
	Repository string `mapstructure:"repository"` // "redis" (default) or "file"
	FilePath   string `mapstructure:"file_path"`
	RedisHash  string `mapstructure:"redis_hash"`
	Secret     string `mapstructure:"secret"`
	TOTPIssuer string `mapstructure:"totp_issuer"`
}

// AccessConfig enables the shared access token gate when Token is set.
type AccessConfig struct {
	Token       string   `mapstructure:"token"`
	ExemptPaths []string `mapstructure:"exempt_paths"`
}

/*
====================================
OBSERVABILITY
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
	// Log also writes every event through the engine logger.
	Log bool `mapstructure:"log"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// EventsConfig publishes audit events to a Redis stream.
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
}

// ServerConfig is read by the HTTP adapters.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	CookieMaxAge time.Duration `mapstructure:"cookie_max_age"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	limits := rate.DefaultConfig()
	return Config{
		Redis: RedisConfig{
			Addrs: []string{"127.0.0.1:6379"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		State: StateConfig{
			Prefix:     "state",
			DefaultTTL: state.DefaultTTL,
			TTLs:       state.DefaultTTLs(),
		},
		PoW: PoWConfig{
			Difficulty: pow.DefaultDifficulty,
		},
		Captcha: CaptchaConfig{
			Enabled:     true,
			DatasetPath: "datasets/oneclick.json.gz",
			CachePath:   "datasets/oneclick.json",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Window:   limits.Window,
			Limit:    limits.Limit,
			Capacity: limits.Capacity,
		},
		Reputation: ReputationConfig{
			Enabled:             false,
			Sources:             slices.Clone(reputation.DefaultSources),
			Timeout:             reputation.DefaultTimeout,
			CacheTTL:            reputation.DefaultCacheTTL,
			SuspectOnTorFailure: true,
			TorZone:             reputation.DefaultTorZone,
			ASNDenylist:         slices.Clone(reputation.DefaultASNDenylist),
		},
		User: UserConfig{
			Repository: "redis",
			FilePath:   "users.json",
			RedisHash:  user.DefaultRedisHash,
			TOTPIssuer: "goGuard",
		},
		Access: AccessConfig{
			ExemptPaths: []string{"/robots.txt"},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Events: EventsConfig{
			Enabled: false,
			Topic:   "goguard.security",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			CookieMaxAge: 365 * 24 * time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Redis.Addrs = slices.Clone(cfg.Redis.Addrs)
	out.State.TTLs = maps.Clone(cfg.State.TTLs)
	out.Reputation.Sources = slices.Clone(cfg.Reputation.Sources)
	out.Reputation.ASNDenylist = slices.Clone(cfg.Reputation.ASNDenylist)
	out.Access.ExemptPaths = slices.Clone(cfg.Access.ExemptPaths)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.State.DefaultTTL <= 0 {
		return errors.New("State DefaultTTL must be > 0")
	}
	for kind, ttl := range c.State.TTLs {
		if ttl <= 0 {
			return errors.New("State TTL for " + kind + " must be > 0")
		}
	}
	if strings.TrimSpace(c.State.Prefix) == "" {
		return errors.New("State Prefix must not be empty")
	}

	if c.PoW.Difficulty < 1 {
		return errors.New("PoW Difficulty must be >= 1")
	}
	if c.PoW.Difficulty > pow.MaxDifficulty {
		return errors.New("PoW Difficulty must be <= 64")
	}

	if c.Captcha.Enabled && c.Captcha.DatasetPath == "" {
		return errors.New("Captcha DatasetPath required when enabled")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.Limit <= 0 {
			return errors.New("RateLimit Limit must be > 0")
		}
		if c.RateLimit.Capacity <= c.RateLimit.Limit {
			return errors.New("RateLimit Capacity must be > Limit")
		}
	}

	if c.Reputation.Enabled {
		if len(c.Reputation.Sources) == 0 {
			return errors.New("Reputation Sources must not be empty when enabled")
		}
		if c.Reputation.Timeout <= 0 {
			return errors.New("Reputation Timeout must be > 0")
		}
		if c.Reputation.CacheTTL < 0 {
			return errors.New("Reputation CacheTTL must be >= 0")
		}
	}

	switch c.User.Repository {
	case "redis":
		if c.User.RedisHash == "" {
			return errors.New("User RedisHash must not be empty")
		}
	case "file":
		if c.User.FilePath == "" {
			return errors.New("User FilePath must not be empty")
		}
	default:
		return errors.New("User Repository must be 'redis' or 'file'")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Events.Enabled {
		if c.Events.Topic == "" {
			return errors.New("Events Topic must not be empty")
		}
		if !c.Audit.Enabled {
			return errors.New("Events requires Audit to be enabled")
		}
	}

	if c.Server.CookieMaxAge < 0 {
		return errors.New("Server CookieMaxAge must be >= 0")
	}

	return nil
}

func (c RateLimitConfig) limiterConfig() rate.Config {
	return rate.Config{
		Window:   c.Window,
		Limit:    c.Limit,
		Capacity: c.Capacity,
		Prefix:   rate.DefaultPrefix,
	}
}
