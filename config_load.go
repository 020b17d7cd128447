package goGuard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: GOGUARD_POW_DIFFICULTY sets
// pow.difficulty.
const EnvPrefix = "GOGUARD"

// LoadConfig reads path (".env", YAML or TOML, chosen by extension) over the
// defaults, then applies GOGUARD_* environment overrides. An empty path reads
// the environment only. The result is validated.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, defaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType(path))
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return "env"
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("redis.addrs", cfg.Redis.Addrs)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.master_name", cfg.Redis.MasterName)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.quiet", cfg.Log.Quiet)

	v.SetDefault("state.prefix", cfg.State.Prefix)
	v.SetDefault("state.default_ttl", cfg.State.DefaultTTL)
	for kind, ttl := range cfg.State.TTLs {
		v.SetDefault("state.ttls."+kind, ttl)
	}

	v.SetDefault("pow.difficulty", cfg.PoW.Difficulty)

	v.SetDefault("captcha.enabled", cfg.Captcha.Enabled)
	v.SetDefault("captcha.dataset_path", cfg.Captcha.DatasetPath)
	v.SetDefault("captcha.cache_path", cfg.Captcha.CachePath)

	v.SetDefault("ratelimit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("ratelimit.window", cfg.RateLimit.Window)
	v.SetDefault("ratelimit.limit", cfg.RateLimit.Limit)
	v.SetDefault("ratelimit.capacity", cfg.RateLimit.Capacity)

	v.SetDefault("reputation.enabled", cfg.Reputation.Enabled)
	v.SetDefault("reputation.sources", cfg.Reputation.Sources)
	v.SetDefault("reputation.parallel", cfg.Reputation.Parallel)
	v.SetDefault("reputation.timeout", cfg.Reputation.Timeout)
	v.SetDefault("reputation.cache_ttl", cfg.Reputation.CacheTTL)
	v.SetDefault("reputation.suspect_on_tor_failure", cfg.Reputation.SuspectOnTorFailure)
	v.SetDefault("reputation.tor_zone", cfg.Reputation.TorZone)
	v.SetDefault("reputation.geoip_city_path", cfg.Reputation.GeoIPCityPath)
	v.SetDefault("reputation.geoip_asn_path", cfg.Reputation.GeoIPASNPath)
	v.SetDefault("reputation.asn_denylist", cfg.Reputation.ASNDenylist)
	v.SetDefault("reputation.rules_path", cfg.Reputation.RulesPath)

	v.SetDefault("user.repository", cfg.User.Repository)
	v.SetDefault("user.file_path", cfg.User.FilePath)
	v.SetDefault("user.redis_hash", cfg.User.RedisHash)
	v.SetDefault("user.secret", cfg.User.Secret)
	v.SetDefault("user.totp_issuer", cfg.User.TOTPIssuer)

	v.SetDefault("access.token", cfg.Access.Token)
	v.SetDefault("access.exempt_paths", cfg.Access.ExemptPaths)

	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.buffer_size", cfg.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", cfg.Audit.DropIfFull)
	v.SetDefault("audit.log", cfg.Audit.Log)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", cfg.Metrics.EnableLatencyHistograms)

	v.SetDefault("events.enabled", cfg.Events.Enabled)
	v.SetDefault("events.topic", cfg.Events.Topic)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.cookie_max_age", cfg.Server.CookieMaxAge)
}
