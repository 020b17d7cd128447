package goGuard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/captcha"
	"github.com/MrEthical07/goGuard/events"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/keyhash"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/MrEthical07/goGuard/reputation"
	"github.com/MrEthical07/goGuard/reputation/rules"
	"github.com/MrEthical07/goGuard/state"
	"github.com/MrEthical07/goGuard/symmetric"
	"github.com/MrEthical07/goGuard/totp"
	"github.com/MrEthical07/goGuard/user"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an [Engine]. It is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	logger      *logrus.Logger
	auditSink   AuditSink
	repository  user.Repository
	hashers     *user.Hashers
	dataset     *captcha.Dataset
	sources     []reputation.Source
	clock       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the backing store. Standalone, cluster and sentinel
// clients all work.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger replaces the logger built from Config.Log.
func (b *Builder) WithLogger(l *logrus.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets where audit events go. Auditing still has to be
// enabled in Config.Audit.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithUserRepository replaces the repository selected by Config.User.
func (b *Builder) WithUserRepository(repo user.Repository) *Builder {
	b.repository = repo
	return b
}

// WithUserHashers overrides the credential hash presets. Tests use it to
// lower iteration counts.
func (b *Builder) WithUserHashers(h user.Hashers) *Builder {
	b.hashers = &h
	return b
}

// WithCaptchaDataset replaces the dataset loaded from Config.Captcha.
func (b *Builder) WithCaptchaDataset(ds *captcha.Dataset) *Builder {
	b.dataset = ds
	return b
}

// WithReputationSources replaces the sources named in Config.Reputation.
// They are still wrapped by the Redis cache.
func (b *Builder) WithReputationSources(sources ...reputation.Source) *Builder {
	b.sources = sources
	return b
}

// WithClock overrides time.Now for the user service and rate limiter.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the CheckRequest latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. Only the
// event publisher and the user repository touch I/O; the CAPTCHA dataset and
// GeoIP databases open lazily on first use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.User.Secret == "" {
		return nil, ErrSecretRequired
	}

	logger := b.logger
	if logger == nil {
		logger = logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Quiet:  cfg.Log.Quiet,
		})
	}
	sink := logging.NewLogrus(logger)

	engine := &Engine{
		config:  cloneConfig(cfg),
		redis:   b.redis,
		logger:  logger,
		log:     sink,
		metrics: NewMetrics(cfg.Metrics),
		totp:    totp.New(totp.Default),
	}

	// -------- STATE + CHALLENGES --------
	stateOpts := []state.Option{
		state.WithPrefix(cfg.State.Prefix),
		state.WithDefaultTTL(cfg.State.DefaultTTL),
		state.WithLogger(sink),
	}
	for kind, ttl := range cfg.State.TTLs {
		stateOpts = append(stateOpts, state.WithTTL(kind, ttl))
	}
	engine.states = state.New(b.redis, stateOpts...)
	engine.pow = pow.New(engine.states, cfg.PoW.Difficulty, sink)

	if cfg.Captcha.Enabled {
		ds := b.dataset
		if ds == nil {
			ds = captcha.NewDataset(cfg.Captcha.DatasetPath, cfg.Captcha.CachePath, sink)
		}
		engine.captcha = captcha.New(ds, engine.states, sink)
	}

	// -------- RATE LIMIT + REPUTATION --------
	if cfg.RateLimit.Enabled {
		limits := cfg.RateLimit.limiterConfig()
		limits.Now = b.clock
		engine.limiter = rate.New(b.redis, limits)
	}

	if cfg.Reputation.Enabled {
		sources := b.sources
		if sources == nil {
			var err error
			sources, engine.databases, err = reputationSources(cfg.Reputation, sink)
			if err != nil {
				return nil, err
			}
		}
		if cfg.Reputation.CacheTTL > 0 {
			sources = reputation.NewCache(b.redis, cfg.Reputation.CacheTTL, sink).WrapAll(sources)
		}
		engine.reputation = reputation.NewAggregator(sources,
			reputation.WithParallel(cfg.Reputation.Parallel),
			reputation.WithLogger(sink),
		)
	}

	// -------- USERS --------
	cipher, err := symmetric.New(cfg.User.Secret)
	if err != nil {
		return nil, err
	}
	engine.cipher = cipher

	repo := b.repository
	if repo == nil {
		switch cfg.User.Repository {
		case "file":
			repo = user.NewFileRepository(cfg.User.FilePath)
		default:
			repo = user.NewRedisRepository(b.redis, cfg.User.RedisHash)
		}
	}
	userOpts := []user.Option{user.WithLogger(sink), user.WithTOTP(engine.totp)}
	if b.hashers != nil {
		userOpts = append(userOpts, user.WithHashers(*b.hashers))
	}
	if b.clock != nil {
		userOpts = append(userOpts, user.WithClock(b.clock))
	}
	engine.users = user.NewService(repo, cipher, userOpts...)

	access, err := keyhash.New(keyhash.AccessToken)
	if err != nil {
		return nil, err
	}
	engine.accessHash = access

	// -------- AUDIT + EVENTS --------
	var sinks audit.Fanout
	if b.auditSink != nil {
		sinks = append(sinks, b.auditSink)
	}
	if cfg.Audit.Log {
		sinks = append(sinks, audit.NewLogSink(logger))
	}
	if cfg.Events.Enabled {
		publisher, err := events.NewRedisStreamPublisher(b.redis, cfg.Events.Topic, sink)
		if err != nil {
			return nil, fmt.Errorf("events publisher: %w", err)
		}
		engine.events = publisher
		sinks = append(sinks, publisher)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        b.clock,
	}, sinks)

	b.built = true

	return engine, nil
}

// reputationSources builds the configured sources and returns the GeoIP
// readers the engine must close.
func reputationSources(cfg ReputationConfig, sink logging.Sink) ([]reputation.Source, []*reputation.MMDB, error) {
	geo := reputation.GeoIPConfig{
		Denylist: reputation.NewDenylist(cfg.ASNDenylist),
		Log:      sink,
	}
	var databases []*reputation.MMDB
	if cfg.GeoIPCityPath != "" {
		db := reputation.OpenMMDB(cfg.GeoIPCityPath, reputation.CityDatabase)
		geo.City = db
		databases = append(databases, db)
	}
	if cfg.GeoIPASNPath != "" {
		db := reputation.OpenMMDB(cfg.GeoIPASNPath, reputation.ASNDatabase)
		geo.ASN = db
		databases = append(databases, db)
	}
	if cfg.RulesPath != "" {
		set, err := rules.Load(cfg.RulesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reputation rules: %w", err)
		}
		geo.Rules = set
	}

	sources, err := reputation.FromNames(cfg.Sources, reputation.Deps{
		HTTP:                reputation.HTTPOptions{Timeout: cfg.Timeout},
		TorZone:             cfg.TorZone,
		SuspectOnTorFailure: cfg.SuspectOnTorFailure,
		GeoIP:               geo,
		Log:                 sink,
	})
	if err != nil {
		return nil, nil, err
	}
	return sources, databases, nil
}
