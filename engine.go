package goGuard

import (
	"context"
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
	"github.com/MrEthical07/goGuard/state"
	"github.com/MrEthical07/goGuard/symmetric"
	"github.com/MrEthical07/goGuard/totp"
	"github.com/MrEthical07/goGuard/user"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Engine composes the gates and the login flow over one Redis client. It is
// safe for concurrent use once built.
type Engine struct {
	config Config
	redis  redis.UniversalClient
	logger *logrus.Logger
	log    logging.Sink

	states     *state.Store
	pow        *pow.Engine
	captcha    *captcha.Engine
	limiter    *rate.Limiter
	reputation *reputation.Aggregator
	databases  []*reputation.MMDB

	users      *user.Service
	cipher     *symmetric.Cipher
	totp       *totp.TOTP
	accessHash *keyhash.Hasher

	audit   *audit.Dispatcher
	events  *events.Publisher
	metrics *Metrics
}

// Close flushes the audit dispatcher and releases GeoIP readers and the
// event publisher. The Redis client belongs to the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.events != nil {
		if err := e.events.Close(); err != nil {
			e.log.Log("close event publisher: "+err.Error(), logging.LevelWarn)
		}
	}
	for _, db := range e.databases {
		_ = db.Close()
	}
}

// AuditDropped returns the number of audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Stats().Dropped
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Logger returns the logrus logger the engine writes to. HTTP adapters derive
// per-request entries from it.
func (e *Engine) Logger() *logrus.Logger {
	if e == nil || e.logger == nil {
		return logrus.StandardLogger()
	}
	return e.logger
}

// IssuePoW creates a proof-of-work challenge at the configured difficulty.
func (e *Engine) IssuePoW(ctx context.Context) (pow.Challenge, error) {
	if e == nil || e.pow == nil {
		return pow.Challenge{}, ErrEngineNotReady
	}
	ch, err := e.pow.Generate(ctx)
	if err != nil {
		e.log.Log("issue pow: "+err.Error(), logging.LevelError)
		return pow.Challenge{}, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	e.metricInc(MetricPoWIssued)
	return ch, nil
}

// verifyPoW checks the powbox fields of a POST body. The state token is spent
// either way.
func (e *Engine) verifyPoW(ctx context.Context, req *Request) bool {
	if !req.IsPost() {
		return false
	}
	solution, token := req.FormValue(FieldPoWSolution), req.FormValue(FieldPoWState)
	if solution == "" || token == "" {
		return false
	}
	if e.pow.Verify(ctx, solution, token, e.config.PoW.Difficulty) {
		e.metricInc(MetricPoWSuccess)
		return true
	}
	e.metricInc(MetricPoWFailure)
	return false
}
