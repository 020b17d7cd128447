package goGuard

import (
	"sync/atomic"
	"time"
)

// MetricID names one in-process counter.
type MetricID uint16

const (
	// MetricGatePass counts requests let through by CheckRequest.
	MetricGatePass MetricID = iota
	// MetricGateChallenge counts requests answered with a fresh proof-of-work.
	MetricGateChallenge
	// MetricGateRateLimited counts requests rejected by the sliding window.
	MetricGateRateLimited
	// MetricGateBlocked counts requests rejected by IP reputation.
	MetricGateBlocked
	// MetricAccessGranted counts access token presentations that matched.
	MetricAccessGranted
	// MetricAccessDenied counts requests stopped by the access token gate.
	MetricAccessDenied
	// MetricPoWIssued counts issued proof-of-work challenges.
	MetricPoWIssued
	// MetricPoWSuccess counts accepted proof-of-work solutions.
	MetricPoWSuccess
	// MetricPoWFailure counts rejected proof-of-work solutions.
	MetricPoWFailure
	// MetricCaptchaIssued counts issued CAPTCHAs.
	MetricCaptchaIssued
	// MetricCaptchaSuccess counts solved CAPTCHAs.
	MetricCaptchaSuccess
	// MetricCaptchaFailure counts failed CAPTCHA answers.
	MetricCaptchaFailure
	// MetricSignInSuccess counts completed logins.
	MetricSignInSuccess
	// MetricSignInFailure counts rejected credentials.
	MetricSignInFailure
	// MetricTwoFactorRequired counts logins that stopped at the TOTP step.
	MetricTwoFactorRequired
	// MetricTwoFactorSuccess counts accepted TOTP codes.
	MetricTwoFactorSuccess
	// MetricTwoFactorFailure counts rejected TOTP codes.
	MetricTwoFactorFailure
	// MetricSessionCreated counts issued sessions.
	MetricSessionCreated
	// MetricSessionRevoked counts revoked sessions.
	MetricSessionRevoked
	// MetricSessionRejected counts session cookies that did not authenticate.
	MetricSessionRejected
	// MetricReputationHit counts addresses flagged by a reputation source.
	MetricReputationHit
	// MetricRateLimitHit counts rate limiter denials.
	MetricRateLimitHit
	// MetricUserCreated counts created users.
	MetricUserCreated
	// MetricUserCreateRejected counts rejected sign-ups.
	MetricUserCreateRejected
	// MetricGateLatency is the CheckRequest latency histogram.
	MetricGateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters indexed by [MetricID]. A nil or disabled
// Metrics ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms hold
// non-cumulative bucket counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only [MetricGateLatency] has
// a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricGateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range histBucketCount {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGateLatency].buckets[i])
		}
		s.Histograms[MetricGateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
