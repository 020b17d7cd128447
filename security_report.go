package goGuard

import "time"

// SecurityReport summarises the protections an engine enforces, for startup
// logs and health endpoints.
type SecurityReport struct {
	PoWDifficulty       int
	CaptchaEnabled      bool
	RateLimitingActive  bool
	RateLimitWindow     time.Duration
	RateLimit           int
	ReputationActive    bool
	ReputationSources   []string
	ReputationParallel  bool
	SuspectOnTorFailure bool
	AccessGateActive    bool
	AuditEnabled        bool
	EventsEnabled       bool
	MetricsEnabled      bool
	UserRepository      string
}

// SecurityReport describes the active configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	report := SecurityReport{
		PoWDifficulty:       e.config.PoW.Difficulty,
		CaptchaEnabled:      e.captcha != nil,
		RateLimitingActive:  e.limiter != nil,
		ReputationActive:    e.reputation != nil,
		ReputationParallel:  e.config.Reputation.Parallel,
		SuspectOnTorFailure: e.config.Reputation.SuspectOnTorFailure,
		AccessGateActive:    e.config.Access.Token != "",
		AuditEnabled:        e.config.Audit.Enabled,
		EventsEnabled:       e.events != nil,
		MetricsEnabled:      e.metrics.Enabled(),
		UserRepository:      e.config.User.Repository,
	}
	if report.RateLimitingActive {
		report.RateLimitWindow = e.config.RateLimit.Window
		report.RateLimit = e.config.RateLimit.Limit
	}
	if report.ReputationActive {
		report.ReputationSources = e.reputation.Sources()
	}
	return report
}
