package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricGatePass, Name: "goguard_gate_pass_total", Help: "Requests let through by the gate."},
	{ID: goGuard.MetricGateChallenge, Name: "goguard_gate_challenge_total", Help: "Requests answered with a proof-of-work challenge."},
	{ID: goGuard.MetricGateRateLimited, Name: "goguard_gate_rate_limited_total", Help: "Requests rejected by the per-IP rate limiter."},
	{ID: goGuard.MetricGateBlocked, Name: "goguard_gate_blocked_total", Help: "Requests rejected by IP reputation."},
	{ID: goGuard.MetricAccessGranted, Name: "goguard_access_granted_total", Help: "Correct access token presentations."},
	{ID: goGuard.MetricAccessDenied, Name: "goguard_access_denied_total", Help: "Requests stopped by the access token gate."},
	{ID: goGuard.MetricPoWIssued, Name: "goguard_pow_issued_total", Help: "Issued proof-of-work challenges."},
	{ID: goGuard.MetricPoWSuccess, Name: "goguard_pow_success_total", Help: "Accepted proof-of-work solutions."},
	{ID: goGuard.MetricPoWFailure, Name: "goguard_pow_failure_total", Help: "Rejected proof-of-work solutions."},
	{ID: goGuard.MetricCaptchaIssued, Name: "goguard_captcha_issued_total", Help: "Issued image CAPTCHAs."},
	{ID: goGuard.MetricCaptchaSuccess, Name: "goguard_captcha_success_total", Help: "Solved image CAPTCHAs."},
	{ID: goGuard.MetricCaptchaFailure, Name: "goguard_captcha_failure_total", Help: "Failed image CAPTCHA answers."},
	{ID: goGuard.MetricSignInSuccess, Name: "goguard_signin_success_total", Help: "Completed logins."},
	{ID: goGuard.MetricSignInFailure, Name: "goguard_signin_failure_total", Help: "Rejected credentials."},
	{ID: goGuard.MetricTwoFactorRequired, Name: "goguard_twofa_required_total", Help: "Logins that stopped at the TOTP step."},
	{ID: goGuard.MetricTwoFactorSuccess, Name: "goguard_twofa_success_total", Help: "Accepted TOTP codes."},
	{ID: goGuard.MetricTwoFactorFailure, Name: "goguard_twofa_failure_total", Help: "Rejected TOTP codes."},
	{ID: goGuard.MetricSessionCreated, Name: "goguard_session_created_total", Help: "Issued sessions."},
	{ID: goGuard.MetricSessionRevoked, Name: "goguard_session_revoked_total", Help: "Revoked sessions."},
	{ID: goGuard.MetricSessionRejected, Name: "goguard_session_rejected_total", Help: "Session cookies that failed to authenticate."},
	{ID: goGuard.MetricReputationHit, Name: "goguard_reputation_hit_total", Help: "Addresses flagged by a reputation source."},
	{ID: goGuard.MetricRateLimitHit, Name: "goguard_rate_limit_hit_total", Help: "Rate limiter denials."},
	{ID: goGuard.MetricUserCreated, Name: "goguard_user_created_total", Help: "Created users."},
	{ID: goGuard.MetricUserCreateRejected, Name: "goguard_user_create_rejected_total", Help: "Rejected user creations."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricGateLatency, Name: "goguard_gate_latency_seconds", Help: "CheckRequest latency histogram."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "goguard_audit_dropped_total"

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
