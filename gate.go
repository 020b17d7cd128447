package goGuard

import (
	"context"
	"crypto/subtle"
	"slices"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/MrEthical07/goGuard/state"
	"github.com/MrEthical07/goGuard/user"
)

// GateDecision is the outcome of [Engine.CheckRequest].
type GateDecision int

const (
	// GatePass lets the request through.
	GatePass GateDecision = iota
	// GateChallenge answers with a proof-of-work the client must solve.
	GateChallenge
	// GateRateLimited rejects a client that exceeded the window.
	GateRateLimited
	// GateBlocked rejects an address flagged by IP reputation.
	GateBlocked
	// GateDenied rejects a request without a valid access token.
	GateDenied
)

func (d GateDecision) String() string {
	switch d {
	case GatePass:
		return "pass"
	case GateChallenge:
		return "challenge"
	case GateRateLimited:
		return "rate_limited"
	case GateBlocked:
		return "blocked"
	case GateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// GateResult describes what the adapter must do with a request.
type GateResult struct {
	Decision GateDecision
	// Challenge is set for GateChallenge, or nil when none could be issued.
	Challenge *pow.Challenge
	// Source names the reputation source behind GateBlocked.
	Source string
	// Error is user.NotRight when a wrong access token was presented.
	Error *user.FormError
	// Cookies must be written whatever the decision.
	Cookies []ResponseCookie
	// PoWVerified reports that this request's powbox fields were spent by the
	// gate. Login accepts it in place of verifying them again.
	PoWVerified bool
}

// CheckRequest runs the browser check and then the access token gate.
//
// A request passes the browser check when its challenge cookie names a live
// browser_checked entry bound to the client address. Otherwise the client is
// rate limited, screened by IP reputation when enabled, and finally either
// proves work through the powbox form fields or receives a new challenge.
func (e *Engine) CheckRequest(ctx context.Context, req *Request) GateResult {
	start := time.Now()
	defer e.metricObserve(MetricGateLatency, start)

	if e == nil || e.states == nil {
		return GateResult{Decision: GateDenied}
	}

	res := e.checkBrowser(ctx, req)
	if res.Decision != GatePass {
		return res
	}

	if !e.checkAccess(ctx, req, &res) {
		e.metricInc(MetricAccessDenied)
		res.Decision = GateDenied
		return res
	}

	e.metricInc(MetricGatePass)
	return res
}

func (e *Engine) checkBrowser(ctx context.Context, req *Request) GateResult {
	binding := internal.HashBindingValue(req.IP)

	if token := req.Cookie(CookieChallenge); token != "" {
		entry, err := e.states.ReadKind(ctx, token, state.KindBrowserChecked, false)
		if err == nil && subtle.ConstantTimeCompare([]byte(entry.String("ip")), []byte(binding)) == 1 {
			return GateResult{Decision: GatePass}
		}
	}

	if e.limiter != nil {
		decision, err := e.limiter.Allow(ctx, req.IP)
		if err != nil {
			e.log.Log("rate limiter: "+err.Error(), logging.LevelWarn)
		}
		if decision.Limited {
			e.emitRateLimit(ctx, req, decision.Recent)
			return GateResult{Decision: GateRateLimited}
		}
	}

	if e.reputation != nil {
		found, err := e.reputation.Check(ctx, req.IP)
		if err != nil {
			e.log.Log("reputation check: "+err.Error(), logging.LevelWarn)
		}
		if found.Malicious {
			e.metricInc(MetricReputationHit)
			e.metricInc(MetricGateBlocked)
			e.emitAudit(ctx, auditEventReputationBlocked, false, req, "malicious_ip", func() map[string]string {
				return map[string]string{"source": found.Source, "verdict": found.Verdict.String()}
			})
			return GateResult{Decision: GateBlocked, Source: found.Source}
		}
	}

	if e.verifyPoW(ctx, req) {
		token, err := e.states.Create(ctx, state.KindBrowserChecked, map[string]any{"ip": binding})
		if err != nil {
			e.log.Log("create browser_checked state: "+err.Error(), logging.LevelError)
		}
		res := GateResult{Decision: GatePass, PoWVerified: true}
		if token != "" {
			res.Cookies = append(res.Cookies, ResponseCookie{Name: CookieChallenge, Value: token})
		}
		e.emitAudit(ctx, auditEventBrowserChecked, true, req, "", nil)
		return res
	}

	e.metricInc(MetricGateChallenge)
	res := GateResult{Decision: GateChallenge}
	if ch, err := e.IssuePoW(ctx); err == nil {
		res.Challenge = &ch
	}
	return res
}

// checkAccess enforces Access.Token. A matching access_token cookie passes;
// otherwise a correct token in the query or POST body passes and earns the
// cookie, which holds only a salted hash of the token.
func (e *Engine) checkAccess(ctx context.Context, req *Request, res *GateResult) bool {
	want := e.config.Access.Token
	if want == "" || slices.Contains(e.config.Access.ExemptPaths, req.Path) {
		return true
	}

	if cookie := req.Cookie(CookieAccessToken); cookie != "" && e.accessHash.CompareString(want, cookie) {
		return true
	}

	sent := req.QueryValue(FieldAccessToken)
	if sent == "" {
		sent = req.FormValue(FieldAccessToken)
	}
	if sent == "" {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(sent), []byte(want)) != 1 {
		res.Error = user.NotRight
		e.emitAudit(ctx, auditEventAccessDenied, false, req, "wrong_token", nil)
		return false
	}

	hashed, err := e.accessHash.HashString(want)
	if err != nil {
		e.log.Log("hash access token: "+err.Error(), logging.LevelError)
		res.Error = user.NotRight
		return false
	}
	res.Cookies = append(res.Cookies, ResponseCookie{Name: CookieAccessToken, Value: hashed})
	e.metricInc(MetricAccessGranted)
	e.emitAudit(ctx, auditEventAccessGranted, true, req, "", nil)
	return true
}
