package goGuard

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goGuard/internal"
)

const (
	auditEventAccessGranted      = "access_granted"
	auditEventAccessDenied       = "access_denied"
	auditEventBrowserChecked     = "browser_checked"
	auditEventRateLimitTriggered = "rate_limit_triggered"
	auditEventReputationBlocked  = "reputation_blocked"
	auditEventCaptchaFailure     = "captcha_failure"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventTwoFactorRequired  = "twofa_required"
	auditEventTwoFactorFailure   = "twofa_failure"
	auditEventSessionCreated     = "session_created"
	auditEventSessionRevoked     = "session_revoked"
	auditEventUserCreated        = "user_created"
	auditEventUserCreateRejected = "user_create_rejected"
)

// emitAudit queues an event for req. reason is a short machine code; the
// metadata builder only runs when auditing is on.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	req *Request,
	reason string,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		Success:   success,
		Reason:    reason,
		Metadata:  metadata,
	}
	if req != nil {
		event.Path = req.Path
		if req.IP != "" {
			event.IPHash = internal.HashBindingValue(req.IP)
		}
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, req *Request, recent int) {
	e.metricInc(MetricRateLimitHit)
	e.metricInc(MetricGateRateLimited)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, req, "rate_limited", func() map[string]string {
		return map[string]string{"recent": strconv.Itoa(recent)}
	})
}
