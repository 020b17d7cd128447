package goGuard

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/state"
	"github.com/MrEthical07/goGuard/user"
)

// Authenticate resolves the session cookie of req to its user.
func (e *Engine) Authenticate(ctx context.Context, req *Request) (*user.User, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	entry, err := e.states.ReadKind(ctx, req.Cookie(CookieSession), state.KindSession, false)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return nil, ErrSessionInvalid
	}
	u, ok := e.users.Authenticate(ctx, entry.String("user_name"), entry.String("session_id"), entry.String("session_token"))
	if !ok {
		e.metricInc(MetricSessionRejected)
		return nil, ErrSessionInvalid
	}
	return u, nil
}

// Logout spends the session cookie of req and removes the session from the
// user record.
func (e *Engine) Logout(ctx context.Context, req *Request) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	entry, err := e.states.ReadKind(ctx, req.Cookie(CookieSession), state.KindSession, true)
	if err != nil {
		return ErrSessionInvalid
	}
	err = e.users.RevokeSession(ctx, entry.String("user_name"), entry.String("session_id"))
	if errors.Is(err, user.ErrNotFound) {
		return ErrSessionInvalid
	}
	if err != nil {
		e.log.Log("revoke session: "+err.Error(), logging.LevelError)
		return err
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, req, "", nil)
	return nil
}
