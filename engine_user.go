package goGuard

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/totp"
	"github.com/MrEthical07/goGuard/user"
)

// NewUser reports a created account. TwoFactorSecret and ProvisioningURI are
// only set when TOTP was requested and are not retrievable later.
type NewUser struct {
	Name            string
	TwoFactorSecret string
	ProvisioningURI string
}

// CreateUser registers name with password, optionally enrolling a fresh TOTP
// secret. Validation failures are returned as *user.FormError.
func (e *Engine) CreateUser(ctx context.Context, name, password string, withTOTP bool) (NewUser, error) {
	if e == nil || e.users == nil {
		return NewUser{}, ErrEngineNotReady
	}

	var opts user.CreateOptions
	out := NewUser{Name: name}
	if withTOTP {
		secret, err := totp.GenerateSecret()
		if err != nil {
			return NewUser{}, err
		}
		uri, err := e.totp.ProvisioningURI(e.config.User.TOTPIssuer, name, secret)
		if err != nil {
			return NewUser{}, err
		}
		opts.TwoFactorSecret = secret
		out.TwoFactorSecret = secret
		out.ProvisioningURI = uri
	}

	if _, err := e.users.Create(ctx, name, password, opts); err != nil {
		e.metricInc(MetricUserCreateRejected)
		var formErr *user.FormError
		reason := "backend"
		if errors.As(err, &formErr) {
			reason = "form"
		}
		e.emitAudit(ctx, auditEventUserCreateRejected, false, nil, reason, nil)
		return NewUser{}, err
	}

	e.metricInc(MetricUserCreated)
	e.emitAudit(ctx, auditEventUserCreated, true, nil, "", nil)
	return out, nil
}
