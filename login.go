package goGuard

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goGuard/captcha"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/MrEthical07/goGuard/state"
	"github.com/MrEthical07/goGuard/user"
)

// LoginStep tells the adapter which page of the login flow to show.
type LoginStep int

const (
	// StepLogin shows the credential form with a fresh proof-of-work.
	StepLogin LoginStep = iota
	// StepCaptcha shows the image CAPTCHA.
	StepCaptcha
	// StepTwoFactor asks for a TOTP code.
	StepTwoFactor
	// StepDone means a session was issued; Cookies carries it.
	StepDone
)

func (s LoginStep) String() string {
	switch s {
	case StepLogin:
		return "login"
	case StepCaptcha:
		return "captcha"
	case StepTwoFactor:
		return "twofa"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// LoginResult is one step of the login flow. Passwords never leave the
// engine in clear text; pending ones travel encrypted inside State.
type LoginResult struct {
	Step     LoginStep
	UserName string
	Error    *user.FormError
	// PoW is the challenge for the next credential submission (StepLogin).
	PoW *pow.Challenge
	// Captcha holds the images and token for StepCaptcha.
	Captcha *captcha.Challenge
	// State is the token to send back as ?state= for StepTwoFactor.
	State   string
	Cookies []ResponseCookie
	// Err carries an internal failure for logging. It is never shown.
	Err error
}

type pending struct {
	name     string
	password string
}

// Login advances the login flow for req.
//
// A ?state= token resumes a pending CAPTCHA (answered through i and i0..i8)
// or TOTP step (answered through codes). Otherwise user_name and password
// come from the POST body, which must also carry a solved proof-of-work or
// the client is sent through the CAPTCHA. A PoW already spent by CheckRequest
// on the same request counts when ctx carries its GateResult.
func (e *Engine) Login(ctx context.Context, req *Request) LoginResult {
	if e == nil || e.users == nil {
		return LoginResult{Step: StepLogin, Error: user.HashingFailed, Err: ErrEngineNotReady}
	}

	var p pending
	submitted := false
	humanVerified := gatePoWVerified(ctx) || e.verifyPoW(ctx, req)
	totpVerified := false

	if token := req.QueryValue(FieldState); token != "" {
		peek, _ := e.states.Read(ctx, token, false)

		switch peek.Kind {
		case state.KindCaptchaOneClick:
			p, submitted = e.openPending(peek.Data), true
			if !e.solveCaptcha(ctx, req, token) {
				e.emitAudit(ctx, auditEventCaptchaFailure, false, req, "wrong_selection", nil)
				return e.captchaStep(ctx, p, user.NotRight)
			}
			humanVerified = true

		case state.KindTwoFactor:
			p, submitted = e.openPending(peek.Data), true
			if _, err := e.states.ReadKind(ctx, token, state.KindTwoFactor, true); err != nil {
				return e.loginStep(ctx, p.name, nil)
			}
			humanVerified = true

			code := req.QueryValue(FieldCodes)
			if code == "" {
				code = req.FormValue(FieldCodes)
			}
			if !e.users.VerifyTwoFactor(ctx, p.name, code) {
				e.metricInc(MetricTwoFactorFailure)
				e.emitAudit(ctx, auditEventTwoFactorFailure, false, req, "totp_invalid", nil)
				return e.twoFactorStep(ctx, p, user.NotRight)
			}
			e.metricInc(MetricTwoFactorSuccess)
			totpVerified = true

		case "":
		default:
			if err := e.states.Delete(ctx, token); err != nil {
				e.log.Log("discard foreign state: "+err.Error(), logging.LevelWarn)
			}
		}
	}

	if req.IsPost() && !submitted {
		_, hasName := req.Form[FieldUserName]
		_, hasPassword := req.Form[FieldPassword]
		p = pending{name: req.FormValue(FieldUserName), password: req.FormValue(FieldPassword)}
		submitted = hasName || hasPassword
	}

	if !submitted {
		return e.loginStep(ctx, p.name, nil)
	}

	u, formErr := e.users.SignInError(ctx, p.name, p.password)
	if u == nil {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, req, "credentials", nil)
		return e.loginStep(ctx, p.name, formErr)
	}

	if !humanVerified {
		if e.captcha == nil {
			return e.loginStep(ctx, p.name, user.NotRight)
		}
		return e.captchaStep(ctx, p, nil)
	}

	if u.HasTwoFactor() && !totpVerified {
		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditEventTwoFactorRequired, true, req, "", nil)
		return e.twoFactorStep(ctx, p, nil)
	}

	issued, err := e.users.CreateSession(ctx, u, req.UserAgent, req.IP)
	if err != nil {
		e.log.Log("create session: "+err.Error(), logging.LevelError)
		res := e.loginStep(ctx, p.name, user.UserNameOrPasswordWrong)
		res.Err = err
		return res
	}

	token, err := e.states.Create(ctx, state.KindSession, map[string]any{
		"session_id":    issued.ID,
		"session_token": issued.Token,
		"user_name":     u.Name,
	})
	if err != nil {
		e.log.Log("create session state: "+err.Error(), logging.LevelError)
		res := e.loginStep(ctx, p.name, user.HashingFailed)
		res.Err = err
		return res
	}

	e.metricInc(MetricSignInSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, req, "", nil)
	e.emitAudit(ctx, auditEventSessionCreated, true, req, "", nil)

	return LoginResult{
		Step:     StepDone,
		UserName: u.Name,
		Cookies:  []ResponseCookie{{Name: CookieSession, Value: token}},
	}
}

// gatePoWVerified reports whether CheckRequest already spent a valid PoW from
// this request, as recorded by WithGateResult.
func gatePoWVerified(ctx context.Context) bool {
	res, ok := GateResultFromContext(ctx)
	return ok && res.Decision == GatePass && res.PoWVerified
}

// solveCaptcha consumes the CAPTCHA token and checks the clicked images.
func (e *Engine) solveCaptcha(ctx context.Context, req *Request, token string) bool {
	if e.captcha == nil {
		return false
	}
	form := func(key string) string {
		return req.FormValue(key)
	}
	_, ok := e.captcha.Validate(ctx, token, captcha.ClickedIndices(req.QueryValue(FieldClicked), form))
	if ok {
		e.metricInc(MetricCaptchaSuccess)
	} else {
		e.metricInc(MetricCaptchaFailure)
	}
	return ok
}

func (e *Engine) loginStep(ctx context.Context, name string, formErr *user.FormError) LoginResult {
	res := LoginResult{Step: StepLogin, UserName: name, Error: formErr}
	ch, err := e.IssuePoW(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.PoW = &ch
	return res
}

func (e *Engine) captchaStep(ctx context.Context, p pending, formErr *user.FormError) LoginResult {
	if e.captcha == nil {
		return e.loginStep(ctx, p.name, user.NotRight)
	}
	sealed, err := e.sealPending(p)
	if err != nil {
		res := e.loginStep(ctx, p.name, user.HashingFailed)
		res.Err = err
		return res
	}
	ch, err := e.captcha.Create(ctx, sealed)
	if err != nil {
		e.log.Log("create captcha: "+err.Error(), logging.LevelError)
		res := e.loginStep(ctx, p.name, user.HashingFailed)
		res.Err = fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
		return res
	}
	e.metricInc(MetricCaptchaIssued)
	return LoginResult{Step: StepCaptcha, UserName: p.name, Error: formErr, Captcha: &ch}
}

func (e *Engine) twoFactorStep(ctx context.Context, p pending, formErr *user.FormError) LoginResult {
	sealed, err := e.sealPending(p)
	if err == nil {
		var token string
		token, err = e.states.Create(ctx, state.KindTwoFactor, sealed)
		if err == nil {
			return LoginResult{Step: StepTwoFactor, UserName: p.name, Error: formErr, State: token}
		}
	}
	e.log.Log("create twofa state: "+err.Error(), logging.LevelError)
	res := e.loginStep(ctx, p.name, user.HashingFailed)
	res.Err = err
	return res
}

// sealPending encrypts the password for storage in a state entry.
func (e *Engine) sealPending(p pending) (map[string]any, error) {
	sealed, err := e.cipher.EncryptString(p.password)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user_name": p.name, "password": sealed}, nil
}

// openPending recovers name and password from a CAPTCHA or TOTP state. A
// password that fails to decrypt comes back empty.
func (e *Engine) openPending(data map[string]any) pending {
	var p pending
	if ctxData, ok := data["context"].(map[string]any); ok {
		data = ctxData
	}
	p.name, _ = data["user_name"].(string)
	sealed, _ := data["password"].(string)
	if sealed == "" {
		return p
	}
	password, err := e.cipher.DecryptString(sealed)
	if err != nil {
		e.log.Log("pending password decryption failed", logging.LevelWarn)
		return p
	}
	p.password = password
	return p
}
