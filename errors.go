package goGuard

import "errors"

var (
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrSecretRequired is returned by Build when no user secret is configured.
	ErrSecretRequired = errors.New("user secret required")
	// ErrCaptchaUnavailable is returned when a CAPTCHA cannot be produced.
	ErrCaptchaUnavailable = errors.New("captcha unavailable")
	// ErrSessionInvalid is returned when a session cookie does not resolve to a live session.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrStateUnavailable is returned when a state token cannot be issued.
	ErrStateUnavailable = errors.New("state backend unavailable")
)
