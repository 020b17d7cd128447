// Package totp wraps github.com/pquerna/otp with the fixed parameters used by
// the sign-in second factor: 30 second steps, 6 digits, SHA1, one step of skew.
package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
)

const secretBytes = 20

var (
	// ErrInvalidSecret is returned when a secret is not valid Base32.
	ErrInvalidSecret = errors.New("totp: invalid secret")
	// ErrMissingAccount is returned by ProvisioningURI without issuer or account.
	ErrMissingAccount = errors.New("totp: issuer and account required")
)

// Options holds the verification window. Zero fields use the defaults.
type Options struct {
	Period uint
	Digits int
	Skew   uint
}

// Default is a 30s period, 6 digits, and one step of skew.
var Default = Options{Period: 30, Digits: 6, Skew: 1}

// TOTP generates and verifies codes. The zero value is not usable; call [New].
type TOTP struct {
	opts pqtotp.ValidateOpts
}

// New returns a TOTP using opts with defaults filled in.
func New(opts Options) *TOTP {
	if opts.Period == 0 {
		opts.Period = Default.Period
	}
	if opts.Digits == 0 {
		opts.Digits = Default.Digits
	}
	return &TOTP{opts: pqtotp.ValidateOpts{
		Period:    opts.Period,
		Skew:      opts.Skew,
		Digits:    otp.Digits(opts.Digits),
		Algorithm: otp.AlgorithmSHA1,
	}}
}

// GenerateSecret returns a random 160-bit secret in unpadded Base32.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// Generate returns the code for secret at the given time.
func (t *TOTP) Generate(secret string, at time.Time) (string, error) {
	code, err := pqtotp.GenerateCodeCustom(secret, at, t.opts)
	if err != nil {
		return "", ErrInvalidSecret
	}
	return code, nil
}

// Verify reports whether code is valid for secret at the given time, allowing
// the configured skew. Any library error counts as a failed verification.
func (t *TOTP) Verify(secret, code string, at time.Time) bool {
	if secret == "" || len(code) != int(t.opts.Digits) {
		return false
	}
	ok, err := pqtotp.ValidateCustom(code, secret, at, t.opts)
	return err == nil && ok
}

// ProvisioningURI returns the otpauth:// URL an authenticator app can scan.
func (t *TOTP) ProvisioningURI(issuer, account, secret string) (string, error) {
	if issuer == "" || account == "" {
		return "", ErrMissingAccount
	}
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      t.opts.Period,
		Secret:      raw,
		Digits:      t.opts.Digits,
		Algorithm:   t.opts.Algorithm,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	if n := len(s) % 8; n != 0 {
		s += strings.Repeat("=", 8-n)
	}
	raw, err := base32.StdEncoding.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}
