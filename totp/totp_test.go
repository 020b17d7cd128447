package totp

import (
	"encoding/base32"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestCodeValidForOneAdjacentStep(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	m := New(Default)

	now := time.Unix(1_700_000_010, 0)
	code, err := m.Generate(secret, now)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !m.Verify(secret, code, now) {
		t.Fatal("code must verify at generation time")
	}
	if !m.Verify(secret, code, now.Add(30*time.Second)) {
		t.Fatal("code must verify one interval later")
	}
	if m.Verify(secret, code, now.Add(60*time.Second)) {
		t.Fatal("code must not verify two intervals later")
	}
	if !m.Verify(secret, code, now.Add(-30*time.Second)) {
		t.Fatal("code from the next interval must verify")
	}
	if m.Verify(secret, code, now.Add(-60*time.Second)) {
		t.Fatal("code must not verify two intervals early")
	}
}

func TestRFC6238VectorsSHA1(t *testing.T) {
	secret := base32.StdEncoding.EncodeToString([]byte("12345678901234567890"))
	m := New(Options{Digits: 8, Skew: 0})

	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
	}
	for _, tc := range cases {
		if !m.Verify(secret, tc.code, time.Unix(tc.ts, 0)) {
			t.Fatalf("vector failed at t=%d", tc.ts)
		}
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	m := New(Default)
	secret, _ := GenerateSecret()
	now := time.Now()

	for _, code := range []string{"", "12345", "1234567"} {
		if m.Verify(secret, code, now) {
			t.Fatalf("accepted %q", code)
		}
	}
	if m.Verify("", "123456", now) {
		t.Fatal("accepted empty secret")
	}
	if m.Verify("!!not base32!!", "123456", now) {
		t.Fatal("accepted invalid secret")
	}
}

func TestProvisioningURI(t *testing.T) {
	m := New(Default)
	secret, _ := GenerateSecret()

	uri, err := m.ProvisioningURI("goGuard", "alice", secret)
	if err != nil {
		t.Fatalf("ProvisioningURI: %v", err)
	}
	u, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected uri %q", uri)
	}
	if got := u.Query().Get("secret"); !strings.EqualFold(strings.TrimRight(got, "="), secret) {
		t.Fatalf("secret mismatch: %q vs %q", got, secret)
	}
	if _, err := m.ProvisioningURI("", "alice", secret); err == nil {
		t.Fatal("expected error without issuer")
	}
}
