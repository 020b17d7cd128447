package symmetric

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c, err := New("long-lived secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, plain := range [][]byte{
		{},
		[]byte("a"),
		[]byte("exactly sixteen!"),
		bytes.Repeat([]byte("x"), 1000),
	} {
		enc, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if len(enc) < 48 {
			t.Fatalf("ciphertext too short: %d", len(enc))
		}
		dec, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(dec, plain) {
			t.Fatalf("round trip mismatch for %q", plain)
		}
	}
}

func TestFreshSaltPerCall(t *testing.T) {
	c, _ := New("secret")
	a, _ := c.Encrypt([]byte("same"))
	b, _ := c.Encrypt([]byte("same"))
	if bytes.Equal(a[:16], b[:16]) {
		t.Fatal("salts must differ between calls")
	}
}

func TestWrongSecretFailsClosed(t *testing.T) {
	a, _ := New("secret-a")
	b, _ := New("secret-b")
	enc, _ := a.Encrypt([]byte("attack at dawn, bring snacks"))
	dec, err := b.Decrypt(enc)
	if err == nil && bytes.Equal(dec, []byte("attack at dawn, bring snacks")) {
		t.Fatal("wrong secret must not reveal plaintext")
	}
}

func TestMalformedInput(t *testing.T) {
	c, _ := New("secret")
	enc, _ := c.Encrypt([]byte("payload"))

	for name, in := range map[string][]byte{
		"empty":     nil,
		"truncated": enc[:40],
		"unaligned": append(append([]byte(nil), enc...), 1),
	} {
		if _, err := c.Decrypt(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestStringForm(t *testing.T) {
	c, _ := New("secret")
	enc, err := c.EncryptString("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	dec, err := c.DecryptString(enc)
	if err != nil || dec != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("DecryptString = %q, %v", dec, err)
	}
	if _, err := c.DecryptString("!!"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestEmptySecret(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}
