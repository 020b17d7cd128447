// Package symmetric is AES-256-CBC with PKCS7 padding keyed from a long-lived
// secret. Every call derives a fresh key with PBKDF2-HMAC-SHA256 over a random
// salt, so the wire format is salt(16) ‖ iv(16) ‖ ciphertext.
package symmetric

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/goGuard/base62"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 10000
)

var (
	// ErrEmptySecret is returned by [New] for an empty secret.
	ErrEmptySecret = errors.New("symmetric: empty secret")
	// ErrMalformed is returned for truncated, misaligned, or badly padded input.
	ErrMalformed = errors.New("symmetric: malformed ciphertext")
)

// Cipher encrypts and decrypts under one secret. Safe for concurrent use.
type Cipher struct {
	secret []byte
}

// New returns a Cipher bound to secret.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Cipher{secret: []byte(secret)}, nil
}

// Encrypt returns salt ‖ iv ‖ AES-256-CBC(pkcs7(plain)).
func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	head := make([]byte, saltSize+aes.BlockSize)
	if _, err := rand.Read(head); err != nil {
		return nil, err
	}
	salt, iv := head[:saltSize], head[saltSize:]

	block, err := aes.NewCipher(c.key(salt))
	if err != nil {
		return nil, err
	}

	padded := pad(plain, aes.BlockSize)
	out := make([]byte, len(head)+len(padded))
	copy(out, head)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(head):], padded)
	return out, nil
}

// Decrypt reverses [Cipher.Encrypt]. Any structural problem yields ErrMalformed.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if len(data) < saltSize+2*aes.BlockSize {
		return nil, ErrMalformed
	}
	body := data[saltSize+aes.BlockSize:]
	if len(body)%aes.BlockSize != 0 {
		return nil, ErrMalformed
	}
	salt, iv := data[:saltSize], data[saltSize:saltSize+aes.BlockSize]

	block, err := aes.NewCipher(c.key(salt))
	if err != nil {
		return nil, ErrMalformed
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return unpad(plain, aes.BlockSize)
}

// EncryptString encrypts plain and returns the Base62 form.
func (c *Cipher) EncryptString(plain string) (string, error) {
	raw, err := c.Encrypt([]byte(plain))
	if err != nil {
		return "", err
	}
	return base62.Encode(raw), nil
}

// DecryptString reverses [Cipher.EncryptString].
func (c *Cipher) DecryptString(encoded string) (string, error) {
	raw, err := base62.Decode(encoded)
	if err != nil {
		return "", ErrMalformed
	}
	plain, err := c.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (c *Cipher) key(salt []byte) []byte {
	return pbkdf2.Key(c.secret, salt, iterations, keySize, sha256.New)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrMalformed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, ErrMalformed
	}
	expected := bytes.Repeat([]byte{byte(n)}, n)
	if subtle.ConstantTimeCompare(b[len(b)-n:], expected) != 1 {
		return nil, ErrMalformed
	}
	return b[:len(b)-n], nil
}
