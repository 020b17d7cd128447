// Package keyhash implements the salted, iterated keyed hash used for
// passwords, user-name keys, session secrets, and access-token cookies.
//
// Output layout is salt ‖ derived, where derived is PBKDF2-HMAC-SHA3-256.
// Compare takes the salt from the front of the stored value unless one is
// passed explicitly, and compares only the derived part in constant time.
package keyhash

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"github.com/MrEthical07/goGuard/base62"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidOptions is returned by [New] for non-positive iteration or hash lengths.
	ErrInvalidOptions = errors.New("keyhash: invalid options")
	// ErrSalt is returned when a supplied salt has the wrong length or random generation fails.
	ErrSalt = errors.New("keyhash: salt unavailable")
)

// Options tune one hasher instance.
type Options struct {
	Iterations int
	HashLength int
	SaltLength int
	// Encode makes HashString return Base62 instead of raw bytes.
	Encode bool
}

// Default matches the historic defaults: 10000 iterations, 8 byte hash, 8 byte salt.
var Default = Options{Iterations: 10000, HashLength: 8, SaltLength: 8}

// Presets used by the credential layer. Hashes that end up in JSON records
// are Base62 encoded.
var (
	Password     = Options{Iterations: 100000, HashLength: 8, SaltLength: 32, Encode: true}
	UserName     = Options{Iterations: 10000, HashLength: 8, SaltLength: 8, Encode: true}
	SessionID    = Options{Iterations: 10000, HashLength: 8, SaltLength: 8, Encode: true}
	SessionToken = Options{Iterations: 50000, HashLength: 8, SaltLength: 16, Encode: true}
	AccessToken  = Options{Iterations: 10000, HashLength: 8, SaltLength: 8, Encode: true}
	Beam         = Options{Iterations: 10000, HashLength: 15, SaltLength: 0, Encode: true}
)

// Hasher derives and compares keyed hashes. It is immutable and safe for concurrent use.
type Hasher struct {
	opts Options
}

// New validates opts and returns a Hasher.
func New(opts Options) (*Hasher, error) {
	if opts.Iterations <= 0 || opts.HashLength <= 0 || opts.SaltLength < 0 {
		return nil, ErrInvalidOptions
	}
	return &Hasher{opts: opts}, nil
}

// MustNew is New for package-level presets; it panics on invalid options.
func MustNew(opts Options) *Hasher {
	h, err := New(opts)
	if err != nil {
		panic(err)
	}
	return h
}

// Options returns the hasher configuration.
func (h *Hasher) Options() Options {
	return h.opts
}

// Hash returns salt ‖ derived for plain. A nil salt is generated when the
// hasher has a salt length.
func (h *Hasher) Hash(plain, salt []byte) ([]byte, error) {
	if salt == nil && h.opts.SaltLength > 0 {
		salt = make([]byte, h.opts.SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, ErrSalt
		}
	}
	if len(salt) != h.opts.SaltLength {
		return nil, ErrSalt
	}

	derived := h.derive(plain, salt)
	out := make([]byte, 0, len(salt)+len(derived))
	out = append(out, salt...)
	return append(out, derived...), nil
}

// HashString hashes plain and returns the Base62 form when Encode is set,
// otherwise the raw bytes as a string.
func (h *Hasher) HashString(plain string) (string, error) {
	raw, err := h.Hash([]byte(plain), nil)
	if err != nil {
		return "", err
	}
	if h.opts.Encode {
		return base62.Encode(raw), nil
	}
	return string(raw), nil
}

// Compare reports whether plain hashes to hashed. A nil salt means the salt
// is read from the front of hashed.
func (h *Hasher) Compare(plain, hashed, salt []byte) bool {
	if salt == nil {
		if len(hashed) < h.opts.SaltLength {
			return false
		}
		salt = hashed[:h.opts.SaltLength]
	}
	if len(salt) != h.opts.SaltLength {
		return false
	}
	if len(hashed) != h.opts.SaltLength+h.opts.HashLength {
		return false
	}

	derived := h.derive(plain, salt)
	return subtle.ConstantTimeCompare(derived, hashed[h.opts.SaltLength:]) == 1
}

// CompareString is Compare over the string form produced by [Hasher.HashString].
func (h *Hasher) CompareString(plain, hashed string) bool {
	raw := []byte(hashed)
	if h.opts.Encode {
		decoded, err := base62.Decode(hashed)
		if err != nil {
			return false
		}
		raw = decoded
	}
	return h.Compare([]byte(plain), raw, nil)
}

func (h *Hasher) derive(plain, salt []byte) []byte {
	return pbkdf2.Key(plain, salt, h.opts.Iterations, h.opts.HashLength, sha3.New256)
}
