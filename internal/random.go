package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// AlphaNumeric is the token alphabet for state tokens, challenges, and session secrets.
const AlphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var errEmptyAlphabet = errors.New("empty alphabet")

// RandomString returns length characters drawn uniformly from alphabet using crypto/rand.
func RandomString(length int, alphabet string) (string, error) {
	if alphabet == "" {
		return "", errEmptyAlphabet
	}
	if length <= 0 {
		return "", nil
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// RandomInt returns a uniform integer in [0, n).
func RandomInt(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("random bound must be > 0")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func Shuffle(n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := RandomInt(i + 1)
		if err != nil {
			return err
		}
		swap(i, j)
	}
	return nil
}

// IsAlphaNumeric reports whether s only contains characters of [AlphaNumeric].
func IsAlphaNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
