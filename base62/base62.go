// Package base62 encodes byte strings with the 62-character alphanumeric
// alphabet used for every client-visible hash and token.
//
// The byte string is read as one big-endian integer. Leading zero bytes are
// kept as leading alphabet[0] characters so that Decode(Encode(b)) == b for
// every non-empty b.
package base62

import (
	"errors"
	"math/big"
)

// Alphabet is the digit order; index i is the digit value i.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrInvalid is returned for empty input or characters outside [Alphabet].
var ErrInvalid = errors.New("base62: invalid input")

var (
	radix   = big.NewInt(62)
	decoder = func() [256]int8 {
		var t [256]int8
		for i := range t {
			t[i] = -1
		}
		for i := 0; i < len(Alphabet); i++ {
			t[Alphabet[i]] = int8(i)
		}
		return t
	}()
)

// Encode returns the Base62 form of plain. Empty input encodes to "".
func Encode(plain []byte) string {
	if len(plain) == 0 {
		return ""
	}

	zeros := 0
	for zeros < len(plain) && plain[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(plain[zeros:])
	mod := new(big.Int)

	out := make([]byte, 0, len(plain)*138/100+1+zeros)
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		out = append(out, Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, Alphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Decode reverses [Encode].
func Decode(serialized string) ([]byte, error) {
	if serialized == "" {
		return nil, ErrInvalid
	}

	zeros := 0
	for zeros < len(serialized) && serialized[zeros] == Alphabet[0] {
		zeros++
	}

	n := new(big.Int)
	digit := new(big.Int)
	for i := zeros; i < len(serialized); i++ {
		v := decoder[serialized[i]]
		if v < 0 {
			return nil, ErrInvalid
		}
		n.Mul(n, radix)
		n.Add(n, digit.SetInt64(int64(v)))
	}

	body := n.Bytes()
	out := make([]byte, zeros+len(body))
	copy(out[zeros:], body)
	return out, nil
}

// Valid reports whether s is a non-empty string over [Alphabet].
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if decoder[s[i]] < 0 {
			return false
		}
	}
	return true
}
