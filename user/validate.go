package user

import (
	"math"
	"strings"
)

// Length and quality bounds for credentials.
const (
	UserNameMinLength = 4
	UserNameMaxLength = 16
	PasswordMinLength = 10
	PasswordMaxLength = 128

	MinPasswordQuality = QualityFair
)

// Password quality levels derived from entropy bits.
const (
	QualityWeak      = 1
	QualityFair      = 2
	QualityStrong    = 3
	QualityExcellent = 4
)

const passwordSymbols = "!@#$%^&*()-_=+[]{};:'\"|\\,.<>/?`~"

// ValidUserName reports whether name has an allowed length and only
// contains letters, digits and underscores.
func ValidUserName(name string) bool {
	if len(name) < UserNameMinLength || len(name) > UserNameMaxLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isAlnum(name[i]) && name[i] != '_' {
			return false
		}
	}
	return true
}

// ValidPassword reports whether password has an allowed length and charset.
// It does not judge strength.
func ValidPassword(password string) bool {
	if len(password) < PasswordMinLength || len(password) > PasswordMaxLength {
		return false
	}
	for i := 0; i < len(password); i++ {
		c := password[i]
		if !isAlnum(c) && strings.IndexByte(passwordSymbols, c) < 0 {
			return false
		}
	}
	return true
}

// PasswordEntropy estimates bits as length × log2(pool), where the pool
// grows by 26, 26, 10 and 32 for each of lower, upper, digit and symbol
// classes present.
func PasswordEntropy(password string) float64 {
	var lower, upper, digit, symbol bool
	for i := 0; i < len(password); i++ {
		c := password[i]
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.IndexByte(passwordSymbols, c) >= 0:
			symbol = true
		}
	}

	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if symbol {
		pool += 32
	}
	if pool == 0 {
		return 0
	}
	return float64(len(password)) * math.Log2(float64(pool))
}

// PasswordQuality buckets entropy: [0,60) weak, [60,100) fair,
// [100,140) strong, 140 and above excellent.
func PasswordQuality(entropy float64) int {
	switch {
	case entropy >= 140:
		return QualityExcellent
	case entropy >= 100:
		return QualityStrong
	case entropy >= 60:
		return QualityFair
	default:
		return QualityWeak
	}
}

// StrongEnough reports whether password meets MinPasswordQuality.
func StrongEnough(password string) bool {
	return PasswordQuality(PasswordEntropy(password)) >= MinPasswordQuality
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
