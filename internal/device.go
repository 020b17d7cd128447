package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"net"

	"github.com/MrEthical07/goGuard/base62"
)

// DefaultIPFingerprint is the bucket used for empty or unparsable addresses.
const DefaultIPFingerprint = "eCpiLALcButgO5xE90Xbt3Oa8Hd5WvScPomOSoP8bts"

// HashBindingValue returns the hex SHA-256 of v. Browser-check state entries
// bind to the hashed client IP so the raw address never lands in Redis.
func HashBindingValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// IPFingerprint returns Base62(SHA-256(ip)), the per-client key component
// used by the rate limiter and the reputation cache.
func IPFingerprint(ip string) string {
	if ip == "" || net.ParseIP(ip) == nil {
		return DefaultIPFingerprint
	}
	sum := sha256.Sum256([]byte(ip))
	return base62.Encode(sum[:])
}
