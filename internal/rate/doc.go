// Package rate provides the Redis-backed per-IP request limiter used by the
// browser check.
//
// # Window semantics
//
// Sliding window over a capped list of unix timestamps. Each request pushes
// "now", trims the list to the last Capacity entries, reads it back and
// refreshes a Window-long expiry, all in one MULTI/EXEC. The client is
// limited when more than Limit stored timestamps fall inside Window.
//
// Keys are rate_limit:<Base62(SHA-256(ip))>; raw addresses are never stored.
//
// # What this package must NOT do
//
//   - Block a request because Redis is down (fail open).
//   - Be imported outside the goGuard module.
package rate
