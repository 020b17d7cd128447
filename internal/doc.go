// Package internal contains helpers that are private to goGuard: secure random
// strings, the crypto/rand shuffle, and client binding hashes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis-backed sliding-window rate limiter
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGuard API.
//   - Use math/rand for anything a client can observe.
package internal
