// Package state is the ephemeral state store: opaque, fixed-length tokens
// handed to clients, each pointing at a JSON payload in Redis with a
// kind-dependent TTL.
//
// Every server-issued reference a client carries (PoW challenges, CAPTCHA
// answer keys, pending 2FA context, session pointers, browser-check cookies)
// goes through this store.
//
// # Architecture boundaries
//
// The store owns token generation, key layout, TTLs, and single-use deletion.
// It does not interpret payloads beyond the kind tag.
//
// # What this package must NOT do
//
//   - Touch Redis for malformed tokens.
//   - Surface raw Redis errors from Read; callers only see ErrNotFound.
//   - Overwrite an existing token on Create.
package state
