// Package session issues and verifies per-user login sessions.
//
// A session is addressed by a short random id and authenticated by a long
// random token. Both are stored only as keyed hashes: the id hash is the map
// key inside the owning user record and the token hash lives in the [Record].
// The plaintext pair is returned once, at creation.
//
// # Architecture boundaries
//
// This package owns the [Record] model and the id/token generation rules.
// Persistence belongs to the user repository, which stores the session map
// alongside the rest of the user record.
//
// # What this package must NOT do
//
//   - Import goGuard or user (no upward imports).
//   - Store plaintext ids or tokens.
package session
