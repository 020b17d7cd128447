// Package user implements credential validation, sign-in, sign-up, session
// bookkeeping and TOTP verification over a pluggable [Repository].
//
// Records are stored under a salted hash of the user name, so lookups hash
// the candidate name against every stored key. Passwords, session ids and
// session tokens are stored as keyed hashes; TOTP secrets are encrypted.
//
// # What this package must NOT do
//
//   - Tell a caller whether a user name exists (sign-in errors collapse).
//   - Persist plaintext passwords, session tokens or TOTP secrets.
package user
