// Package goGuard is a bot-mitigation and ephemeral-credential layer for the
// front of a login flow. It decides whether a client is a browser worth
// serving (proof-of-work, rate limiting, IP reputation, an optional shared
// access token) and runs the login steps that follow: credentials, image
// CAPTCHA, TOTP and session issuance.
//
// All short-lived state lives in Redis behind opaque 32-character tokens; no
// relational database is involved. Engine methods are safe to call from
// multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goGuard is the composition root. It exposes [Engine], [Builder], [Config],
// the transport-neutral [Request], and result types ([GateResult],
// [LoginResult]). The primitives live in their own packages: state, pow,
// captcha, reputation, user, session, keyhash, symmetric, totp and base62.
// HTTP adapters (middleware, cmd/goguard) translate requests into [Request]
// and write the returned cookies.
//
// # What this package must NOT do
//
//   - Render HTML or choose response status codes; adapters own the transport.
//   - Return plaintext passwords, session tokens or TOTP secrets except where
//     a result type documents it.
//   - Let a backend failure turn into a pass: store errors fail closed, except
//     the rate limiter, which fails open and logs.
package goGuard
