// Package middleware adapts goGuard.Engine to net/http.
//
// # Adapters
//
//   - [Gate] runs Engine.CheckRequest and answers 401 with a proof-of-work
//     challenge, 429 when rate limited, 403 when blocked.
//   - [RequireSession] rejects requests without a valid session cookie.
//   - [NewRequest] and [WriteCookies] are the building blocks both use, for
//     callers wiring other routers.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every decision is
// made by the Engine.
//
// # What this package must NOT do
//
//   - Access Redis directly.
//   - Trust forwarding headers unless Options.TrustProxy is set.
//   - Write cookies without HttpOnly and SameSite=Strict.
package middleware
