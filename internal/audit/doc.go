// Package audit relays gate and login decisions to sinks off the request path.
//
// The [Dispatcher] owns a bounded queue and one delivery goroutine. Sinks
// include a channel for tests, a logrus writer, and [Fanout]; the Redis Stream
// publisher lives in the events package.
//
// # What this package must NOT do
//
//   - Decide which decisions are worth an event. The Engine does that.
//   - Import goGuard or sibling internal packages.
package audit
