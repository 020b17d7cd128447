package rate

import "errors"

var (
	// ErrRateLimited is returned by Check when the client is over budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures. Allow fails open alongside it.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
