package goGuard

import (
	"context"
	"slices"
	"strings"
	"time"
)

// SessionInfo describes one stored session without its secrets. Key is the
// hashed session id.
type SessionInfo struct {
	Key       string
	OS        string
	Browser   string
	IP        string
	CreatedAt int64
}

// HealthStatus reports backend reachability.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// ListSessions returns the sessions of the user behind req's session
// cookie, newest first.
func (e *Engine) ListSessions(ctx context.Context, req *Request) ([]SessionInfo, error) {
	u, err := e.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]SessionInfo, 0, len(u.Record.Sessions))
	for key, rec := range u.Record.Sessions {
		out = append(out, SessionInfo{
			Key:       key,
			OS:        rec.OS,
			Browser:   rec.Browser,
			IP:        rec.IP,
			CreatedAt: rec.Time,
		})
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt > b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out, nil
}

// Health pings Redis.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.redis == nil {
		return HealthStatus{}
	}

	start := time.Now()
	err := e.redis.Ping(ctx).Err()
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   time.Since(start),
	}
}
