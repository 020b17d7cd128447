package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/MrEthical07/goGuard/user"
	"github.com/sirupsen/logrus"
)

type userContextKey struct{}

// UserFromContext returns the user stored by RequireSession.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*user.User)
	return u, ok && u != nil
}

type gateResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Source  string         `json:"source,omitempty"`
	PoW     *pow.Challenge `json:"pow,omitempty"`
}

// Gate runs the browser check and access token gate before next. Passing
// requests carry the goGuard.Request and GateResult in their context.
func Gate(engine *goGuard.Engine, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}

			req := NewRequest(r, opts.TrustProxy)
			res := engine.CheckRequest(r.Context(), req)
			WriteCookies(w, r, res.Cookies, opts.CookieMaxAge)

			entry := requestLogger(engine, req)
			switch res.Decision {
			case goGuard.GatePass:
				ctx := goGuard.WithGateResult(goGuard.WithRequest(r.Context(), req), res)
				next.ServeHTTP(w, r.WithContext(ctx))
			case goGuard.GateChallenge:
				writeJSON(w, http.StatusUnauthorized, gateResponse{Error: "challenge_required", PoW: res.Challenge})
			case goGuard.GateRateLimited:
				entry.Info("rate limited")
				writeJSON(w, http.StatusTooManyRequests, gateResponse{Error: "rate_limited"})
			case goGuard.GateBlocked:
				entry.WithField("source", res.Source).Warn("blocked by reputation")
				writeJSON(w, http.StatusForbidden, gateResponse{Error: "blocked", Source: res.Source})
			default:
				body := gateResponse{Error: "access_denied"}
				if res.Error != nil {
					body.Message = res.Error.Message
				}
				writeJSON(w, http.StatusUnauthorized, body)
			}
		})
	}
}

// RequireSession answers 401 unless the session cookie authenticates. The
// user is available to next through UserFromContext.
func RequireSession(engine *goGuard.Engine, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := goGuard.RequestFromContext(r.Context())
			if !ok {
				req = NewRequest(r, opts.TrustProxy)
			}
			u, err := engine.Authenticate(r.Context(), req)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, gateResponse{Error: "unauthorized"})
				return
			}
			ctx := context.WithValue(goGuard.WithRequest(r.Context(), req), userContextKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(engine *goGuard.Engine, req *goGuard.Request) *logrus.Entry {
	return engine.Logger().WithFields(logrus.Fields{
		"method":  req.Method,
		"path":    req.Path,
		"ip_hash": internal.HashBindingValue(req.IP),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
