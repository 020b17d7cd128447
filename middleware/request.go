package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

// Options tunes the adapters.
type Options struct {
	// TrustProxy takes the client address from X-Forwarded-For or X-Real-IP.
	TrustProxy bool
	// CookieMaxAge is the lifetime of written cookies. Zero means session
	// cookies.
	CookieMaxAge time.Duration
}

// NewRequest builds the engine's view of r. POST bodies are parsed; the form
// is left empty for other methods.
func NewRequest(r *http.Request, trustProxy bool) *goGuard.Request {
	req := &goGuard.Request{
		IP:        ClientIP(r, trustProxy),
		UserAgent: r.UserAgent(),
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Cookies:   make(map[string]string),
	}
	if r.Method == http.MethodPost && r.ParseForm() == nil {
		req.Form = r.PostForm
	}
	for _, c := range r.Cookies() {
		if _, seen := req.Cookies[c.Name]; !seen {
			req.Cookies[c.Name] = c.Value
		}
	}
	return req
}

// ClientIP returns the client address of r without the port.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WriteCookies sets cookies on w. Secure is added when r arrived over TLS.
func WriteCookies(w http.ResponseWriter, r *http.Request, cookies []goGuard.ResponseCookie, maxAge time.Duration) {
	for _, c := range cookies {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     "/",
			MaxAge:   int(maxAge / time.Second),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
