package goGuard

import "net/url"

// Cookie names written by the engine.
const (
	CookieChallenge   = "challenge"
	CookieSession     = "session"
	CookieAccessToken = "access_token"
)

// Form and query fields read by the engine.
const (
	FieldPoWSolution = "powbox_solution"
	FieldPoWState    = "powbox_state"
	FieldAccessToken = "access_token"
	FieldUserName    = "user_name"
	FieldPassword    = "password"
	FieldState       = "state"
	FieldCodes       = "codes"
	FieldClicked     = "i"
)

// Request is the transport-neutral view of an HTTP request. Adapters fill
// Form only for POST bodies.
type Request struct {
	IP        string
	UserAgent string
	Method    string
	Path      string
	Query     url.Values
	Form      url.Values
	Cookies   map[string]string
}

// Cookie returns the named request cookie or "".
func (r *Request) Cookie(name string) string {
	if r == nil {
		return ""
	}
	return r.Cookies[name]
}

// QueryValue returns the first query value for key.
func (r *Request) QueryValue(key string) string {
	if r == nil {
		return ""
	}
	return r.Query.Get(key)
}

// FormValue returns the first POST form value for key.
func (r *Request) FormValue(key string) string {
	if r == nil {
		return ""
	}
	return r.Form.Get(key)
}

// IsPost reports whether the request carries a form body.
func (r *Request) IsPost() bool {
	return r != nil && r.Method == "POST"
}

// ResponseCookie is a cookie the adapter must set. Adapters apply
// HttpOnly, SameSite=Strict, the configured max age, and Secure on HTTPS.
type ResponseCookie struct {
	Name  string
	Value string
}
