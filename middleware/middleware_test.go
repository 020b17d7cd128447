package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestEngine(t *testing.T, mutate func(*goGuard.Config)) (*goGuard.Engine, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := goGuard.DefaultConfig()
	cfg.User.Secret = "middleware-secret"
	cfg.PoW.Difficulty = 1
	cfg.Captcha.Enabled = false
	cfg.Log.Quiet = true
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := goGuard.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if _, ok := goGuard.RequestFromContext(r.Context()); !ok {
			http.Error(w, "missing request", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateChallengeThenPass(t *testing.T) {
	engine, done := newTestEngine(t, nil)
	defer done()

	var called bool
	h := Gate(engine, Options{CookieMaxAge: time.Hour})(okHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 challenge, got %d", rec.Code)
	}
	var body struct {
		Error string        `json:"error"`
		PoW   pow.Challenge `json:"pow"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "challenge_required" || body.PoW.Token == "" {
		t.Fatalf("unexpected body: %+v", body)
	}

	solution, err := pow.Solve(context.Background(), body.PoW.Challenge, body.PoW.Difficulty)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	form := url.Values{goGuard.FieldPoWSolution: {solution}, goGuard.FieldPoWState: {body.PoW.Token}}
	post := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, post)
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected pass, got %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != goGuard.CookieChallenge {
		t.Fatalf("expected challenge cookie, got %+v", cookies)
	}
	c := cookies[0]
	if !c.HttpOnly || c.SameSite != http.SameSiteStrictMode || c.Secure || c.MaxAge != 3600 {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}

	called = false
	get := httptest.NewRequest(http.MethodGet, "/", nil)
	get.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected cookie to pass, got %d", rec.Code)
	}
}

func TestGateAndLoginShareOnePoW(t *testing.T) {
	engine, done := newTestEngine(t, nil)
	defer done()
	ctx := context.Background()
	if _, err := engine.CreateUser(ctx, "alice", "Correct-Horse-42", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	var step goGuard.LoginStep
	login := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, _ := goGuard.RequestFromContext(r.Context())
		res := engine.Login(r.Context(), req)
		step = res.Step
		WriteCookies(w, r, res.Cookies, time.Hour)
	})
	h := Gate(engine, Options{CookieMaxAge: time.Hour})(login)

	ch, err := engine.IssuePoW(ctx)
	if err != nil {
		t.Fatalf("IssuePoW: %v", err)
	}
	solution, err := pow.Solve(ctx, ch.Challenge, ch.Difficulty)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	form := url.Values{
		goGuard.FieldUserName:    {"alice"},
		goGuard.FieldPassword:    {"Correct-Horse-42"},
		goGuard.FieldPoWSolution: {solution},
		goGuard.FieldPoWState:    {ch.Token},
	}
	post := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post)

	if step != goGuard.StepDone {
		t.Fatalf("expected login to finish on the gate's PoW, got %v", step)
	}
	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	if !names[goGuard.CookieChallenge] || !names[goGuard.CookieSession] {
		t.Fatalf("expected challenge and session cookies, got %v", names)
	}
}

func TestGateRateLimited(t *testing.T) {
	engine, done := newTestEngine(t, nil)
	defer done()

	var called bool
	h := Gate(engine, Options{})(okHandler(&called))
	var last int
	for range 16 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last)
	}
}

func TestGateAccessDenied(t *testing.T) {
	engine, done := newTestEngine(t, func(cfg *goGuard.Config) {
		cfg.Access.Token = "letmein"
		cfg.RateLimit.Enabled = false
	})
	defer done()

	var called bool
	h := Gate(engine, Options{})(okHandler(&called))

	ch, err := engine.IssuePoW(context.Background())
	if err != nil {
		t.Fatalf("IssuePoW: %v", err)
	}
	solution, _ := pow.Solve(context.Background(), ch.Challenge, ch.Difficulty)
	form := url.Values{
		goGuard.FieldPoWSolution: {solution},
		goGuard.FieldPoWState:    {ch.Token},
		goGuard.FieldAccessToken: {"wrong"},
	}
	post := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post)

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "access_denied") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	engine, done := newTestEngine(t, nil)
	defer done()

	var called bool
	h := RequireSession(engine, Options{})(okHandler(&called))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := ClientIP(r, false); got != "192.0.2.1" {
		t.Fatalf("untrusted proxy: got %q", got)
	}
	if got := ClientIP(r, true); got != "203.0.113.9" {
		t.Fatalf("trusted proxy: got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "garbage")
	r.Header.Set("X-Real-IP", "198.51.100.4")
	if got := ClientIP(r, true); got != "198.51.100.4" {
		t.Fatalf("X-Real-IP fallback: got %q", got)
	}
}

func TestNewRequestIgnoresBodyOnGet(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/login?state=abc", nil)
	r.AddCookie(&http.Cookie{Name: goGuard.CookieSession, Value: "tok"})

	req := NewRequest(r, false)
	if req.Form != nil || req.QueryValue(goGuard.FieldState) != "abc" || req.Cookie(goGuard.CookieSession) != "tok" {
		t.Fatalf("unexpected request: %+v", req)
	}
}
