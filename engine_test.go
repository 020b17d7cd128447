package goGuard

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"net/url"
	"testing"

	"github.com/MrEthical07/goGuard/captcha"
	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/keyhash"
	"github.com/MrEthical07/goGuard/pow"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/state"
	"github.com/MrEthical07/goGuard/user"
	"github.com/alicebob/miniredis/v2"
	"github.com/disintegration/imaging"
	"github.com/redis/go-redis/v9"
)

const (
	testSecret    = "engine-test-secret"
	testIP        = "203.0.113.7"
	alicePassword = "Correct-Horse-42"
	chromeUA      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
)

func fastHashers() user.Hashers {
	return user.Hashers{
		UserName: keyhash.MustNew(keyhash.Options{Iterations: 10, HashLength: 8, SaltLength: 8, Encode: true}),
		Password: keyhash.MustNew(keyhash.Options{Iterations: 10, HashLength: 8, SaltLength: 32, Encode: true}),
		Session: session.Hashers{
			ID:    keyhash.MustNew(keyhash.Options{Iterations: 10, HashLength: 8, SaltLength: 8, Encode: true}),
			Token: keyhash.MustNew(keyhash.Options{Iterations: 10, HashLength: 8, SaltLength: 16, Encode: true}),
		},
	}
}

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(40, 30, c)); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func testDataset(t *testing.T) *captcha.Dataset {
	t.Helper()
	return captcha.NewStaticDataset([]captcha.Category{
		{Name: "smiling dog", Images: [][]byte{pngBytes(t, color.NRGBA{R: 255, A: 255})}},
		{Name: "cat", Images: [][]byte{
			pngBytes(t, color.NRGBA{G: 255, A: 255}),
			pngBytes(t, color.NRGBA{B: 255, A: 255}),
		}},
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.User.Secret = testSecret
	cfg.PoW.Difficulty = 1
	cfg.Log.Quiet = true
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config), extra ...func(*Builder)) (*Engine, *miniredis.Miniredis, redis.UniversalClient, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserHashers(fastHashers()).
		WithCaptchaDataset(testDataset(t))
	for _, fn := range extra {
		fn(b)
	}
	engine, err := b.Build()
	if err != nil {
		_ = rdb.Close()
		mr.Close()
		t.Fatalf("build engine: %v", err)
	}
	return engine, mr, rdb, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// solvedForm issues and solves a proof-of-work and returns the POST fields
// carrying it.
func solvedForm(t *testing.T, e *Engine) url.Values {
	t.Helper()
	ctx := context.Background()
	ch, err := e.IssuePoW(ctx)
	if err != nil {
		t.Fatalf("IssuePoW: %v", err)
	}
	solution, err := pow.Solve(ctx, ch.Challenge, ch.Difficulty)
	if err != nil {
		t.Fatalf("pow.Solve: %v", err)
	}
	return url.Values{FieldPoWSolution: {solution}, FieldPoWState: {ch.Token}}
}

// browserCookie stores a browser_checked entry for ip, as a solved challenge
// would.
func browserCookie(t *testing.T, e *Engine, ip string) string {
	t.Helper()
	token, err := e.states.Create(context.Background(), state.KindBrowserChecked, map[string]any{
		"ip": internal.HashBindingValue(ip),
	})
	if err != nil {
		t.Fatalf("create browser_checked: %v", err)
	}
	return token
}

func cookieValue(cookies []ResponseCookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestBuilderRequiresRedis(t *testing.T) {
	cfg := testConfig()
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuilderRequiresSecret(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.User.Secret = ""
	_, err = New().WithConfig(cfg).WithRedis(rdb).Build()
	if !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithCaptchaDataset(testDataset(t))
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.PoW.Difficulty = 0
	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEngineConfigIsCopy(t *testing.T) {
	e, _, _, done := newTestEngine(t, nil)
	defer done()

	cfg := e.Config()
	cfg.Access.ExemptPaths[0] = "/changed"
	if e.Config().Access.ExemptPaths[0] != "/robots.txt" {
		t.Fatal("Config must return a copy")
	}
}

func TestHealth(t *testing.T) {
	e, mr, _, done := newTestEngine(t, nil)
	defer done()

	if h := e.Health(context.Background()); !h.RedisAvailable {
		t.Fatal("expected redis available")
	}
	mr.SetError("down")
	if h := e.Health(context.Background()); h.RedisAvailable {
		t.Fatal("expected redis unavailable")
	}
	mr.SetError("")
}

func TestSecurityReport(t *testing.T) {
	e, _, _, done := newTestEngine(t, func(cfg *Config) {
		cfg.Access.Token = "letmein"
	})
	defer done()

	r := e.SecurityReport()
	if r.PoWDifficulty != 1 || !r.CaptchaEnabled || !r.RateLimitingActive || !r.AccessGateActive {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.ReputationActive || r.EventsEnabled {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	if res := e.CheckRequest(context.Background(), &Request{}); res.Decision != GateDenied {
		t.Fatalf("expected denied, got %v", res.Decision)
	}
	if res := e.Login(context.Background(), &Request{}); !errors.Is(res.Err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", res.Err)
	}
	if _, err := e.Authenticate(context.Background(), &Request{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
}
