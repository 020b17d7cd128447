package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot goGuard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goGuard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricGateChallenge: 7,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricGateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"goguard_gate_challenge_total 7",
		"goguard_gate_pass_total 0",
		`goguard_gate_latency_seconds_bucket{le="0.005"} 1`,
		`goguard_gate_latency_seconds_bucket{le="+Inf"} 36`,
		"goguard_gate_latency_seconds_count 36",
		"goguard_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsHistogramWhenDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{goGuard.MetricGatePass: 1},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "goguard_gate_latency_seconds") {
		t.Fatalf("unexpected histogram in output:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{goGuard.MetricSignInSuccess: 1},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "goguard_signin_success_total 1") {
		t.Fatalf("unexpected response %d:\n%s", rec.Code, rec.Body.String())
	}
}

func TestRenderFromEngine(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := goGuard.DefaultConfig()
	cfg.User.Secret = "exporter-secret"
	cfg.Captcha.Enabled = false
	cfg.Log.Quiet = true
	engine, err := goGuard.New().WithConfig(cfg).WithRedis(rdb).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	engine.CheckRequest(context.Background(), &goGuard.Request{IP: "203.0.113.7"})
	if out := New(engine).Render(); !strings.Contains(out, "goguard_gate_challenge_total 1") {
		t.Fatalf("expected challenge counter, got:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricGatePass:       1000,
				goGuard.MetricGateChallenge:  400,
				goGuard.MetricPoWSuccess:     380,
				goGuard.MetricSignInSuccess:  80,
				goGuard.MetricSessionCreated: 80,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricGateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	for b.Loop() {
		_ = exp.Render()
	}
}
