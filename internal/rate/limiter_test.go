package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis, *fakeClock, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	cfg := DefaultConfig()
	cfg.Now = clock.Now
	return New(rdb, cfg), mr, clock, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestSixteenthRequestLimited(t *testing.T) {
	l, _, _, done := newTestLimiter(t)
	defer done()
	ctx := context.Background()

	for i := 1; i <= 15; i++ {
		d, err := l.Allow(ctx, "203.0.113.7")
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if d.Limited {
			t.Fatalf("request %d must not be limited", i)
		}
		if d.Recent != i {
			t.Fatalf("request %d: recent = %d", i, d.Recent)
		}
	}

	d, err := l.Allow(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Allow 16: %v", err)
	}
	if !d.Limited {
		t.Fatal("16th request must be limited")
	}
	if err := l.Check(ctx, "203.0.113.7"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if d, _ := l.Allow(ctx, "198.51.100.1"); d.Limited {
		t.Fatal("other clients must have their own window")
	}
}

func TestListIsCapped(t *testing.T) {
	l, mr, _, done := newTestLimiter(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		if _, err := l.Allow(ctx, "203.0.113.7"); err != nil {
			t.Fatalf("Allow: %v", err)
		}
	}
	items, err := mr.List(DefaultPrefix + ":" + internal.IPFingerprint("203.0.113.7"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != DefaultCapacity {
		t.Fatalf("expected %d stored timestamps, got %d", DefaultCapacity, len(items))
	}
}

func TestWindowSlides(t *testing.T) {
	l, _, clock, done := newTestLimiter(t)
	defer done()
	ctx := context.Background()

	for i := 0; i < 16; i++ {
		_, _ = l.Allow(ctx, "203.0.113.7")
	}
	clock.now = clock.now.Add(11 * time.Second)

	d, err := l.Allow(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Limited || d.Recent != 1 {
		t.Fatalf("old timestamps must fall out of the window: %+v", d)
	}
}

func TestInvalidIPUsesDefaultBucket(t *testing.T) {
	l, mr, _, done := newTestLimiter(t)
	defer done()

	if _, err := l.Allow(context.Background(), "not-an-ip"); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !mr.Exists(DefaultPrefix + ":" + internal.DefaultIPFingerprint) {
		t.Fatal("expected default bucket key")
	}
}

func TestFailOpen(t *testing.T) {
	l, mr, _, done := newTestLimiter(t)
	defer done()
	mr.Close()

	d, err := l.Allow(context.Background(), "203.0.113.7")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if d.Limited {
		t.Fatal("backend failure must not limit")
	}
	if err := l.Check(context.Background(), "203.0.113.7"); err != nil {
		t.Fatalf("Check must fail open, got %v", err)
	}
}

func TestReset(t *testing.T) {
	l, mr, _, done := newTestLimiter(t)
	defer done()
	ctx := context.Background()

	_, _ = l.Allow(ctx, "203.0.113.7")
	if err := l.Reset(ctx, "203.0.113.7"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys, got %v", mr.Keys())
	}
}
