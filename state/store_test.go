package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return New(rdb, opts...), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestCreateReadSingleUse(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	token, err := store.Create(ctx, KindPoW, map[string]any{"challenge": "abc123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !ValidToken(token) {
		t.Fatalf("invalid token %q", token)
	}

	entry, err := store.Read(ctx, token, true)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if entry.Kind != KindPoW || entry.String("challenge") != "abc123" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, ok := entry.Data["state"]; ok {
		t.Fatal("kind field must be stripped")
	}
	if _, ok := entry.Data["time"]; ok {
		t.Fatal("time field must be stripped")
	}

	if _, err := store.Read(ctx, token, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second read: expected ErrNotFound, got %v", err)
	}
}

func TestReadWithoutSingleUseKeepsEntry(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	token, _ := store.Create(ctx, KindSession, map[string]any{"user_name": "alice"})
	for i := 0; i < 3; i++ {
		if _, err := store.Read(ctx, token, false); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
}

func TestExpiredTokenNotFound(t *testing.T) {
	store, mr, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	token, _ := store.Create(ctx, KindPoW, map[string]any{"challenge": "x"})
	if ttl := mr.TTL("state:" + token); ttl != 3*time.Minute {
		t.Fatalf("expected pow ttl 3m, got %v", ttl)
	}

	mr.FastForward(3*time.Minute + time.Second)
	if _, err := store.Read(ctx, token, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestTTLTable(t *testing.T) {
	store, mr, done := newTestStore(t, WithTTL("custom", 42*time.Second))
	defer done()
	ctx := context.Background()

	cases := map[string]time.Duration{
		KindBrowserChecked: time.Hour,
		KindSession:        365 * 24 * time.Hour,
		"custom":           42 * time.Second,
		"anything_else":    DefaultTTL,
	}
	for kind, want := range cases {
		token, err := store.Create(ctx, kind, nil)
		if err != nil {
			t.Fatalf("Create %s: %v", kind, err)
		}
		if got := mr.TTL("state:" + token); got != want {
			t.Fatalf("%s: expected ttl %v, got %v", kind, want, got)
		}
	}
}

func TestMalformedTokensRejectedBeforeStore(t *testing.T) {
	store, mr, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	bad := []string{"", "short", strings.Repeat("a", 31), strings.Repeat("a", 33), strings.Repeat("-", 32)}
	for _, token := range bad {
		mr.Set("state:"+token, `{"state":"pow"}`)
		if _, err := store.Read(ctx, token, false); !errors.Is(err, ErrNotFound) {
			t.Fatalf("token %q: expected ErrNotFound, got %v", token, err)
		}
	}
}

func TestCorruptPayloadNotFound(t *testing.T) {
	store, mr, done := newTestStore(t)
	defer done()

	token := strings.Repeat("b", TokenLength)
	mr.Set("state:"+token, "{not json")
	if _, err := store.Read(context.Background(), token, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadKindMismatch(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	token, _ := store.Create(ctx, KindTwoFactor, map[string]any{"user_name": "bob"})
	if _, err := store.ReadKind(ctx, token, KindCaptchaOneClick, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	entry, err := store.ReadKind(ctx, token, KindTwoFactor, true)
	if err != nil || entry.String("user_name") != "bob" {
		t.Fatalf("ReadKind = %+v, %v", entry, err)
	}
}

func TestConcurrentCreatesUnique(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	const n = 64
	tokens := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := store.Create(ctx, KindPoW, map[string]any{"challenge": "c"})
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			tokens <- token
		}()
	}
	wg.Wait()
	close(tokens)

	seen := map[string]bool{}
	for token := range tokens {
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestEntryInts(t *testing.T) {
	e := Entry{Data: map[string]any{"correct_images": []any{float64(2), float64(4), "x", 1.5}}}
	got := e.Ints("correct_images")
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("unexpected ints %v", got)
	}
	if e.Ints("missing") != nil {
		t.Fatal("missing key must be nil")
	}
}

func TestDelete(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	token, _ := store.Create(ctx, KindSession, nil)
	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Read(ctx, token, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "bad"); err != nil {
		t.Fatalf("Delete malformed: %v", err)
	}
}
