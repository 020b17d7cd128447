package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/state"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestEngine(t *testing.T, difficulty int) (*Engine, *state.Store, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := state.New(rdb)

	return New(store, difficulty, nil), store, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestCheckMatchesDigestPrefix(t *testing.T) {
	for i := 0; i < 200; i++ {
		solution := strings.Repeat("x", i%7) + string(rune('a'+i%26))
		sum := sha256.Sum256([]byte("abc123" + solution))
		digest := hex.EncodeToString(sum[:])
		zeros := len(digest) - len(strings.TrimLeft(digest, "0"))

		for d := 0; d <= 3; d++ {
			if got, want := Check("abc123", solution, d), zeros >= d; got != want {
				t.Fatalf("Check(%q, %d) = %v, want %v (digest %s)", solution, d, got, want, digest)
			}
		}
	}
}

func TestVerifyDifficultyFiveScenario(t *testing.T) {
	engine, store, done := newTestEngine(t, 5)
	defer done()
	ctx := context.Background()

	token, err := store.Create(ctx, state.KindPoW, map[string]any{"challenge": "abc123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	solveCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	solution, err := Solve(solveCtx, "abc123", 5)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	sum := sha256.Sum256([]byte("abc123" + solution))
	if !strings.HasPrefix(hex.EncodeToString(sum[:]), "00000") {
		t.Fatal("solver returned a non-solution")
	}
	if !engine.Verify(ctx, solution, token, 5) {
		t.Fatal("valid solution rejected")
	}
	if engine.Verify(ctx, solution, token, 5) {
		t.Fatal("token must be consumed after verification")
	}
}

func TestVerifyRejectsWrongSolution(t *testing.T) {
	engine, _, done := newTestEngine(t, 3)
	defer done()
	ctx := context.Background()

	ch, err := engine.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ch.Challenge) != ChallengeLength || !state.ValidToken(ch.Token) {
		t.Fatalf("unexpected challenge %+v", ch)
	}

	wrong := ""
	for n := 0; ; n++ {
		candidate := "w" + string(rune('a'+n%26)) + strings.Repeat("z", n/26)
		if !Check(ch.Challenge, candidate, 3) {
			wrong = candidate
			break
		}
	}
	if engine.Verify(ctx, wrong, ch.Token, 3) {
		t.Fatal("wrong solution accepted")
	}
}

func TestVerifyRoundTripWithDefaultDifficulty(t *testing.T) {
	engine, _, done := newTestEngine(t, 2)
	defer done()
	ctx := context.Background()

	ch, _ := engine.Generate(ctx)
	solution, err := Solve(ctx, ch.Challenge, ch.Difficulty)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !engine.Verify(ctx, solution, ch.Token, 0) {
		t.Fatal("expected success with engine default difficulty")
	}
}

func TestVerifyRejectsForeignKinds(t *testing.T) {
	engine, store, done := newTestEngine(t, 1)
	defer done()
	ctx := context.Background()

	token, _ := store.Create(ctx, state.KindCaptchaOneClick, map[string]any{"challenge": "abc"})
	solution, _ := Solve(ctx, "abc", 1)
	if engine.Verify(ctx, solution, token, 1) {
		t.Fatal("non-pow state accepted")
	}
	if engine.Verify(ctx, "", token, 1) || engine.Verify(ctx, solution, "", 1) {
		t.Fatal("empty inputs accepted")
	}
}

func TestSolveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Solve(ctx, "abc", MaxDifficulty); err == nil {
		t.Fatal("expected context error")
	}
}
