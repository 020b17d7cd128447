// Package pow issues and verifies proof-of-work challenges.
//
// A challenge is a random string stored as a "pow" state entry. The client
// must find a solution such that sha256(challenge ‖ solution), in hex, starts
// with difficulty zero nibbles. Verification costs one hash.
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/state"
)

const (
	// ChallengeLength is the length of issued challenge strings.
	ChallengeLength = 32
	// DefaultDifficulty is the number of leading zero hex digits required by default.
	DefaultDifficulty = 5
	// MaxDifficulty caps difficulty at the length of a hex SHA-256 digest.
	MaxDifficulty = sha256.Size * 2
)

// Challenge is handed to the client: solve Challenge, echo Token back.
type Challenge struct {
	Challenge  string `json:"challenge"`
	Token      string `json:"state"`
	Difficulty int    `json:"difficulty"`
}

// Engine issues and verifies challenges through a state store.
type Engine struct {
	store      *state.Store
	difficulty int
	log        logging.Sink
}

// New returns an Engine. A non-positive difficulty uses DefaultDifficulty.
func New(store *state.Store, difficulty int, sink logging.Sink) *Engine {
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}
	return &Engine{store: store, difficulty: difficulty, log: logging.OrDiscard(sink)}
}

// Difficulty returns the engine's default difficulty.
func (e *Engine) Difficulty() int {
	return e.difficulty
}

// Generate creates a challenge and its state token.
func (e *Engine) Generate(ctx context.Context) (Challenge, error) {
	challenge, err := internal.RandomString(ChallengeLength, internal.AlphaNumeric)
	if err != nil {
		return Challenge{}, err
	}
	token, err := e.store.Create(ctx, state.KindPoW, map[string]any{"challenge": challenge})
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{Challenge: challenge, Token: token, Difficulty: e.difficulty}, nil
}

// Verify consumes token and reports whether solution solves its challenge at
// the given difficulty. The token is spent whether or not the solution holds.
// A non-positive difficulty uses the engine default.
func (e *Engine) Verify(ctx context.Context, solution, token string, difficulty int) bool {
	if solution == "" || token == "" {
		return false
	}
	if difficulty <= 0 {
		difficulty = e.difficulty
	}

	entry, err := e.store.ReadKind(ctx, token, state.KindPoW, true)
	if err != nil {
		return false
	}
	challenge := entry.String("challenge")
	if challenge == "" {
		e.log.Log("pow state without challenge", logging.LevelWarn)
		return false
	}
	return Check(challenge, solution, difficulty)
}

// Check reports whether sha256(challenge ‖ solution) has at least difficulty
// leading zero hex digits.
func Check(challenge, solution string, difficulty int) bool {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return false
	}
	sum := sha256.Sum256([]byte(challenge + solution))
	digest := hex.EncodeToString(sum[:])
	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}

// Solve brute-forces a decimal-counter solution. It is the reference client
// used by tests and the load generator.
func Solve(ctx context.Context, challenge string, difficulty int) (string, error) {
	for n := uint64(0); ; n++ {
		if n&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		candidate := strconv.FormatUint(n, 10)
		if Check(challenge, candidate, difficulty) {
			return candidate, nil
		}
	}
}
