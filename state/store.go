package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/redis/go-redis/v9"
)

// TokenLength is the fixed length of every state token.
const TokenLength = 32

// Kinds with entries in the default TTL table.
const (
	KindPoW             = "pow"
	KindBrowserChecked  = "browser_checked"
	KindSession         = "session"
	KindCaptchaOneClick = "captcha_oneclick"
	KindTwoFactor       = "twofa"
)

// Payload fields owned by the store and stripped on read.
const (
	fieldKind      = "state"
	fieldTime      = "time"
	fieldSingleUse = "single_use"
)

var (
	// ErrNotFound is returned for malformed, unknown, expired, or undecodable tokens.
	ErrNotFound = errors.New("state not found")
	// ErrBackend is returned when an entry cannot be created.
	ErrBackend = errors.New("state backend unavailable")
)

// DefaultTTL applies to kinds missing from the TTL table.
const DefaultTTL = 10 * time.Minute

// DefaultTTLs is the kind to lifetime table.
func DefaultTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		KindPoW:             3 * time.Minute,
		KindBrowserChecked:  time.Hour,
		KindSession:         365 * 24 * time.Hour,
		KindCaptchaOneClick: 10 * time.Minute,
		KindTwoFactor:       10 * time.Minute,
	}
}

// Entry is a decoded state payload.
type Entry struct {
	Kind string
	Data map[string]any
}

// String returns Data[key] when it is a string.
func (e Entry) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Ints returns Data[key] as ints. JSON numbers arrive as float64; anything
// that is not a whole number is skipped.
func (e Entry) Ints(key string) []int {
	raw, ok := e.Data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok || f != float64(int(f)) {
			continue
		}
		out = append(out, int(f))
	}
	return out
}

// Store maps opaque tokens to JSON payloads in Redis under "<prefix>:<token>".
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	ttls       map[string]time.Duration
	defaultTTL time.Duration
	log        logging.Sink
	now        func() time.Time
}

// Option customizes a [Store].
type Option func(*Store)

// WithPrefix overrides the "state" key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets the lifetime for one kind.
func WithTTL(kind string, ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttls[kind] = ttl
		}
	}
}

// WithDefaultTTL sets the lifetime for kinds missing from the table.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithLogger sets the log sink.
func WithLogger(sink logging.Sink) Option {
	return func(s *Store) {
		s.log = logging.OrDiscard(sink)
	}
}

// WithClock replaces time.Now for the embedded creation time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store backed by redisClient.
func New(redisClient redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:      redisClient,
		prefix:     "state",
		ttls:       DefaultTTLs(),
		defaultTTL: DefaultTTL,
		log:        logging.Discard,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime used for kind.
func (s *Store) TTL(kind string) time.Duration {
	if ttl, ok := s.ttls[kind]; ok {
		return ttl
	}
	return s.defaultTTL
}

func (s *Store) key(token string) string {
	return s.prefix + ":" + token
}

// Create stores payload under a fresh token and returns the token.
//
// Each candidate token is WATCHed, checked with EXISTS, and written with
// SETEX inside MULTI. A collision or a concurrent writer on the same key
// makes the loop draw another token, so two creators can never share one.
func (s *Store) Create(ctx context.Context, kind string, payload map[string]any) (string, error) {
	doc := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		doc[k] = v
	}
	doc[fieldKind] = kind
	doc[fieldTime] = s.now().Unix()

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode state payload: %w", err)
	}
	ttl := s.TTL(kind)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		token, err := internal.RandomString(TokenLength, internal.AlphaNumeric)
		if err != nil {
			s.log.Log("state token generation failed: "+err.Error(), logging.LevelError)
			return "", err
		}
		key := s.key(token)

		created := false
		err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetEx(ctx, key, data, ttl)
				return nil
			})
			if err == nil {
				created = true
			}
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			s.log.Log("state creation transaction lost a race, retrying", logging.LevelNotice)
			continue
		case err != nil:
			s.log.Log("state creation failed: "+err.Error(), logging.LevelError)
			return "", fmt.Errorf("%w: %v", ErrBackend, err)
		case created:
			return token, nil
		}
	}
}

// Read returns the entry for token. A single-use read deletes the entry in
// the same MULTI as the GET. Every failure is reported as ErrNotFound.
func (s *Store) Read(ctx context.Context, token string, singleUse bool) (Entry, error) {
	if !ValidToken(token) {
		return Entry{}, ErrNotFound
	}
	key := s.key(token)

	var (
		data []byte
		err  error
	)
	if singleUse {
		var get *redis.StringCmd
		_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			get = pipe.Get(ctx, key)
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil || errors.Is(err, redis.Nil) {
			data, err = get.Bytes()
		}
	} else {
		data, err = s.redis.Get(ctx, key).Bytes()
	}

	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Log("state read failed: "+err.Error(), logging.LevelError)
		}
		return Entry{}, ErrNotFound
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Log("state payload could not be decoded", logging.LevelError)
		return Entry{}, ErrNotFound
	}

	kind, _ := doc[fieldKind].(string)
	delete(doc, fieldKind)
	delete(doc, fieldTime)
	delete(doc, fieldSingleUse)

	return Entry{Kind: kind, Data: doc}, nil
}

// ReadKind is Read plus a kind check; a kind mismatch is ErrNotFound.
func (s *Store) ReadKind(ctx context.Context, token, kind string, singleUse bool) (Entry, error) {
	entry, err := s.Read(ctx, token, singleUse)
	if err != nil {
		return Entry{}, err
	}
	if entry.Kind != kind {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Delete removes token. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if !ValidToken(token) {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// ValidToken reports whether token has the fixed length and alphabet.
func ValidToken(token string) bool {
	return len(token) == TokenLength && internal.IsAlphaNumeric(token)
}
