package user

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/keyhash"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/symmetric"
	"github.com/MrEthical07/goGuard/totp"
)

// User is a loaded user. Key is the hashed user name the record is stored
// under.
type User struct {
	Name   string
	Key    string
	Record *Record
}

// HasTwoFactor reports whether the user has a TOTP secret.
func (u *User) HasTwoFactor() bool {
	return u != nil && u.Record != nil && u.Record.TwoFactorSecret != ""
}

// Hashers are the keyed hashes applied to stored credentials.
type Hashers struct {
	UserName *keyhash.Hasher
	Password *keyhash.Hasher
	Session  session.Hashers
}

// DefaultHashers returns the production presets.
func DefaultHashers() Hashers {
	return Hashers{
		UserName: keyhash.MustNew(keyhash.UserName),
		Password: keyhash.MustNew(keyhash.Password),
		Session:  session.DefaultHashers(),
	}
}

// CreateOptions carries optional profile fields for Create.
type CreateOptions struct {
	DisplayName string
	Avatar      []byte
	// TwoFactorSecret is a Base32 TOTP secret; it is stored encrypted.
	TwoFactorSecret string
}

// Service implements sign-in, sign-up, sessions and 2FA over a Repository.
type Service struct {
	repo    Repository
	cipher  *symmetric.Cipher
	hashers Hashers
	totp    *totp.TOTP
	log     logging.Sink
	now     func() time.Time

	// mu serialises read-modify-write cycles on records.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithHashers overrides the credential hash presets.
func WithHashers(h Hashers) Option {
	return func(s *Service) {
		s.hashers = h
	}
}

// WithTOTP overrides the TOTP parameters.
func WithTOTP(t *totp.TOTP) Option {
	return func(s *Service) {
		s.totp = t
	}
}

// WithLogger sets the sink for backend and crypto failures.
func WithLogger(sink logging.Sink) Option {
	return func(s *Service) {
		s.log = logging.OrDiscard(sink)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService returns a Service. cipher encrypts TOTP secrets at rest.
func NewService(repo Repository, cipher *symmetric.Cipher, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		cipher:  cipher,
		hashers: DefaultHashers(),
		totp:    totp.New(totp.Default),
		log:     logging.Discard,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find returns the user named name. Stored keys are salted hashes, so every
// key is compared in turn.
func (s *Service) Find(ctx context.Context, name string) (*User, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	keys, err := s.repo.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if !s.hashers.UserName.CompareString(name, key) {
			continue
		}
		rec, err := s.repo.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return &User{Name: name, Key: key, Record: rec}, nil
	}
	return nil, ErrNotFound
}

// SignInError validates a sign-in attempt. Every failure after the presence
// checks is reported as UserNameOrPasswordWrong, including a correct password
// that no longer meets the strength rules.
func (s *Service) SignInError(ctx context.Context, name, password string) (*User, *FormError) {
	if name == "" {
		return nil, EnterUserName
	}
	if !ValidUserName(name) {
		return nil, UserNameOrPasswordWrong
	}

	u, err := s.Find(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Log("user lookup failed: "+err.Error(), logging.LevelError)
		}
		return nil, UserNameOrPasswordWrong
	}

	if password == "" {
		return nil, EnterPassword
	}
	if !ValidPassword(password) || !StrongEnough(password) {
		return nil, UserNameOrPasswordWrong
	}
	if !s.CheckPassword(u, password) {
		return nil, UserNameOrPasswordWrong
	}
	return u, nil
}

// CheckPassword reports whether password matches the stored hash.
func (s *Service) CheckPassword(u *User, password string) bool {
	if u == nil || u.Record == nil || u.Record.Password == "" {
		return false
	}
	return s.hashers.Password.CompareString(password, u.Record.Password)
}

// Create registers a user. Validation failures are returned as *FormError;
// storage failures wrap ErrBackend.
func (s *Service) Create(ctx context.Context, name, password string, opts CreateOptions) (*User, error) {
	switch {
	case name == "":
		return nil, EnterUserName
	case !ValidUserName(name):
		return nil, InvalidUserName
	case password == "":
		return nil, EnterPassword
	case !ValidPassword(password):
		return nil, InvalidPassword
	case !StrongEnough(password):
		return nil, PasswordTooWeak
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Find(ctx, name); err == nil {
		return nil, UserNameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := s.hashers.Password.HashString(password)
	if err != nil {
		s.log.Log("password hash failed: "+err.Error(), logging.LevelError)
		return nil, HashingFailed
	}
	key, err := s.hashers.UserName.HashString(name)
	if err != nil {
		s.log.Log("user name hash failed: "+err.Error(), logging.LevelError)
		return nil, HashingFailed
	}

	rec := &Record{
		Password:    hashedPassword,
		DisplayName: opts.DisplayName,
		Avatar:      opts.Avatar,
	}
	if opts.TwoFactorSecret != "" {
		if s.cipher == nil {
			s.log.Log("totp secret given but no cipher configured", logging.LevelError)
			return nil, HashingFailed
		}
		enc, err := s.cipher.EncryptString(opts.TwoFactorSecret)
		if err != nil {
			s.log.Log("totp secret encryption failed: "+err.Error(), logging.LevelError)
			return nil, HashingFailed
		}
		rec.TwoFactorSecret = enc
	}

	if err := s.repo.Put(ctx, key, rec); err != nil {
		return nil, err
	}
	return &User{Name: name, Key: key, Record: rec}, nil
}

// CreateSession issues a new session for u and persists it. The plaintext id
// and token are only available in the returned value.
func (s *Service) CreateSession(ctx context.Context, u *User, userAgent, ip string) (session.Issued, error) {
	if u == nil || u.Key == "" {
		return session.Issued{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.repo.Get(ctx, u.Key)
	if err != nil {
		return session.Issued{}, err
	}

	issued, sess, hashedID, err := session.New(rec.Sessions, userAgent, ip, s.hashers.Session, s.now())
	if err != nil {
		s.log.Log("session creation failed: "+err.Error(), logging.LevelError)
		return session.Issued{}, err
	}
	if rec.Sessions == nil {
		rec.Sessions = map[string]session.Record{}
	}
	rec.Sessions[hashedID] = sess

	if err := s.repo.Put(ctx, u.Key, rec); err != nil {
		return session.Issued{}, err
	}
	u.Record = rec
	return issued, nil
}

// Authenticate resolves a (user name, session id, session token) triple.
func (s *Service) Authenticate(ctx context.Context, name, id, token string) (*User, bool) {
	if !ValidUserName(name) || len(id) != session.IDLength || len(token) != session.TokenLength {
		return nil, false
	}
	u, err := s.Find(ctx, name)
	if err != nil {
		return nil, false
	}
	_, rec, ok := session.Find(u.Record.Sessions, id, s.hashers.Session)
	if !ok || !rec.VerifyToken(token, s.hashers.Session) {
		return nil, false
	}
	return u, true
}

// RevokeSession deletes the session id from name's record.
func (s *Service) RevokeSession(ctx context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.Find(ctx, name)
	if err != nil {
		return err
	}
	hashedID, _, ok := session.Find(u.Record.Sessions, id, s.hashers.Session)
	if !ok {
		return fmt.Errorf("%w: session", ErrNotFound)
	}
	delete(u.Record.Sessions, hashedID)
	return s.repo.Put(ctx, u.Key, u.Record)
}

// VerifyTwoFactor checks a TOTP code for name. Codes that are not exactly six
// ASCII digits are rejected before any lookup.
func (s *Service) VerifyTwoFactor(ctx context.Context, name, code string) bool {
	if !sixDigits(code) {
		return false
	}
	u, err := s.Find(ctx, name)
	if err != nil {
		return false
	}
	return s.VerifyUserTwoFactor(u, code)
}

// VerifyUserTwoFactor is VerifyTwoFactor for an already loaded user.
func (s *Service) VerifyUserTwoFactor(u *User, code string) bool {
	if !sixDigits(code) || !u.HasTwoFactor() || s.cipher == nil {
		return false
	}
	secret, err := s.cipher.DecryptString(u.Record.TwoFactorSecret)
	if err != nil {
		s.log.Log("totp secret decryption failed: "+err.Error(), logging.LevelError)
		return false
	}
	return s.totp.Verify(secret, code, s.now())
}

func sixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
