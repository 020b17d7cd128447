package session

import (
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/keyhash"
	"github.com/MrEthical07/goGuard/useragent"
)

const (
	// IDLength is the plaintext session id length.
	IDLength = 6
	// TokenLength is the plaintext session token length.
	TokenLength = 32

	maxIDAttempts = 64
)

var (
	// ErrHash is returned when an id or token cannot be hashed.
	ErrHash = errors.New("session hash failed")
	// ErrIDSpace is returned when no unused id was found.
	ErrIDSpace = errors.New("session id space exhausted")
)

// Hashers groups the keyed hashes used for ids and tokens.
type Hashers struct {
	ID    *keyhash.Hasher
	Token *keyhash.Hasher
}

// DefaultHashers returns the SessionID and SessionToken presets.
func DefaultHashers() Hashers {
	return Hashers{
		ID:    keyhash.MustNew(keyhash.SessionID),
		Token: keyhash.MustNew(keyhash.SessionToken),
	}
}

// New creates a session for a client. sessions is the owner's existing map,
// keyed by hashed id; it is only read. The caller stores the returned record
// under the returned hashed id.
func New(sessions map[string]Record, userAgent, ip string, h Hashers, now time.Time) (Issued, Record, string, error) {
	ua := useragent.Parse(userAgent)

	token, err := internal.RandomString(TokenLength, internal.AlphaNumeric)
	if err != nil {
		return Issued{}, Record{}, "", err
	}
	hashedToken, err := h.Token.HashString(token)
	if err != nil {
		return Issued{}, Record{}, "", errors.Join(ErrHash, err)
	}

	id, err := newID(sessions, h)
	if err != nil {
		return Issued{}, Record{}, "", err
	}
	hashedID, err := h.ID.HashString(id)
	if err != nil {
		return Issued{}, Record{}, "", errors.Join(ErrHash, err)
	}

	rec := Record{
		Token:   hashedToken,
		OS:      ua.OS,
		Browser: ua.Browser,
		IP:      ip,
		Time:    now.Unix(),
	}
	return Issued{ID: id, Token: token}, rec, hashedID, nil
}

// newID draws ids until one matches no existing hashed id.
func newID(sessions map[string]Record, h Hashers) (string, error) {
	for range maxIDAttempts {
		id, err := internal.RandomString(IDLength, internal.AlphaNumeric)
		if err != nil {
			return "", err
		}
		if _, _, taken := Find(sessions, id, h); !taken {
			return id, nil
		}
	}
	return "", ErrIDSpace
}

// Find returns the stored session whose hashed id matches id.
func Find(sessions map[string]Record, id string, h Hashers) (string, Record, bool) {
	if id == "" {
		return "", Record{}, false
	}
	for hashed, rec := range sessions {
		if h.ID.CompareString(id, hashed) {
			return hashed, rec, true
		}
	}
	return "", Record{}, false
}

// VerifyToken reports whether token is the session's token.
func (r Record) VerifyToken(token string, h Hashers) bool {
	if len(token) != TokenLength || r.Token == "" {
		return false
	}
	return h.Token.CompareString(token, r.Token)
}
