package session

import (
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/keyhash"
)

func fastHashers() Hashers {
	return Hashers{
		ID:    keyhash.MustNew(keyhash.Options{Iterations: 10, HashLength: 8, SaltLength: 8, Encode: true}),
		Token: keyhash.MustNew(keyhash.Options{Iterations: 10, HashLength: 8, SaltLength: 16, Encode: true}),
	}
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"

func TestNewAndVerify(t *testing.T) {
	h := fastHashers()
	now := time.Unix(1_700_000_000, 0)

	issued, rec, hashedID, err := New(nil, chromeUA, "203.0.113.7", h, now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(issued.ID) != IDLength || !internal.IsAlphaNumeric(issued.ID) {
		t.Fatalf("bad id %q", issued.ID)
	}
	if len(issued.Token) != TokenLength || !internal.IsAlphaNumeric(issued.Token) {
		t.Fatalf("bad token %q", issued.Token)
	}
	if rec.Token == issued.Token || hashedID == issued.ID {
		t.Fatal("plaintext must not be stored")
	}
	if rec.OS != "Windows" || rec.Browser != "Chrome" || rec.IP != "203.0.113.7" || rec.Time != now.Unix() {
		t.Fatalf("unexpected record %+v", rec)
	}

	sessions := map[string]Record{hashedID: rec}
	gotHash, got, ok := Find(sessions, issued.ID, h)
	if !ok || gotHash != hashedID {
		t.Fatal("Find did not locate the session")
	}
	if !got.VerifyToken(issued.Token, h) {
		t.Fatal("token must verify")
	}
	if got.VerifyToken(issued.Token[:31]+"x", h) && issued.Token[31] != 'x' {
		t.Fatal("altered token must not verify")
	}
	if got.VerifyToken("short", h) {
		t.Fatal("short token must not verify")
	}

	if _, _, ok := Find(sessions, "zzzzzz", h); ok && issued.ID != "zzzzzz" {
		t.Fatal("unknown id found")
	}
	if _, _, ok := Find(sessions, "", h); ok {
		t.Fatal("empty id found")
	}
}

func TestNewAvoidsExistingIDs(t *testing.T) {
	h := fastHashers()
	sessions := map[string]Record{}
	ids := map[string]bool{}
	for i := 0; i < 20; i++ {
		issued, rec, hashedID, err := New(sessions, "", "", h, time.Now())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if ids[issued.ID] {
			t.Fatalf("duplicate id %q", issued.ID)
		}
		ids[issued.ID] = true
		sessions[hashedID] = rec
	}
}

func TestDefaultHashers(t *testing.T) {
	h := DefaultHashers()
	if h.ID.Options() != keyhash.SessionID || h.Token.Options() != keyhash.SessionToken {
		t.Fatal("unexpected presets")
	}
}
