package goGuard

import "testing"

func TestBeamID(t *testing.T) {
	a := BeamID("alice", "203.0.113.7")
	if len(a) != BeamIDLength {
		t.Fatalf("expected %d chars, got %q", BeamIDLength, a)
	}
	if b := BeamID("alice", "203.0.113.7"); b != a {
		t.Fatalf("expected stable id, got %q and %q", a, b)
	}
	if c := BeamID("alice203.0.113.7"); c != a {
		t.Fatalf("parts must be concatenated, got %q and %q", a, c)
	}
	if d := BeamID("bob", "203.0.113.7"); d == a {
		t.Fatal("expected distinct inputs to produce distinct ids")
	}
}
