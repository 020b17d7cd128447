package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogrusSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Output: &buf})
	sink := NewLogrus(l).With(map[string]any{"component": "test"})

	sink.Log("hello", LevelNotice)
	sink.Log("boom", LevelError)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["level"] != "info" || first["notice"] != true || first["component"] != "test" {
		t.Fatalf("unexpected notice line: %v", first)
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second["level"] != "error" || second["msg"] != "boom" {
		t.Fatalf("unexpected error line: %v", second)
	}
}

func TestQuietDiscardsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Quiet: true})
	NewLogrus(l).Log("silent", LevelWarn)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestNilSinks(t *testing.T) {
	OrDiscard(nil).Log("x", LevelInfo)
	var s *Logrus
	s.Log("x", LevelInfo)
	if LevelWarn.String() != "WARN" {
		t.Fatalf("unexpected level string %q", LevelWarn.String())
	}
}
