// Package logging is the log(message, level) sink consumed by every goGuard
// component, with a logrus-backed implementation.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level orders log severity. Values match the historic 1..4 numbering.
type Level int

const (
	LevelInfo Level = iota + 1
	LevelNotice
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelNotice:
		return "NOTICE"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Sink receives log lines. Implementations must not block the caller for long
// and must never panic back into it.
type Sink interface {
	Log(message string, level Level)
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Log(string, Level) {}

// OrDiscard returns s, or [Discard] when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Logrus adapts a logrus logger or entry to [Sink].
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus wraps l. A nil logger uses logrus.StandardLogger().
func NewLogrus(l *logrus.Logger) *Logrus {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Logrus{entry: logrus.NewEntry(l)}
}

// NewLogrusEntry wraps an entry that already carries fields.
func NewLogrusEntry(e *logrus.Entry) *Logrus {
	return &Logrus{entry: e}
}

// With returns a sink that adds fields to every line.
func (s *Logrus) With(fields logrus.Fields) *Logrus {
	return &Logrus{entry: s.entry.WithFields(fields)}
}

// Entry exposes the underlying entry for callers that log structured fields directly.
func (s *Logrus) Entry() *logrus.Entry {
	return s.entry
}

func (s *Logrus) Log(message string, level Level) {
	if s == nil || s.entry == nil {
		return
	}
	defer func() { _ = recover() }()

	switch level {
	case LevelNotice:
		s.entry.WithField("notice", true).Info(message)
	case LevelWarn:
		s.entry.Warn(message)
	case LevelError:
		s.entry.Error(message)
	default:
		s.entry.Info(message)
	}
}

// Options configure [New].
type Options struct {
	Level  string
	Format string
	Quiet  bool
	Output io.Writer
}

// New builds a logrus logger from options. Unknown levels fall back to info.
func New(opts Options) *logrus.Logger {
	l := logrus.New()
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	}
	if opts.Quiet {
		l.SetOutput(io.Discard)
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
