package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one gate or login decision. Client addresses only appear hashed.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	IPHash    string            `json:"ip_hash,omitempty"`
	Path      string            `json:"path,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Fields flattens the event for structured loggers. Metadata keys keep their
// names unless they collide with a fixed field.
func (e Event) Fields() map[string]any {
	fields := make(map[string]any, 6+len(e.Metadata))
	for k, v := range e.Metadata {
		fields[k] = v
	}
	fields["event_id"] = e.ID
	fields["event_type"] = e.EventType
	fields["success"] = e.Success
	if e.IPHash != "" {
		fields["ip_hash"] = e.IPHash
	}
	if e.Path != "" {
		fields["path"] = e.Path
	}
	if e.Reason != "" {
		fields["reason"] = e.Reason
	}
	return fields
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// ChannelSink hands events to a buffered channel, mostly for tests.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// LogSink writes each event as one logrus entry. Successful decisions log at
// info, the rest at warn.
type LogSink struct {
	entry *logrus.Entry
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{entry: logger.WithField("component", "audit")}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	level := logrus.WarnLevel
	if event.Success {
		level = logrus.InfoLevel
	}
	s.entry.WithTime(event.Timestamp).WithFields(event.Fields()).Log(level, event.EventType)
}

// Fanout delivers an event to every sink in order. Nil entries are skipped.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, event Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
