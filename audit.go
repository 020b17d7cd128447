package goGuard

import (
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one security-relevant occurrence. IPHash carries the
// SHA-256 hex of the client address, never the address itself.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc = audit.SinkFunc

// ChannelSink forwards events to a buffered channel.
type ChannelSink = audit.ChannelSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewLogAuditSink returns a sink that writes events through logger.
// Config.Audit.Log wires one to the engine's own logger.
func NewLogAuditSink(logger *logrus.Logger) AuditSink {
	return audit.NewLogSink(logger)
}
