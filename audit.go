package authcore

import (
	"github.com/atulya-tantra/authcore/internal/audit"
)

// AuditEvent is one security-relevant decision. It never carries passwords,
// password hashes or raw tokens.
type AuditEvent = audit.Event

// AuditSink receives audit events from the service's dispatcher goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	LogrusSink     = audit.LogrusSink
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewLogrusSink     = audit.NewLogrusSink
)
