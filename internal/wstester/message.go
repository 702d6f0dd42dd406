package wstester

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/probekit/internal/tester"
)

// Format describes how a payload is framed and displayed.
type Format string

// Payload formats.
const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatBinary Format = "binary"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatJSON, FormatBinary:
		return true
	}
	return false
}

// ClassifyPayload decides the display format of an inbound frame.
// Binary frames stay binary. Text frames holding a valid JSON document are
// JSON and everything else is text.
func ClassifyPayload(kind FrameKind, data []byte) Format {
	if kind == FrameBinary {
		return FormatBinary
	}
	if json.Valid(data) {
		return FormatJSON
	}
	return FormatText
}

// Message is one entry in the message log.
type Message struct {
	ID        string             `json:"id"`
	Type      tester.MessageType `json:"type"`
	Content   string             `json:"content"`
	Timestamp time.Time          `json:"timestamp"`
	Size      int                `json:"size"`
	Format    Format             `json:"format"`

	// Endpoint is the URL of the session the message belongs to. It is set
	// on sent and received messages.
	Endpoint string `json:"endpoint,omitempty"`
}

// ConnectionInfo is a snapshot of the connection.
type ConnectionInfo struct {
	State          tester.State `json:"state"`
	URL            string       `json:"url"`
	Protocol       string       `json:"protocol"`
	ReadyState     ReadyState   `json:"ready_state"`
	LastError      string       `json:"last_error,omitempty"`
	ConnectedAt    time.Time    `json:"connected_at,omitzero"`
	ReconnectCount int          `json:"reconnect_count"`
}

// CloseInfo describes a transport close.
type CloseInfo struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// Stats holds traffic and latency counters for the current session.
type Stats struct {
	MessagesSent       int           `json:"messages_sent"`
	MessagesReceived   int           `json:"messages_received"`
	BytesSent          int64         `json:"bytes_sent"`
	BytesReceived      int64         `json:"bytes_received"`
	MinLatency         time.Duration `json:"min_latency"`
	MaxLatency         time.Duration `json:"max_latency"`
	AverageLatency     time.Duration `json:"average_latency"`
	LastLatency        time.Duration `json:"last_latency"`
	ConnectionDuration time.Duration `json:"connection_duration"`
	ReconnectCount     int           `json:"reconnect_count"`
	LastActivity       time.Time     `json:"last_activity,omitzero"`
}

// recordLatency folds one round-trip sample into the latency counters.
// The average is weighted by MessagesSent, so it is the plain mean only
// while every sent message is a ping.
func (s *Stats) recordLatency(d time.Duration) {
	s.LastLatency = d
	if s.MinLatency == 0 || d < s.MinLatency {
		s.MinLatency = d
	}
	if d > s.MaxLatency {
		s.MaxLatency = d
	}
	n := time.Duration(max(s.MessagesSent, 1))
	s.AverageLatency = (s.AverageLatency*(n-1) + d) / n
}
