package archive

import (
	"context"
	"errors"
	"time"
)

// Protocol names the tester a record came from.
type Protocol string

// Protocols stored in the archive.
const (
	ProtocolWebSocket Protocol = "websocket"
	ProtocolMQTT      Protocol = "mqtt"
)

// Valid reports whether p is a known protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolWebSocket || p == ProtocolMQTT
}

// ErrInvalidProtocol is returned for an unknown protocol filter.
var ErrInvalidProtocol = errors.New("archive: invalid protocol")

// Record is one archived message.
type Record struct {
	ID        string    `json:"id"`
	Protocol  Protocol  `json:"protocol"`
	Endpoint  string    `json:"endpoint"`
	Type      string    `json:"type"`
	Topic     string    `json:"topic,omitempty"`
	Content   string    `json:"content"`
	Format    string    `json:"format,omitempty"`
	QoS       *byte     `json:"qos,omitempty"`
	Retain    bool      `json:"retain"`
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter controls which records List returns.
type Filter struct {
	Protocol Protocol // optional
	Endpoint string   // optional
	Limit    int      // default 100, max 1000
	Offset   int
}

// Repository stores and queries archived records.
type Repository interface {
	Insert(ctx context.Context, records []Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
	Count(ctx context.Context, protocol Protocol) (int, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
