package mqtttester

import (
	"time"

	"github.com/nerrad567/probekit/internal/tester"
)

// Pseudo-topics for log entries that are not broker traffic.
const (
	systemTopic = "system"
	errorTopic  = "error"
)

// Message is one entry in the message log.
type Message struct {
	ID        string             `json:"id"`
	Type      tester.MessageType `json:"type"`
	Topic     string             `json:"topic"`
	Payload   string             `json:"payload"`
	QoS       byte               `json:"qos"`
	Retain    bool               `json:"retain"`
	Timestamp time.Time          `json:"timestamp"`
	Size      int                `json:"size"`

	// Endpoint is the broker URL of the session the message belongs to. It
	// is set on published and received messages.
	Endpoint string `json:"endpoint,omitempty"`
}

// Subscription is a registered topic filter.
type Subscription struct {
	ID           string    `json:"id"`
	Filter       string    `json:"topic"`
	QoS          byte      `json:"qos"`
	SubscribedAt time.Time `json:"subscribed_at"`
	MessageCount int       `json:"message_count"`
}

// PublishOptions controls delivery of one published message.
type PublishOptions struct {
	QoS    byte
	Retain bool
}

// ConnectionInfo is a snapshot of the connection.
type ConnectionInfo struct {
	State          tester.State `json:"state"`
	BrokerURL      string       `json:"broker_url"`
	ClientID       string       `json:"client_id"`
	Protocol       string       `json:"protocol"`
	LastError      string       `json:"last_error,omitempty"`
	ConnectedAt    time.Time    `json:"connected_at,omitzero"`
	ReconnectCount int          `json:"reconnect_count"`
}

// Stats holds traffic counters. They accumulate for the lifetime of the
// engine.
type Stats struct {
	MessagesPublished  int           `json:"messages_published"`
	MessagesReceived   int           `json:"messages_received"`
	BytesPublished     int64         `json:"bytes_published"`
	BytesReceived      int64         `json:"bytes_received"`
	SubscriptionCount  int           `json:"subscription_count"`
	ConnectionDuration time.Duration `json:"connection_duration"`
	ReconnectCount     int           `json:"reconnect_count"`
	LastActivity       time.Time     `json:"last_activity,omitzero"`
}
