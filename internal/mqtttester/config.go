package mqtttester

import (
	"time"

	"github.com/nerrad567/probekit/internal/tester"
)

// Default configuration values.
const (
	DefaultBrokerURL         = "mqtt://localhost"
	DefaultPort              = 1883
	DefaultProtocol          = "mqtt"
	DefaultKeepAlive         = 60 * time.Second
	DefaultReconnectPeriod   = time.Second
	DefaultConnectTimeout    = 5 * time.Second
	DefaultMaxReconnectTimes = 3
	DefaultMaxMessages       = 1000
	DefaultMaxPayloadSize    = 1024 * 1024

	// clientIDPrefix starts every generated client ID.
	clientIDPrefix = "mqtt_client_"

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2
)

// Config holds the connection settings for a Tester.
type Config struct {
	// BrokerURL is either a full URL (mqtt://host:1883) or a bare host that
	// BuildBrokerURL completes with Protocol and Port.
	BrokerURL string

	// Port is used when BrokerURL is a bare host.
	Port int

	// Protocol is mqtt, mqtts, ws or wss. Used when BrokerURL is a bare host.
	Protocol string

	// ClientID identifies the session to the broker.
	ClientID string

	Username string
	Password string

	KeepAlive    time.Duration
	CleanSession bool

	// ReconnectPeriod is the delay before each retry.
	ReconnectPeriod time.Duration

	// ConnectTimeout bounds each connect attempt.
	ConnectTimeout time.Duration

	// MaxReconnectTimes limits automatic retries. 0 disables reconnection.
	MaxReconnectTimes int

	// MaxMessages caps the message log.
	MaxMessages int

	// MaxPayloadSize is the largest payload Publish accepts, in bytes.
	MaxPayloadSize int

	// TLSInsecureSkipVerify accepts self-signed broker certificates.
	TLSInsecureSkipVerify bool
}

// DefaultConfig returns a Config with sensible defaults and a fresh client ID.
func DefaultConfig() Config {
	return Config{
		BrokerURL:         DefaultBrokerURL,
		Port:              DefaultPort,
		Protocol:          DefaultProtocol,
		ClientID:          NewClientID(),
		KeepAlive:         DefaultKeepAlive,
		CleanSession:      true,
		ReconnectPeriod:   DefaultReconnectPeriod,
		ConnectTimeout:    DefaultConnectTimeout,
		MaxReconnectTimes: DefaultMaxReconnectTimes,
		MaxMessages:       DefaultMaxMessages,
		MaxPayloadSize:    DefaultMaxPayloadSize,
	}
}

// NewClientID returns a random client ID.
func NewClientID() string {
	return clientIDPrefix + tester.NewID()[:8]
}

// applyDefaults fills zero values that would make the engine unusable.
func (c *Config) applyDefaults() {
	if c.BrokerURL == "" {
		c.BrokerURL = DefaultBrokerURL
	}
	if c.Protocol == "" {
		c.Protocol = DefaultProtocol
	}
	if c.ClientID == "" {
		c.ClientID = NewClientID()
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.ReconnectPeriod <= 0 {
		c.ReconnectPeriod = DefaultReconnectPeriod
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.MaxReconnectTimes < 0 {
		c.MaxReconnectTimes = 0
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	if c.MaxPayloadSize <= 0 {
		c.MaxPayloadSize = DefaultMaxPayloadSize
	}
}
