package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when PROBEKIT_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Config is the root configuration structure for probekit.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API             APIConfig             `yaml:"api"`
	Relay           RelayConfig           `yaml:"relay"`
	WebSocketTester WebSocketTesterConfig `yaml:"websocket_tester"`
	MQTTTester      MQTTTesterConfig      `yaml:"mqtt_tester"`
	Archive         ArchiveConfig         `yaml:"archive"`
	InfluxDB        InfluxDBConfig        `yaml:"influxdb"`
	Telemetry       TelemetryConfig       `yaml:"telemetry"`
	Logging         LoggingConfig         `yaml:"logging"`
	Security        SecurityConfig        `yaml:"security"`
}

// APIConfig contains HTTP control API settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig throttles operating requests (connect, send, publish...)
// per client address.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RelayConfig contains settings for the /events WebSocket stream that relays
// engine events to UI clients.
type RelayConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// WebSocketTesterConfig holds the WebSocket engine defaults. Durations are in
// milliseconds.
type WebSocketTesterConfig struct {
	URL               string   `yaml:"url"`
	Protocols         []string `yaml:"protocols"`
	Timeout           int      `yaml:"timeout"`
	ReconnectAttempts int      `yaml:"reconnect_attempts"`
	ReconnectInterval int      `yaml:"reconnect_interval"`
	PingInterval      int      `yaml:"ping_interval"`
	MaxMessageSize    int      `yaml:"max_message_size"`
	MaxMessages       int      `yaml:"max_messages"`
}

// MQTTTesterConfig holds the MQTT engine defaults. Durations are in
// milliseconds except KeepAlive, which is in seconds as on the wire.
type MQTTTesterConfig struct {
	BrokerURL             string `yaml:"broker_url"`
	Port                  int    `yaml:"port"`
	Protocol              string `yaml:"protocol"`
	ClientID              string `yaml:"client_id"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	KeepAlive             int    `yaml:"keep_alive"`
	CleanSession          bool   `yaml:"clean_session"`
	ReconnectPeriod       int    `yaml:"reconnect_period"`
	ConnectTimeout        int    `yaml:"connect_timeout"`
	MaxReconnectTimes     int    `yaml:"max_reconnect_times"`
	MaxMessages           int    `yaml:"max_messages"`
	MaxPayloadSize        int    `yaml:"max_payload_size"`
	TLSInsecureSkipVerify bool   `yaml:"tls_insecure_skip_verify"`
}

// ArchiveConfig contains the SQLite message archive settings.
type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	BufferSize  int    `yaml:"buffer_size"`

	// Retention is how long records are kept, in hours. 0 keeps them
	// forever.
	Retention int `yaml:"retention"`

	// PruneInterval is the time between retention runs, in minutes.
	PruneInterval int `yaml:"prune_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig controls periodic engine stats sampling. Interval is in
// seconds.
type TelemetryConfig struct {
	Interval int `yaml:"interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty Secret disables API
// authentication. AccessTokenTTL is in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PROBEKIT_SECTION_KEY
// For example: PROBEKIT_API_PORT, PROBEKIT_MQTT_BROKER_URL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads the file named by PROBEKIT_CONFIG, or DefaultPath. A
// missing default file is not an error; defaults and environment overrides
// apply.
func LoadDefault() (*Config, error) {
	if path := os.Getenv("PROBEKIT_CONFIG"); path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return Load(DefaultPath)
	}

	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 20,
				Burst:             40,
			},
		},
		Relay: RelayConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		WebSocketTester: WebSocketTesterConfig{
			Timeout:           5000,
			ReconnectAttempts: 3,
			ReconnectInterval: 1000,
			PingInterval:      60000,
			MaxMessageSize:    1024 * 1024,
			MaxMessages:       1000,
		},
		MQTTTester: MQTTTesterConfig{
			BrokerURL:         "mqtt://localhost",
			Port:              1883,
			Protocol:          "mqtt",
			KeepAlive:         60,
			CleanSession:      true,
			ReconnectPeriod:   1000,
			ConnectTimeout:    5000,
			MaxReconnectTimes: 3,
			MaxMessages:       1000,
			MaxPayloadSize:    1024 * 1024,
		},
		Archive: ArchiveConfig{
			Path:          "./data/probekit.db",
			WALMode:       true,
			BusyTimeout:   5,
			BufferSize:    256,
			Retention:     168,
			PruneInterval: 60,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "probekit",
			Bucket:        "probekit",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Telemetry: TelemetryConfig{
			Interval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PROBEKIT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("PROBEKIT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PROBEKIT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Testers
	if v := os.Getenv("PROBEKIT_WEBSOCKET_URL"); v != "" {
		cfg.WebSocketTester.URL = v
	}
	if v := os.Getenv("PROBEKIT_MQTT_BROKER_URL"); v != "" {
		cfg.MQTTTester.BrokerURL = v
	}
	if v := os.Getenv("PROBEKIT_MQTT_USERNAME"); v != "" {
		cfg.MQTTTester.Username = v
	}
	if v := os.Getenv("PROBEKIT_MQTT_PASSWORD"); v != "" {
		cfg.MQTTTester.Password = v
	}

	// Archive
	if v := os.Getenv("PROBEKIT_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}

	// InfluxDB
	if v := os.Getenv("PROBEKIT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("PROBEKIT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if rl := c.API.RateLimit; rl.Enabled && (rl.RequestsPerSecond <= 0 || rl.Burst < 1) {
		errs = append(errs, "api.rate_limit needs a positive requests_per_second and burst")
	}

	ws := c.WebSocketTester
	if ws.Timeout < 0 || ws.ReconnectInterval < 0 || ws.PingInterval < 0 {
		errs = append(errs, "websocket_tester durations must not be negative")
	}
	if ws.ReconnectAttempts < 0 {
		errs = append(errs, "websocket_tester.reconnect_attempts must not be negative")
	}

	mq := c.MQTTTester
	switch mq.Protocol {
	case "", "mqtt", "mqtts", "ws", "wss":
	default:
		errs = append(errs, "mqtt_tester.protocol must be mqtt, mqtts, ws or wss")
	}
	if mq.Port < 0 || mq.Port > 65535 {
		errs = append(errs, "mqtt_tester.port must be between 0 and 65535")
	}
	if mq.MaxReconnectTimes < 0 {
		errs = append(errs, "mqtt_tester.max_reconnect_times must not be negative")
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, "archive.path is required when the archive is enabled")
	}
	if c.Archive.Retention < 0 {
		errs = append(errs, "archive.retention must not be negative")
	}
	if c.Archive.Enabled && c.Archive.Retention > 0 && c.Archive.PruneInterval < 1 {
		errs = append(errs, "archive.prune_interval must be at least 1 minute when retention is set")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
		if c.Telemetry.Interval < 1 {
			errs = append(errs, "telemetry.interval must be at least 1 second")
		}
	}

	// Authentication is optional for a local tool, but a configured secret
	// must be strong enough for HS256.
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Addr returns the API listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Millis converts a millisecond setting to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
