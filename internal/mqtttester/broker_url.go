package mqtttester

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nerrad567/probekit/internal/tester"
)

// defaultPorts are the well-known ports per scheme.
var defaultPorts = map[string]int{
	"mqtt":  1883,
	"mqtts": 8883,
	"ws":    80,
	"wss":   443,
}

// wsPath is appended to WebSocket broker URLs that have no path.
const wsPath = "/mqtt"

// BuildBrokerURL returns the URL to dial for cfg.
//
// A BrokerURL that already carries a scheme is returned unchanged. A bare
// host is prefixed with Protocol, gets Port unless it is the scheme's
// well-known port, and gets the /mqtt path for ws and wss when it has none.
func BuildBrokerURL(cfg Config) string {
	if strings.Contains(cfg.BrokerURL, "://") {
		return cfg.BrokerURL
	}

	protocol := cfg.Protocol
	if protocol == "" {
		protocol = DefaultProtocol
	}

	full := protocol + "://" + cfg.BrokerURL
	if cfg.Port > 0 && cfg.Port != defaultPorts[protocol] {
		full += ":" + strconv.Itoa(cfg.Port)
	}
	if (protocol == "ws" || protocol == "wss") && !strings.Contains(cfg.BrokerURL, "/") {
		full += wsPath
	}
	return full
}

// ValidateBrokerURL checks that raw is an mqtt, mqtts, ws or wss URL with a
// host.
func ValidateBrokerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", tester.ErrInvalidURL, err)
	}
	if _, ok := defaultPorts[u.Scheme]; !ok {
		return fmt.Errorf("%w: scheme must be mqtt, mqtts, ws or wss, got %q", tester.ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", tester.ErrInvalidURL)
	}
	return nil
}

// brokerScheme returns the scheme of a validated broker URL.
func brokerScheme(raw string) string {
	scheme, _, _ := strings.Cut(raw, "://")
	return scheme
}
