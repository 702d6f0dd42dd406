package wstester

import (
	"fmt"
	"net/url"

	"github.com/nerrad567/probekit/internal/tester"
)

// ValidateURL checks that raw is an absolute ws:// or wss:// URL with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", tester.ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme must be ws or wss, got %q", tester.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", tester.ErrInvalidURL)
	}
	return nil
}
