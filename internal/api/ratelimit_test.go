package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/probekit/internal/infrastructure/config"
)

func TestClientLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newClientLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2})
	l.now = func() time.Time { return now }

	steps := []struct {
		advance time.Duration
		addr    string
		want    bool
	}{
		{0, "10.0.0.1", true},
		{0, "10.0.0.1", true},
		{0, "10.0.0.1", false},
		{0, "10.0.0.2", true}, // separate bucket
		{time.Second, "10.0.0.1", true},
		{0, "10.0.0.1", false},
	}
	for i, s := range steps {
		now = now.Add(s.advance)
		if got := l.allow(s.addr); got != s.want {
			t.Errorf("step %d: allow(%s) = %v, want %v", i, s.addr, got, s.want)
		}
	}

	// Idle buckets are dropped once the TTL passes.
	now = now.Add(limiterIdleTTL + time.Second)
	l.allow("10.0.0.3")
	if got := l.size(); got != 1 {
		t.Errorf("size() after prune = %d, want 1", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t, withRateLimit(0.01, 1))

	if status := env.do(t, http.MethodPost, "/websocket/disconnect", nil, nil); status != http.StatusOK {
		t.Fatalf("first disconnect status = %d, want 200", status)
	}

	var apiErr Error
	if status := env.do(t, http.MethodPost, "/mqtt/disconnect", nil, &apiErr); status != http.StatusTooManyRequests {
		t.Errorf("second operate request status = %d, want 429", status)
	}
	if apiErr.Code != ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeRateLimited)
	}

	// Reads are not throttled.
	if status := env.do(t, http.MethodGet, "/websocket/info", nil, nil); status != http.StatusOK {
		t.Errorf("GET /websocket/info status = %d, want 200", status)
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:5555", "192.0.2.1"},
		{"[2001:db8::1]:80", "2001:db8::1"},
		{"no-port", "no-port"},
	}
	for _, tt := range tests {
		r := &http.Request{RemoteAddr: tt.remote}
		if got := clientAddr(r); got != tt.want {
			t.Errorf("clientAddr(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
