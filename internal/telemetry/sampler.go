// Package telemetry periodically samples tester statistics into a
// time-series sink.
package telemetry

import (
	"sync"
	"time"

	"github.com/nerrad567/probekit/internal/clock"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/internal/tester"
	"github.com/nerrad567/probekit/internal/wstester"
)

// Sink receives one point per source per tick.
// Implemented by *influxdb.Client.
type Sink interface {
	WriteStats(protocol, endpoint string, fields map[string]any, at time.Time)
}

// Source produces a snapshot for one tester.
type Source struct {
	Protocol string
	Sample   func() (endpoint string, fields map[string]any)
}

// Sampler writes every source to the sink once per interval.
type Sampler struct {
	sink     Sink
	clock    clock.Clock
	interval time.Duration
	logger   tester.Logger

	mu      sync.Mutex
	sources []Source
	timer   clock.Timer
	running bool
}

// NewSampler creates a stopped sampler. A nil clock uses the wall clock.
func NewSampler(sink Sink, interval time.Duration, c clock.Clock, logger tester.Logger) *Sampler {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = tester.NopLogger{}
	}
	return &Sampler{sink: sink, clock: c, interval: interval, logger: logger}
}

// Add registers a source. Sources added while running are picked up on the
// next tick.
func (s *Sampler) Add(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, src)
}

// Start schedules the first tick. Calling Start twice is a no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	s.running = true
	s.timer = s.clock.AfterFunc(s.interval, s.tick)
	s.logger.Info("telemetry sampler started", "interval", s.interval)
}

// Stop cancels the pending tick.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// SampleNow writes one point per source immediately.
func (s *Sampler) SampleNow() {
	s.mu.Lock()
	sources := append([]Source(nil), s.sources...)
	s.mu.Unlock()

	now := s.clock.Now()
	for _, src := range sources {
		endpoint, fields := src.Sample()
		s.sink.WriteStats(src.Protocol, endpoint, fields, now)
	}
}

func (s *Sampler) tick() {
	s.SampleNow()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.timer = s.clock.AfterFunc(s.interval, s.tick)
	}
}

// WebSocketSource samples a WebSocket tester.
func WebSocketSource(t *wstester.Tester) Source {
	return Source{
		Protocol: "websocket",
		Sample: func() (string, map[string]any) {
			info := t.ConnectionInfo()
			st := t.Stats()
			return info.URL, map[string]any{
				"state":               info.State.String(),
				"active":              info.State.Active(),
				"messages_sent":       int64(st.MessagesSent),
				"messages_received":   int64(st.MessagesReceived),
				"bytes_sent":          st.BytesSent,
				"bytes_received":      st.BytesReceived,
				"min_latency_ms":      millis(st.MinLatency),
				"max_latency_ms":      millis(st.MaxLatency),
				"average_latency_ms":  millis(st.AverageLatency),
				"last_latency_ms":     millis(st.LastLatency),
				"connection_duration": st.ConnectionDuration.Seconds(),
				"reconnect_count":     int64(st.ReconnectCount),
			}
		},
	}
}

// MQTTSource samples an MQTT tester.
func MQTTSource(t *mqtttester.Tester) Source {
	return Source{
		Protocol: "mqtt",
		Sample: func() (string, map[string]any) {
			info := t.ConnectionInfo()
			st := t.Stats()
			return info.BrokerURL, map[string]any{
				"state":               info.State.String(),
				"active":              info.State.Active(),
				"messages_published":  int64(st.MessagesPublished),
				"messages_received":   int64(st.MessagesReceived),
				"bytes_published":     st.BytesPublished,
				"bytes_received":      st.BytesReceived,
				"subscription_count":  int64(st.SubscriptionCount),
				"connection_duration": st.ConnectionDuration.Seconds(),
				"reconnect_count":     int64(st.ReconnectCount),
			}
		},
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
