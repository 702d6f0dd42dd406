package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	Relay         RelayMetrics      `json:"relay"`
	WebSocket     TesterMetrics     `json:"websocket"`
	MQTT          TesterMetrics     `json:"mqtt"`
	Archive       *ArchiveMetrics   `json:"archive,omitempty"`
	Telemetry     *TelemetryMetrics `json:"telemetry,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// RelayMetrics contains event relay statistics.
type RelayMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// TesterMetrics summarises one engine.
type TesterMetrics struct {
	State            string `json:"state"`
	Active           bool   `json:"active"`
	Endpoint         string `json:"endpoint"`
	MessagesOut      int    `json:"messages_out"`
	MessagesReceived int    `json:"messages_received"`
	ReconnectCount   int    `json:"reconnect_count"`
	LogSize          int    `json:"log_size"`
}

// ArchiveMetrics reports the stored record count and the recorder's
// counters.
type ArchiveMetrics struct {
	Stored  int   `json:"stored"`
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
	Pruned  int64 `json:"pruned"`
}

// TelemetryMetrics reports the stats sink's counters.
type TelemetryMetrics struct {
	PointsQueued int64 `json:"points_queued"`
	WriteErrors  int64 `json:"write_errors"`
}

// handleMetrics returns process and tester metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	wsInfo, wsStats := s.ws.ConnectionInfo(), s.ws.Stats()
	mqInfo, mqStats := s.mqtt.ConnectionInfo(), s.mqtt.Stats()

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Relay: RelayMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		WebSocket: TesterMetrics{
			State:            wsInfo.State.String(),
			Active:           wsInfo.State.Active(),
			Endpoint:         wsInfo.URL,
			MessagesOut:      wsStats.MessagesSent,
			MessagesReceived: wsStats.MessagesReceived,
			ReconnectCount:   wsInfo.ReconnectCount,
			LogSize:          len(s.ws.Messages()),
		},
		MQTT: TesterMetrics{
			State:            mqInfo.State.String(),
			Active:           mqInfo.State.Active(),
			Endpoint:         mqInfo.BrokerURL,
			MessagesOut:      mqStats.MessagesPublished,
			MessagesReceived: mqStats.MessagesReceived,
			ReconnectCount:   mqInfo.ReconnectCount,
			LogSize:          len(s.mqtt.Messages()),
		},
	}
	if s.archive != nil || s.recorder != nil {
		m.Archive = &ArchiveMetrics{}
	}
	if s.archive != nil {
		stored, err := s.archive.Count(r.Context(), "")
		if err != nil {
			s.logger.Warn("archive count failed", "error", err)
		}
		m.Archive.Stored = stored
	}
	if s.recorder != nil {
		m.Archive.Written = s.recorder.Written()
		m.Archive.Dropped = s.recorder.Dropped()
		m.Archive.Failed = s.recorder.Failed()
		m.Archive.Pruned = s.recorder.Pruned()
	}
	if s.telemetry != nil {
		m.Telemetry = &TelemetryMetrics{
			PointsQueued: s.telemetry.PointsQueued(),
			WriteErrors:  s.telemetry.WriteErrors(),
		}
	}
	writeJSON(w, http.StatusOK, m)
}
