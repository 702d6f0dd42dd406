package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/probekit/internal/format"
	"github.com/nerrad567/probekit/internal/wstester"
)

type wsConnectRequest struct {
	URL       string            `json:"url"`
	Protocols []string          `json:"protocols"`
	Headers   map[string]string `json:"headers"`
}

type wsSendRequest struct {
	Content string          `json:"content"`
	Format  wstester.Format `json:"format"`
}

// wsConfigPatch carries optional engine settings. Durations are in
// milliseconds.
type wsConfigPatch struct {
	Protocols           *[]string `json:"protocols"`
	TimeoutMS           *int      `json:"timeout_ms"`
	ReconnectAttempts   *int      `json:"reconnect_attempts"`
	ReconnectIntervalMS *int      `json:"reconnect_interval_ms"`
	PingIntervalMS      *int      `json:"ping_interval_ms"`
	MaxMessageSize      *int      `json:"max_message_size"`
	MaxMessages         *int      `json:"max_messages"`
}

type wsConfigView struct {
	URL                 string   `json:"url"`
	Protocols           []string `json:"protocols"`
	TimeoutMS           int64    `json:"timeout_ms"`
	ReconnectAttempts   int      `json:"reconnect_attempts"`
	ReconnectIntervalMS int64    `json:"reconnect_interval_ms"`
	PingIntervalMS      int64    `json:"ping_interval_ms"`
	MaxMessageSize      int      `json:"max_message_size"`
	MaxMessages         int      `json:"max_messages"`
}

func newWSConfigView(c wstester.Config) wsConfigView {
	protocols := c.Protocols
	if protocols == nil {
		protocols = []string{}
	}
	return wsConfigView{
		URL:                 c.URL,
		Protocols:           protocols,
		TimeoutMS:           c.Timeout.Milliseconds(),
		ReconnectAttempts:   c.ReconnectAttempts,
		ReconnectIntervalMS: c.ReconnectInterval.Milliseconds(),
		PingIntervalMS:      c.PingInterval.Milliseconds(),
		MaxMessageSize:      c.MaxMessageSize,
		MaxMessages:         c.MaxMessages,
	}
}

func (s *Server) handleWSConnect(w http.ResponseWriter, r *http.Request) {
	var req wsConnectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		req.URL = s.ws.Config().URL
	}

	var opts []wstester.ConnectOption
	if req.Protocols != nil {
		opts = append(opts, wstester.WithProtocols(req.Protocols...))
	}
	if req.Headers != nil {
		opts = append(opts, wstester.WithHeaders(req.Headers))
	}

	if err := s.ws.Connect(r.Context(), req.URL, opts...); err != nil {
		writeTesterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ws.ConnectionInfo())
}

func (s *Server) handleWSDisconnect(w http.ResponseWriter, _ *http.Request) {
	s.ws.Disconnect()
	writeJSON(w, http.StatusOK, s.ws.ConnectionInfo())
}

func (s *Server) handleWSSend(w http.ResponseWriter, r *http.Request) {
	var req wsSendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Format == "" {
		req.Format = wstester.FormatText
	}
	if err := s.ws.Send(req.Content, req.Format); err != nil {
		writeTesterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}

func (s *Server) handleWSPing(w http.ResponseWriter, _ *http.Request) {
	if err := s.ws.SendPing(); err != nil {
		writeTesterError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}

func (s *Server) handleWSInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.ConnectionInfo())
}

func (s *Server) handleWSStats(w http.ResponseWriter, _ *http.Request) {
	st := s.ws.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": st,
		"display": map[string]string{
			"bytes_sent":          format.Bytes(st.BytesSent),
			"bytes_received":      format.Bytes(st.BytesReceived),
			"min_latency":         format.Latency(st.MinLatency),
			"max_latency":         format.Latency(st.MaxLatency),
			"average_latency":     format.Latency(st.AverageLatency),
			"last_latency":        format.Latency(st.LastLatency),
			"connection_duration": format.Duration(st.ConnectionDuration),
		},
	})
}

func (s *Server) handleWSMessages(w http.ResponseWriter, _ *http.Request) {
	msgs := s.ws.Messages()
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

func (s *Server) handleWSClearMessages(w http.ResponseWriter, _ *http.Request) {
	s.ws.ClearMessages()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWSConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newWSConfigView(s.ws.Config()))
}

func (s *Server) handleWSUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var p wsConfigPatch
	if !decodeJSON(w, r, &p) {
		return
	}
	for name, v := range map[string]*int{
		"timeout_ms":            p.TimeoutMS,
		"reconnect_attempts":    p.ReconnectAttempts,
		"reconnect_interval_ms": p.ReconnectIntervalMS,
		"ping_interval_ms":      p.PingIntervalMS,
		"max_message_size":      p.MaxMessageSize,
		"max_messages":          p.MaxMessages,
	} {
		if v != nil && *v < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, name+" must not be negative")
			return
		}
	}

	s.ws.UpdateConfig(func(c *wstester.Config) {
		if p.Protocols != nil {
			c.Protocols = *p.Protocols
		}
		setMillis(&c.Timeout, p.TimeoutMS)
		setInt(&c.ReconnectAttempts, p.ReconnectAttempts)
		setMillis(&c.ReconnectInterval, p.ReconnectIntervalMS)
		setMillis(&c.PingInterval, p.PingIntervalMS)
		setInt(&c.MaxMessageSize, p.MaxMessageSize)
		setInt(&c.MaxMessages, p.MaxMessages)
	})
	writeJSON(w, http.StatusOK, newWSConfigView(s.ws.Config()))
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, ms *int) {
	if ms != nil {
		*dst = time.Duration(*ms) * time.Millisecond
	}
}
