package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/probekit/internal/archive"
	"github.com/nerrad567/probekit/internal/auth"
	"github.com/nerrad567/probekit/internal/infrastructure/database"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/migrations"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]string
	if status := env.do(t, http.MethodGet, "/health", nil, &body); status != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", status)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("GET /health body = %v", body)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{WebSocket: env.ws, MQTT: env.mqtt}},
		{"no websocket", Deps{Logger: env.server.logger, MQTT: env.mqtt}},
		{"no mqtt", Deps{Logger: env.server.logger, WebSocket: env.ws}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestWebSocket_ConnectSendMessages(t *testing.T) {
	env := newTestEnv(t)
	url := newEchoServer(t)

	var info struct {
		State string `json:"state"`
		URL   string `json:"url"`
	}
	if status := env.do(t, http.MethodPost, "/websocket/connect", map[string]any{"url": url}, &info); status != http.StatusOK {
		t.Fatalf("POST /websocket/connect status = %d, want 200", status)
	}
	if info.State != "connected" || info.URL != url {
		t.Errorf("connect info = %+v, want connected to %s", info, url)
	}

	var sent map[string]string
	if status := env.do(t, http.MethodPost, "/websocket/send", map[string]any{"content": "hello"}, &sent); status != http.StatusAccepted {
		t.Fatalf("POST /websocket/send status = %d, want 202", status)
	}

	type logEntry struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Format  string `json:"format"`
	}
	var echoed logEntry
	waitFor(t, "echo", func() bool {
		var body struct {
			Messages []logEntry `json:"messages"`
		}
		env.do(t, http.MethodGet, "/websocket/messages", nil, &body)
		for _, m := range body.Messages {
			if m.Type == "received" {
				echoed = m
				return true
			}
		}
		return false
	})
	if echoed.Content != "hello" || echoed.Format != "text" {
		t.Errorf("echoed message = %+v, want text hello", echoed)
	}

	var stats struct {
		Stats struct {
			MessagesSent int `json:"messages_sent"`
		} `json:"stats"`
		Display map[string]string `json:"display"`
	}
	env.do(t, http.MethodGet, "/websocket/stats", nil, &stats)
	if stats.Stats.MessagesSent != 1 {
		t.Errorf("stats messages_sent = %d, want 1", stats.Stats.MessagesSent)
	}
	if stats.Display["bytes_sent"] != "5 Bytes" {
		t.Errorf("display bytes_sent = %q, want 5 Bytes", stats.Display["bytes_sent"])
	}

	// A second connect while connected is a conflict.
	var apiErr Error
	if status := env.do(t, http.MethodPost, "/websocket/connect", map[string]any{"url": url}, &apiErr); status != http.StatusConflict {
		t.Errorf("second connect status = %d, want 409", status)
	}

	if status := env.do(t, http.MethodDelete, "/websocket/messages", nil, nil); status != http.StatusNoContent {
		t.Errorf("DELETE /websocket/messages status = %d, want 204", status)
	}
	if got := len(env.ws.Messages()); got != 0 {
		t.Errorf("log size after clear = %d, want 0", got)
	}

	env.do(t, http.MethodPost, "/websocket/disconnect", nil, &info)
	if info.State != "disconnected" {
		t.Errorf("state after disconnect = %q, want disconnected", info.State)
	}
}

func TestWebSocket_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"send while disconnected", http.MethodPost, "/websocket/send", map[string]any{"content": "x"}, http.StatusPreconditionFailed, ErrCodeNotConnected},
		{"ping while disconnected", http.MethodPost, "/websocket/ping", nil, http.StatusPreconditionFailed, ErrCodeNotConnected},
		{"bad url scheme", http.MethodPost, "/websocket/connect", map[string]any{"url": "http://echo.test"}, http.StatusBadRequest, ErrCodeValidation},
		{"missing url", http.MethodPost, "/websocket/connect", nil, http.StatusBadRequest, ErrCodeValidation},
		{"unknown field", http.MethodPost, "/websocket/send", map[string]any{"body": "x"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"negative config", http.MethodPatch, "/websocket/config", map[string]any{"timeout_ms": -1}, http.StatusBadRequest, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr Error
			status := env.do(t, tt.method, tt.path, tt.body, &apiErr)
			if status != tt.wantCode {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, status, tt.wantCode)
			}
			if apiErr.Code != tt.wantErr {
				t.Errorf("%s %s code = %q, want %q", tt.method, tt.path, apiErr.Code, tt.wantErr)
			}
		})
	}
}

func TestWebSocket_Config(t *testing.T) {
	env := newTestEnv(t)

	var view wsConfigView
	if status := env.do(t, http.MethodGet, "/websocket/config", nil, &view); status != http.StatusOK {
		t.Fatalf("GET /websocket/config status = %d, want 200", status)
	}
	if view.TimeoutMS != 5000 {
		t.Errorf("timeout_ms = %d, want 5000", view.TimeoutMS)
	}

	patch := map[string]any{"timeout_ms": 2500, "max_messages": 50, "protocols": []string{"probe.v2"}}
	if status := env.do(t, http.MethodPatch, "/websocket/config", patch, &view); status != http.StatusOK {
		t.Fatalf("PATCH /websocket/config status = %d, want 200", status)
	}
	cfg := env.ws.Config()
	if cfg.Timeout != 2500*time.Millisecond || cfg.MaxMessages != 50 {
		t.Errorf("Config() = %+v, want timeout 2.5s and 50 messages", cfg)
	}
	if len(cfg.Protocols) != 1 || cfg.Protocols[0] != "probe.v2" {
		t.Errorf("Config().Protocols = %v, want [probe.v2]", cfg.Protocols)
	}
	// Untouched fields keep their values.
	if view.PingIntervalMS != 0 {
		t.Errorf("ping_interval_ms = %d, want 0", view.PingIntervalMS)
	}
}

func TestMQTT_ConnectSubscribePublish(t *testing.T) {
	env := newTestEnv(t)

	connect := map[string]any{"broker_url": "mqtt://broker.test", "client_id": "probe-1", "username": "u", "password": "p"}
	var info struct {
		State     string `json:"state"`
		BrokerURL string `json:"broker_url"`
		ClientID  string `json:"client_id"`
	}
	if status := env.do(t, http.MethodPost, "/mqtt/connect", connect, &info); status != http.StatusOK {
		t.Fatalf("POST /mqtt/connect status = %d, want 200", status)
	}
	if info.State != "connected" || info.ClientID != "probe-1" {
		t.Errorf("connect info = %+v", info)
	}
	opts := env.broker.lastOpen()
	if opts.Username != "u" || opts.Password != "p" || opts.ClientID != "probe-1" {
		t.Errorf("client options = %+v, want credentials u/p and id probe-1", opts)
	}

	if status := env.do(t, http.MethodPost, "/mqtt/subscribe", map[string]any{"topic": "sensors/#", "qos": 1}, nil); status != http.StatusAccepted {
		t.Fatalf("POST /mqtt/subscribe status = %d, want 202", status)
	}

	var subs struct {
		Subscriptions []struct {
			Topic          string `json:"topic"`
			QoS            byte   `json:"qos"`
			QoSDescription string `json:"qos_description"`
			MessageCount   int    `json:"message_count"`
		} `json:"subscriptions"`
		Count int `json:"count"`
	}
	env.do(t, http.MethodGet, "/mqtt/subscriptions", nil, &subs)
	if subs.Count != 1 || subs.Subscriptions[0].Topic != "sensors/#" {
		t.Fatalf("subscriptions = %+v, want sensors/#", subs)
	}
	if subs.Subscriptions[0].QoSDescription != "At least once" {
		t.Errorf("qos_description = %q, want At least once", subs.Subscriptions[0].QoSDescription)
	}

	publish := map[string]any{"topic": "sensors/temp", "payload": "21.5", "qos": 1}
	if status := env.do(t, http.MethodPost, "/mqtt/publish", publish, nil); status != http.StatusAccepted {
		t.Fatalf("POST /mqtt/publish status = %d, want 202", status)
	}

	var msgs struct {
		Messages []struct {
			Type    string `json:"type"`
			Topic   string `json:"topic"`
			Payload string `json:"payload"`
		} `json:"messages"`
	}
	env.do(t, http.MethodGet, "/mqtt/messages", nil, &msgs)
	var published, received bool
	for _, m := range msgs.Messages {
		if m.Topic != "sensors/temp" || m.Payload != "21.5" {
			continue
		}
		switch m.Type {
		case "published":
			published = true
		case "received":
			received = true
		}
	}
	if !published || !received {
		t.Errorf("messages = %+v, want published and received sensors/temp", msgs.Messages)
	}

	env.do(t, http.MethodGet, "/mqtt/subscriptions", nil, &subs)
	if subs.Subscriptions[0].MessageCount != 1 {
		t.Errorf("message_count = %d, want 1", subs.Subscriptions[0].MessageCount)
	}

	if status := env.do(t, http.MethodPost, "/mqtt/unsubscribe", map[string]any{"topic": "sensors/#"}, nil); status != http.StatusAccepted {
		t.Errorf("POST /mqtt/unsubscribe status = %d, want 202", status)
	}
	if got := len(env.mqtt.Subscriptions()); got != 0 {
		t.Errorf("subscriptions after unsubscribe = %d, want 0", got)
	}
}

func TestMQTT_ConnectRefused(t *testing.T) {
	env := newTestEnv(t)
	env.broker.setRefuse(errors.New("not authorised"))

	var apiErr Error
	status := env.do(t, http.MethodPost, "/mqtt/connect", map[string]any{"broker_url": "mqtt://broker.test"}, &apiErr)
	if status != http.StatusBadGateway || apiErr.Code != ErrCodeConnectionFailed {
		t.Errorf("refused connect = %d %q, want 502 %q", status, apiErr.Code, ErrCodeConnectionFailed)
	}
}

func TestMQTT_Errors(t *testing.T) {
	env := newTestEnv(t)

	// Disconnected first.
	var apiErr Error
	if status := env.do(t, http.MethodPost, "/mqtt/publish", map[string]any{"topic": "a/b", "payload": "x"}, &apiErr); status != http.StatusPreconditionFailed {
		t.Errorf("publish while disconnected status = %d, want 412", status)
	}
	if status := env.do(t, http.MethodPost, "/mqtt/connect", map[string]any{"broker_url": "tcp://broker.test"}, &apiErr); status != http.StatusBadRequest {
		t.Errorf("connect with tcp scheme status = %d, want 400", status)
	}

	if status := env.do(t, http.MethodPost, "/mqtt/connect", map[string]any{"broker_url": "mqtt://broker.test"}, nil); status != http.StatusOK {
		t.Fatalf("POST /mqtt/connect status = %d, want 200", status)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{"publish wildcard topic", http.MethodPost, "/mqtt/publish", map[string]any{"topic": "a/+", "payload": "x"}, http.StatusBadRequest},
		{"publish bad qos", http.MethodPost, "/mqtt/publish", map[string]any{"topic": "a/b", "payload": "x", "qos": 3}, http.StatusBadRequest},
		{"subscribe bad filter", http.MethodPost, "/mqtt/subscribe", map[string]any{"topic": "a/#/b"}, http.StatusBadRequest},
		{"subscribe empty filter", http.MethodPost, "/mqtt/subscribe", map[string]any{"topic": ""}, http.StatusBadRequest},
		{"second connect", http.MethodPost, "/mqtt/connect", map[string]any{"broker_url": "mqtt://broker.test"}, http.StatusConflict},
		{"bad protocol", http.MethodPatch, "/mqtt/config", map[string]any{"protocol": "tcp"}, http.StatusBadRequest},
		{"negative port", http.MethodPatch, "/mqtt/config", map[string]any{"port": -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := env.do(t, tt.method, tt.path, tt.body, nil); status != tt.wantCode {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, status, tt.wantCode)
			}
		})
	}
}

func TestMQTT_Config(t *testing.T) {
	env := newTestEnv(t)

	patch := map[string]any{"broker_url": "broker.test", "protocol": "ws", "port": 8080}
	var apiErr Error
	// broker_url is set through connect, not config.
	if status := env.do(t, http.MethodPatch, "/mqtt/config", patch, &apiErr); status != http.StatusBadRequest {
		t.Errorf("PATCH with broker_url status = %d, want 400", status)
	}

	var view mqttConfigView
	patch = map[string]any{"protocol": "ws", "port": 8080, "max_reconnect_times": 3}
	if status := env.do(t, http.MethodPatch, "/mqtt/config", patch, &view); status != http.StatusOK {
		t.Fatalf("PATCH /mqtt/config status = %d, want 200", status)
	}
	if view.Protocol != "ws" || view.Port != 8080 || view.MaxReconnectTimes != 3 {
		t.Errorf("config view = %+v", view)
	}
	if cfg := env.mqtt.Config(); cfg.MaxReconnectTimes != 3 {
		t.Errorf("Config().MaxReconnectTimes = %d, want 3", cfg.MaxReconnectTimes)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, withSecret(testSecret))

	viewer, err := auth.GenerateAccessToken("alice", auth.RoleViewer, testSecret, 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	operator, err := auth.GenerateAccessToken("bob", auth.RoleOperator, testSecret, 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	forged, err := auth.GenerateAccessToken("mallory", auth.RoleOperator, "another-secret-that-is-long-enough-to-pass", 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		wantCode int
	}{
		{"health is open", http.MethodGet, "/health", "", http.StatusOK},
		{"no token", http.MethodGet, "/websocket/info", "", http.StatusUnauthorized},
		{"forged token", http.MethodGet, "/websocket/info", forged, http.StatusUnauthorized},
		{"viewer reads", http.MethodGet, "/mqtt/info", viewer, http.StatusOK},
		{"viewer reads metrics", http.MethodGet, "/metrics", viewer, http.StatusOK},
		{"viewer cannot operate", http.MethodPost, "/websocket/disconnect", viewer, http.StatusForbidden},
		{"viewer cannot patch", http.MethodPatch, "/mqtt/config", viewer, http.StatusForbidden},
		{"operator operates", http.MethodPost, "/mqtt/disconnect", operator, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var header []string
			if tt.token != "" {
				header = []string{"Authorization", "Bearer " + tt.token}
			}
			if status := env.do(t, tt.method, tt.path, nil, nil, header...); status != tt.wantCode {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, status, tt.wantCode)
			}
		})
	}
}

func TestArchive(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t)
		var apiErr Error
		if status := env.do(t, http.MethodGet, "/archive", nil, &apiErr); status != http.StatusNotFound {
			t.Errorf("GET /archive status = %d, want 404", status)
		}
	})

	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(t.Context(), migrations.FS, "."); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := archive.NewSQLiteRepository(db.DB)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = repo.Insert(t.Context(), []archive.Record{
		{ID: "1", Protocol: archive.ProtocolWebSocket, Endpoint: "ws://echo.test", Type: "sent", Content: "a", Format: "text", Size: 1, Timestamp: base},
		{ID: "2", Protocol: archive.ProtocolMQTT, Endpoint: "mqtt://broker.test", Type: "received", Topic: "t", Content: "b", Size: 1, Timestamp: base.Add(time.Second)},
		{ID: "3", Protocol: archive.ProtocolMQTT, Endpoint: "mqtt://broker.test", Type: "received", Topic: "t", Content: "c", Size: 1, Timestamp: base.Add(2 * time.Second)},
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	env := newTestEnv(t, withArchive(repo))

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantIDs   []string
		wantTotal int
	}{
		{"all newest first", "", http.StatusOK, []string{"3", "2", "1"}, 3},
		{"by protocol", "?protocol=websocket", http.StatusOK, []string{"1"}, 1},
		{"paged", "?protocol=mqtt&limit=1&offset=1", http.StatusOK, []string{"2"}, 2},
		{"bad protocol", "?protocol=amqp", http.StatusBadRequest, nil, 0},
		{"bad limit", "?limit=ten", http.StatusBadRequest, nil, 0},
		{"negative offset", "?offset=-1", http.StatusBadRequest, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Messages []archive.Record `json:"messages"`
				Count    int              `json:"count"`
				Total    int              `json:"total"`
			}
			status := env.do(t, http.MethodGet, "/archive"+tt.query, nil, &body)
			if status != tt.wantCode {
				t.Fatalf("GET /archive%s status = %d, want %d", tt.query, status, tt.wantCode)
			}
			if tt.wantIDs == nil {
				return
			}
			if body.Count != len(tt.wantIDs) {
				t.Fatalf("count = %d, want %d", body.Count, len(tt.wantIDs))
			}
			if body.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", body.Total, tt.wantTotal)
			}
			for i, id := range tt.wantIDs {
				if body.Messages[i].ID != id {
					t.Errorf("messages[%d].ID = %q, want %q", i, body.Messages[i].ID, id)
				}
			}
		})
	}

	t.Run("metrics stored count", func(t *testing.T) {
		var m SystemMetrics
		if status := env.do(t, http.MethodGet, "/metrics", nil, &m); status != http.StatusOK {
			t.Fatalf("GET /metrics status = %d, want 200", status)
		}
		if m.Archive == nil || m.Archive.Stored != 3 {
			t.Errorf("archive metrics = %+v, want 3 stored", m.Archive)
		}
	})
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)

	if status := env.do(t, http.MethodPost, "/mqtt/connect", map[string]any{"broker_url": "mqtt://broker.test"}, nil); status != http.StatusOK {
		t.Fatalf("POST /mqtt/connect status = %d, want 200", status)
	}

	var m SystemMetrics
	if status := env.do(t, http.MethodGet, "/metrics", nil, &m); status != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", status)
	}
	if m.Version != "test" {
		t.Errorf("version = %q, want test", m.Version)
	}
	if m.MQTT.State != "connected" || !m.MQTT.Active || m.MQTT.Endpoint != "mqtt://broker.test" {
		t.Errorf("mqtt metrics = %+v", m.MQTT)
	}
	if m.WebSocket.State != "disconnected" || m.WebSocket.Active {
		t.Errorf("websocket metrics = %+v, want inactive and disconnected", m.WebSocket)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("runtime goroutines = 0")
	}
	if m.Archive != nil || m.Telemetry != nil {
		t.Errorf("archive, telemetry = %v, %v, want both omitted", m.Archive, m.Telemetry)
	}
}

type stubCounters struct{ queued, errs int64 }

func (s stubCounters) PointsQueued() int64 { return s.queued }
func (s stubCounters) WriteErrors() int64  { return s.errs }

func TestMetrics_Pipelines(t *testing.T) {
	rec := archive.NewRecorder(&memRepo{}, 4, nil)
	rec.Record(archive.Record{ID: "1", Protocol: archive.ProtocolMQTT})
	rec.Close()

	env := newTestEnv(t, func(d *Deps) {
		d.Recorder = rec
		d.Telemetry = stubCounters{queued: 7, errs: 2}
	})

	var m SystemMetrics
	if status := env.do(t, http.MethodGet, "/metrics", nil, &m); status != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", status)
	}
	if m.Archive == nil || m.Archive.Written != 1 {
		t.Errorf("archive metrics = %+v, want 1 written", m.Archive)
	}
	if m.Telemetry == nil || m.Telemetry.PointsQueued != 7 || m.Telemetry.WriteErrors != 2 {
		t.Errorf("telemetry metrics = %+v, want 7 queued and 2 errors", m.Telemetry)
	}
}

// memRepo accepts every insert.
type memRepo struct{ archive.Repository }

func (*memRepo) Insert(context.Context, []archive.Record) error { return nil }

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	env.server.cfg.CORS.AllowedOrigins = []string{"http://ui.test"}
	handler := env.server.Handler()

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://ui.test", "http://ui.test"},
		{"http://evil.test", ""},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodOptions, "/api/v1/websocket/send", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight from %s status = %d, want 204", tt.origin, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
			t.Errorf("preflight from %s allow-origin = %q, want %q", tt.origin, got, tt.wantAllow)
		}
	}
}

func TestGzipResponses(t *testing.T) {
	env := newTestEnv(t)

	if status := env.do(t, http.MethodPost, "/mqtt/connect", map[string]any{"broker_url": "mqtt://broker.test"}, nil); status != http.StatusOK {
		t.Fatalf("POST /mqtt/connect status = %d, want 200", status)
	}
	payload := strings.Repeat("x", 256)
	for range 20 {
		if err := env.mqtt.Publish("load/test", payload, mqtttester.PublishOptions{}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	tests := []struct {
		path         string
		wantEncoding string
	}{
		{"/api/v1/mqtt/messages", "gzip"},
		{"/api/v1/health", ""},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, env.http.URL+tt.path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("Content-Encoding"); got != tt.wantEncoding {
			t.Errorf("GET %s Content-Encoding = %q, want %q", tt.path, got, tt.wantEncoding)
		}
	}
}
