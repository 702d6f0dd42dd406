package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/probekit/internal/archive"
	"github.com/nerrad567/probekit/internal/infrastructure/config"
	"github.com/nerrad567/probekit/internal/infrastructure/logging"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/internal/wstester"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// stubBroker is an in-process MQTT transport. Clients accept every request
// and echo publishes to matching subscribers of the same client.
type stubBroker struct {
	mu     sync.Mutex
	refuse error
	opens  []mqtttester.ClientOptions
}

func (b *stubBroker) Open(opts mqtttester.ClientOptions, h mqtttester.Handler) (mqtttester.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens = append(b.opens, opts)
	return &stubClient{broker: b, handler: h, refuse: b.refuse}, nil
}

func (b *stubBroker) setRefuse(err error) {
	b.mu.Lock()
	b.refuse = err
	b.mu.Unlock()
}

func (b *stubBroker) lastOpen() mqtttester.ClientOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens[len(b.opens)-1]
}

type stubClient struct {
	broker  *stubBroker
	handler mqtttester.Handler
	refuse  error
}

func (c *stubClient) Connect() {
	if c.refuse != nil {
		c.handler.OnError(c.refuse)
		c.handler.OnClose()
		return
	}
	c.handler.OnConnect()
}

func (c *stubClient) Publish(topic string, payload []byte, qos byte, retain bool, done func(error)) {
	done(nil)
	c.handler.OnMessage(mqtttester.Inbound{Topic: topic, Payload: payload, QoS: qos, Retain: retain})
}

func (c *stubClient) Subscribe(_ string, _ byte, done func(error)) { done(nil) }
func (c *stubClient) Unsubscribe(_ string, done func(error))       { done(nil) }
func (c *stubClient) End()                                         {}

// newEchoServer is a WebSocket endpoint that echoes every frame.
func newEchoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type testEnv struct {
	server *Server
	http   *httptest.Server
	ws     *wstester.Tester
	mqtt   *mqtttester.Tester
	broker *stubBroker
}

type envOption func(*Deps)

func withSecret(secret string) envOption {
	return func(d *Deps) { d.Security.JWT.Secret = secret }
}

func withArchive(repo archive.Repository) envOption {
	return func(d *Deps) { d.Archive = repo }
}

func withRateLimit(rps float64, burst int) envOption {
	return func(d *Deps) {
		d.Config.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: rps, Burst: burst}
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	wsCfg := wstester.DefaultConfig()
	wsCfg.PingInterval = 0
	wsCfg.ReconnectAttempts = 0
	ws := wstester.New(wsCfg)

	broker := &stubBroker{}
	mqCfg := mqtttester.DefaultConfig()
	mqCfg.MaxReconnectTimes = 0
	mq := mqtttester.New(mqCfg, mqtttester.WithTransport(broker))

	deps := Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		Relay:     config.RelayConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:    logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard),
		WebSocket: ws,
		MQTT:      mq,
		Version:   "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		httpSrv.Close()
		cancel()
		srv.Close()
		ws.Destroy()
		mq.Destroy()
	})

	return &testEnv{server: srv, http: httpSrv, ws: ws, mqtt: mq, broker: broker}
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, out any, header ...string) int {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.http.URL+"/api/v1"+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
