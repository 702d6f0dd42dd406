package mqtttester

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/probekit/internal/clock"
	"github.com/nerrad567/probekit/internal/events"
	"github.com/nerrad567/probekit/internal/tester"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var errBoom = errors.New("boom")

// fakeTransport records every Open call. Tests drive the returned clients
// by invoking handler callbacks directly.
type fakeTransport struct {
	mu      sync.Mutex
	clients []*fakeClient
	openErr error

	// Errors applied to acknowledgements of clients opened from now on.
	publishErr     error
	subscribeErr   error
	unsubscribeErr error
}

func (f *fakeTransport) Open(opts ClientOptions, h Handler) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	c := &fakeClient{
		opts:           opts,
		handler:        h,
		publishErr:     f.publishErr,
		subscribeErr:   f.subscribeErr,
		unsubscribeErr: f.unsubscribeErr,
	}
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeTransport) last(t *testing.T) *fakeClient {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		t.Fatal("no client opened")
	}
	return f.clients[len(f.clients)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

type published struct {
	topic   string
	payload string
	qos     byte
	retain  bool
}

type subscribed struct {
	filter string
	qos    byte
}

// fakeClient acknowledges every request synchronously on the caller's
// goroutine, unless holdAcks is set; then acks wait for releaseAcks.
type fakeClient struct {
	opts    ClientOptions
	handler Handler

	publishErr     error
	subscribeErr   error
	unsubscribeErr error

	mu           sync.Mutex
	holdAcks     bool
	held         []func()
	connects     int
	ends         int
	publishes    []published
	subscribes   []subscribed
	unsubscribes []string
}

func (c *fakeClient) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
}

func (c *fakeClient) Publish(topic string, payload []byte, qos byte, retain bool, done func(error)) {
	c.mu.Lock()
	c.publishes = append(c.publishes, published{topic, string(payload), qos, retain})
	err := c.publishErr
	c.mu.Unlock()
	c.ack(func() { done(err) })
}

func (c *fakeClient) Subscribe(filter string, qos byte, done func(error)) {
	c.mu.Lock()
	c.subscribes = append(c.subscribes, subscribed{filter, qos})
	err := c.subscribeErr
	c.mu.Unlock()
	c.ack(func() { done(err) })
}

func (c *fakeClient) Unsubscribe(filter string, done func(error)) {
	c.mu.Lock()
	c.unsubscribes = append(c.unsubscribes, filter)
	err := c.unsubscribeErr
	c.mu.Unlock()
	c.ack(func() { done(err) })
}

func (c *fakeClient) ack(fn func()) {
	c.mu.Lock()
	if c.holdAcks {
		c.held = append(c.held, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// releaseAcks delivers every held ack and stops holding new ones.
func (c *fakeClient) releaseAcks() {
	c.mu.Lock()
	held := c.held
	c.held = nil
	c.holdAcks = false
	c.mu.Unlock()
	for _, fn := range held {
		fn()
	}
}

func (c *fakeClient) hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdAcks = true
}

func (c *fakeClient) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ends++
}

func (c *fakeClient) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *fakeClient) endCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ends
}

func (c *fakeClient) subscribeCalls() []subscribed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]subscribed(nil), c.subscribes...)
}

func (c *fakeClient) receive(topicName, payload string) {
	c.handler.OnMessage(Inbound{Topic: topicName, Payload: []byte(payload)})
}

// drop reports a lost session the way the paho transport does.
func (c *fakeClient) drop(err error) {
	c.handler.OnOffline()
	c.handler.OnError(err)
	c.handler.OnClose()
}

// fail reports a refused connect.
func (c *fakeClient) fail(err error) {
	c.handler.OnError(err)
	c.handler.OnClose()
}

type harness struct {
	t         *testing.T
	tester    *Tester
	transport *fakeTransport
	clock     *clock.Fake

	mu     sync.Mutex
	states []tester.State
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{t: t, transport: &fakeTransport{}, clock: clock.NewFake(epoch)}
	h.tester = New(cfg, WithTransport(h.transport), WithClock(h.clock))
	events.On(h.tester.Events(), tester.EventStateChange, func(s tester.State) {
		h.mu.Lock()
		h.states = append(h.states, s)
		h.mu.Unlock()
	})
	return h
}

func (h *harness) stateLog() []tester.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]tester.State(nil), h.states...)
}

// connect runs Connect on a goroutine, accepts the session and waits for
// Connect to return.
func (h *harness) connect(brokerURL string, opts ...ConnectOption) *fakeClient {
	h.t.Helper()

	errCh := h.startConnect(brokerURL, opts...)
	client := h.transport.last(h.t)
	client.handler.OnConnect()

	if err := <-errCh; err != nil {
		h.t.Fatalf("Connect(%q) error = %v", brokerURL, err)
	}
	return client
}

// startConnect runs Connect on a goroutine and waits until the new client
// has been asked to connect.
func (h *harness) startConnect(brokerURL string, opts ...ConnectOption) chan error {
	h.t.Helper()

	want := h.transport.count() + 1
	errCh := make(chan error, 1)
	go func() { errCh <- h.tester.Connect(h.t.Context(), brokerURL, opts...) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.transport.count() < want || h.transport.last(h.t).connectCount() == 0 {
		if time.Now().After(deadline) {
			h.t.Fatalf("no client connect after %d opens", h.transport.count())
		}
		time.Sleep(time.Millisecond)
	}
	return errCh
}

func wantState(t *testing.T, tr *Tester, want tester.State) {
	t.Helper()
	if got := tr.ConnectionInfo().State; got != want {
		t.Fatalf("State = %v, want %v", got, want)
	}
}
