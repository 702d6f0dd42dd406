package wstester

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/probekit/internal/clock"
	"github.com/nerrad567/probekit/internal/events"
	"github.com/nerrad567/probekit/internal/tester"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeTransport records every Open call. Tests drive the returned
// connections by invoking handler callbacks directly.
type fakeTransport struct {
	mu      sync.Mutex
	conns   []*fakeConn
	openErr error
}

func (f *fakeTransport) Open(url string, protocols []string, header http.Header, h Handler) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	c := &fakeConn{url: url, protocols: protocols, header: header, handler: h, state: ReadyConnecting}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeTransport) last(t *testing.T) *fakeConn {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		t.Fatal("no transport connection opened")
	}
	return f.conns[len(f.conns)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

type sentFrame struct {
	kind FrameKind
	data string
}

type fakeConn struct {
	url       string
	protocols []string
	header    http.Header
	handler   Handler

	// When sendGate is set, Send signals sendStarted and waits for the gate
	// to close before writing. Set both before the first Send.
	sendGate    chan struct{}
	sendStarted chan struct{}

	mu      sync.Mutex
	state   ReadyState
	sent    []sentFrame
	sendErr error
	closed  int
}

func (c *fakeConn) open(protocol string) {
	c.mu.Lock()
	c.state = ReadyOpen
	c.mu.Unlock()
	c.handler.OnOpen(protocol)
}

func (c *fakeConn) receive(kind FrameKind, data string) {
	c.handler.OnMessage(Frame{Kind: kind, Data: []byte(data)})
}

func (c *fakeConn) drop(code int, reason string) {
	c.mu.Lock()
	c.state = ReadyClosed
	c.mu.Unlock()
	c.handler.OnClose(code, reason)
}

func (c *fakeConn) fail(err error) {
	c.handler.OnError(err)
	c.drop(CloseAbnormal, err.Error())
}

func (c *fakeConn) Send(kind FrameKind, data []byte) error {
	if c.sendGate != nil {
		c.sendStarted <- struct{}{}
		<-c.sendGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentFrame{kind: kind, data: string(data)})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	c.state = ReadyClosed
	return nil
}

func (c *fakeConn) Protocol() string { return "" }

func (c *fakeConn) ReadyState() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) frames() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentFrame(nil), c.sent...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
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

// connect runs Connect on a goroutine, completes the handshake and waits for
// Connect to return.
func (h *harness) connect(url string) *fakeConn {
	h.t.Helper()

	errCh := h.startConnect(url)
	conn := h.waitForConn(h.transport.count())
	conn.open("")

	if err := <-errCh; err != nil {
		h.t.Fatalf("Connect(%q) error = %v", url, err)
	}
	return conn
}

func (h *harness) startConnect(url string) chan error {
	h.t.Helper()

	before := h.transport.count()
	errCh := make(chan error, 1)
	go func() { errCh <- h.tester.Connect(h.t.Context(), url) }()
	h.waitForConn(before + 1)
	return errCh
}

func (h *harness) waitForConn(n int) *fakeConn {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.transport.count() < n {
		if time.Now().After(deadline) {
			h.t.Fatalf("transport opened %d connections, want %d", h.transport.count(), n)
		}
		time.Sleep(time.Millisecond)
	}
	// Open has been called; wait until the engine has adopted the conn.
	for {
		h.tester.mu.Lock()
		adopted := h.tester.conn != nil || h.tester.info.State != tester.StateConnecting
		h.tester.mu.Unlock()
		if adopted {
			break
		}
		if time.Now().After(deadline) {
			h.t.Fatal("engine did not adopt the transport connection")
		}
		time.Sleep(time.Millisecond)
	}
	return h.transport.last(h.t)
}

func wantState(t *testing.T, tr *Tester, want tester.State) {
	t.Helper()
	if got := tr.ConnectionInfo().State; got != want {
		t.Fatalf("State = %v, want %v", got, want)
	}
}

var errBoom = errors.New("boom")
