package wstester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/probekit/internal/clock"
	"github.com/nerrad567/probekit/internal/events"
	"github.com/nerrad567/probekit/internal/msglog"
	"github.com/nerrad567/probekit/internal/tester"
)

// maxOutstandingPings bounds the pings awaiting a pong. Older pings are
// forgotten once the limit is reached.
const maxOutstandingPings = 16

// Option configures a Tester.
type Option func(*Tester)

// WithTransport sets the transport. The default is a GorillaTransport.
func WithTransport(tr Transport) Option {
	return func(t *Tester) { t.transport = tr }
}

// WithClock sets the clock used for timestamps and timers.
func WithClock(c clock.Clock) Option {
	return func(t *Tester) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l tester.Logger) Option {
	return func(t *Tester) {
		if l != nil {
			t.logger = l
		}
	}
}

// ConnectOption overrides connection settings for one Connect call.
type ConnectOption func(*Config)

// WithProtocols requests the given sub-protocols.
func WithProtocols(protocols ...string) ConnectOption {
	return func(c *Config) { c.Protocols = protocols }
}

// WithHeaders sets the handshake headers.
func WithHeaders(headers map[string]string) ConnectOption {
	return func(c *Config) { c.Headers = headers }
}

type ping struct {
	stamp  int64
	sentAt time.Time
}

// Tester is the WebSocket test client engine.
type Tester struct {
	transport Transport
	clock     clock.Clock
	logger    tester.Logger
	bus       *events.Bus

	mu        sync.Mutex
	cfg       Config
	conn      Conn
	gen       uint64
	info      ConnectionInfo
	stats     Stats
	log       *msglog.Log[Message]
	pings     []ping
	manual    bool
	destroyed bool

	// pending receives the outcome of the attempt started by Connect.
	pending chan error

	connectTimer   clock.Timer
	reconnectTimer clock.Timer
	pingTimer      clock.Timer
}

// New creates a disconnected Tester.
func New(cfg Config, opts ...Option) *Tester {
	cfg = cfg.clone()
	cfg.applyDefaults()

	t := &Tester{
		cfg:    cfg,
		clock:  clock.Real(),
		logger: tester.NopLogger{},
		bus:    events.NewBus(),
		log:    msglog.New[Message](cfg.MaxMessages),
		info:   ConnectionInfo{State: tester.StateDisconnected, ReadyState: ReadyClosed},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.transport == nil {
		t.transport = NewGorillaTransport()
	}
	t.bus.SetLogger(t.logger)
	return t
}

// Events returns the bus that carries this engine's events.
func (t *Tester) Events() *events.Bus {
	return t.bus
}

// attempt carries what a transport open needs outside the lock.
type attempt struct {
	gen       uint64
	url       string
	protocols []string
	header    http.Header
	stale     Conn
}

// Connect opens a connection to rawURL and waits until it is open, fails,
// times out, or ctx is done. Cancelling ctx stops the wait but not the
// attempt, whose outcome is still reported through events.
//
// Connecting to a different URL than the previous session clears the
// message log and statistics.
func (t *Tester) Connect(ctx context.Context, rawURL string, opts ...ConnectOption) error {
	if err := ValidateURL(rawURL); err != nil {
		return err
	}

	a, done, err := t.startConnect(rawURL, opts)
	t.bus.Flush()
	if err != nil {
		return err
	}
	closeConn(a.stale)
	t.open(a)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tester) startConnect(rawURL string, opts []ConnectOption) (attempt, chan error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.destroyed:
		return attempt{}, nil, tester.ErrDestroyed
	case t.info.State == tester.StateConnected:
		return attempt{}, nil, tester.ErrAlreadyConnected
	case t.info.State == tester.StateConnecting:
		return attempt{}, nil, tester.ErrConnectInProgress
	}

	if t.cfg.URL != rawURL {
		t.log.Clear()
		events.Post(t.bus, tester.EventMessagesCleared, struct{}{})
		t.stats = Stats{}
	}

	cfg := t.cfg.clone()
	cfg.URL = rawURL
	for _, opt := range opts {
		opt(&cfg)
	}
	t.cfg = cfg
	t.log.SetMax(cfg.MaxMessages)

	stopTimer(&t.reconnectTimer)
	t.manual = false
	t.info.ReconnectCount = 0

	done := make(chan error, 1)
	t.pending = done
	return t.beginAttemptLocked(), done, nil
}

// beginAttemptLocked moves to connecting and arms the connect timeout.
func (t *Tester) beginAttemptLocked() attempt {
	t.gen++
	gen := t.gen

	stale := t.conn
	t.conn = nil
	t.pings = nil

	t.info.URL = t.cfg.URL
	t.info.Protocol = ""
	t.info.ReadyState = ReadyConnecting
	t.setStateLocked(tester.StateConnecting)

	stopTimer(&t.connectTimer)
	t.connectTimer = t.clock.AfterFunc(t.cfg.Timeout, func() { t.connectTimeout(gen) })

	header := make(http.Header, len(t.cfg.Headers))
	for k, v := range t.cfg.Headers {
		header.Set(k, v)
	}

	t.logger.Debug("websocket connecting", "url", t.cfg.URL, "attempt", t.info.ReconnectCount)

	return attempt{
		gen:       gen,
		url:       t.cfg.URL,
		protocols: t.cfg.Protocols,
		header:    header,
		stale:     stale,
	}
}

// open calls the transport outside the lock and records the connection if
// the attempt is still current.
func (t *Tester) open(a attempt) {
	conn, err := t.transport.Open(a.url, a.protocols, a.header, &connHandler{t: t, gen: a.gen})

	stale := t.adopt(a.gen, conn, err)
	t.bus.Flush()
	closeConn(stale)
}

func (t *Tester) adopt(gen uint64, conn Conn, err error) Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return conn
	}
	if err != nil {
		t.failLocked(fmt.Errorf("%w: %w", tester.ErrConnectionFailed, err))
		t.closedLocked(CloseAbnormal, err.Error())
		return conn
	}
	t.conn = conn
	return nil
}

// Disconnect closes the connection and cancels every timer. It is a no-op
// when already disconnected.
func (t *Tester) Disconnect() {
	conn := t.disconnect()
	t.bus.Flush()
	closeConn(conn)
}

func (t *Tester) disconnect() Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return nil
	}
	return t.teardownLocked()
}

// teardownLocked stops the session on behalf of the caller.
func (t *Tester) teardownLocked() Conn {
	idle := t.info.State == tester.StateDisconnected && t.conn == nil

	t.manual = true
	t.stopTimersLocked()
	t.gen++
	t.pings = nil
	t.resolveLocked(tester.ErrConnectAborted)

	conn := t.conn
	t.conn = nil
	if idle {
		return nil
	}

	t.info.ReadyState = ReadyClosed
	t.setStateLocked(tester.StateDisconnected)
	t.systemLocked("connection closed by client")
	if conn != nil {
		events.Post(t.bus, EventDisconnected, CloseInfo{Code: CloseNormal, Reason: "client disconnect"})
	}
	t.logger.Info("websocket disconnected", "url", t.cfg.URL)
	return conn
}

// Send sends payload framed according to format.
//
// A transport write failure is recorded as an error message and emitted as
// EventSendError; Send itself returns nil in that case. The write runs
// without the engine lock held.
func (t *Tester) Send(payload string, format Format) error {
	out, err := t.prepareSend(payload, format)
	if err != nil {
		return err
	}
	t.write(out)
	return nil
}

// SendPing sends a keep-alive ping and records it for latency measurement.
func (t *Tester) SendPing() error {
	t.mu.Lock()
	out, err := t.pingLocked()
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.write(out)
	return nil
}

// outbound is a frame built under the lock and written after it is
// released.
type outbound struct {
	conn Conn
	gen  uint64
	kind FrameKind
	msg  Message

	isPing bool
	stamp  int64
}

func (t *Tester) prepareSend(payload string, format Format) (outbound, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkSendLocked(payload, format); err != nil {
		return outbound{}, err
	}
	return t.outboundLocked(payload, format), nil
}

// pingLocked builds a ping frame and registers it as outstanding before it
// is written, so a fast pong still finds it.
func (t *Tester) pingLocked() (outbound, error) {
	now := t.clock.Now()
	stamp := now.UnixMilli()
	payload := fmt.Sprintf(`{"type":"ping","timestamp":%d}`, stamp)

	if err := t.checkSendLocked(payload, FormatJSON); err != nil {
		return outbound{}, err
	}
	out := t.outboundLocked(payload, FormatJSON)
	out.isPing = true
	out.stamp = stamp

	if len(t.pings) == maxOutstandingPings {
		t.pings = t.pings[1:]
	}
	t.pings = append(t.pings, ping{stamp: stamp, sentAt: now})
	return out, nil
}

func (t *Tester) checkSendLocked(payload string, format Format) error {
	if t.destroyed {
		return tester.ErrDestroyed
	}
	if t.info.State != tester.StateConnected || t.conn == nil {
		return tester.ErrNotConnected
	}
	if !format.Valid() {
		return fmt.Errorf("%w: %q", tester.ErrInvalidFormat, format)
	}
	if len(payload) > t.cfg.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit",
			tester.ErrMessageTooLarge, len(payload), t.cfg.MaxMessageSize)
	}
	return nil
}

func (t *Tester) outboundLocked(payload string, format Format) outbound {
	kind := FrameText
	if format == FormatBinary {
		kind = FrameBinary
	}
	return outbound{
		conn: t.conn,
		gen:  t.gen,
		kind: kind,
		msg: Message{
			ID:        tester.NewID(),
			Type:      tester.MessageSent,
			Content:   payload,
			Timestamp: t.clock.Now(),
			Size:      len(payload),
			Format:    format,
			Endpoint:  t.info.URL,
		},
	}
}

// write sends the frame and records the outcome. The outcome is dropped if
// the session changed while the write was in flight.
func (t *Tester) write(out outbound) {
	err := out.conn.Send(out.kind, []byte(out.msg.Content))

	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if out.gen != t.gen || t.destroyed {
		return
	}
	if err != nil {
		if out.isPing {
			t.forgetPingLocked(out.stamp)
		}
		failed := out.msg
		failed.Type = tester.MessageError
		failed.Content = "send failed: " + err.Error()
		t.log.Append(failed)
		t.logger.Warn("websocket send failed", "url", t.cfg.URL, "error", err)
		events.Post(t.bus, EventSendError, err)
		return
	}

	t.log.Append(out.msg)
	t.stats.MessagesSent++
	t.stats.BytesSent += int64(out.msg.Size)
	t.stats.LastActivity = out.msg.Timestamp
	events.Post(t.bus, EventMessageSent, out.msg)
}

func (t *Tester) forgetPingLocked(stamp int64) {
	for i, p := range t.pings {
		if p.stamp == stamp {
			t.pings = append(t.pings[:i], t.pings[i+1:]...)
			return
		}
	}
}

// ConnectionInfo returns a snapshot of the connection.
func (t *Tester) ConnectionInfo() ConnectionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := t.info
	if t.conn != nil {
		info.ReadyState = t.conn.ReadyState()
	}
	return info
}

// Stats returns a snapshot of the statistics. ConnectionDuration is live
// while connected.
func (t *Tester) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	if t.info.State == tester.StateConnected && !t.info.ConnectedAt.IsZero() {
		s.ConnectionDuration = t.clock.Now().Sub(t.info.ConnectedAt)
	}
	return s
}

// Messages returns a copy of the message log, oldest first.
func (t *Tester) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.Items()
}

// ClearMessages empties the message log.
func (t *Tester) ClearMessages() {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log.Clear()
	events.Post(t.bus, tester.EventMessagesCleared, struct{}{})
}

// Config returns a copy of the current configuration.
func (t *Tester) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg.clone()
}

// UpdateConfig applies fn to a copy of the configuration. Changes take
// effect on the next Connect.
func (t *Tester) UpdateConfig(fn func(*Config)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := t.cfg.clone()
	fn(&cfg)
	cfg.applyDefaults()
	t.cfg = cfg
}

// Destroy disconnects, drops the message log and removes every listener.
// Every later operation returns tester.ErrDestroyed.
func (t *Tester) Destroy() {
	conn := t.destroy()
	t.bus.Flush()
	t.bus.Clear()
	closeConn(conn)
}

func (t *Tester) destroy() Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return nil
	}
	conn := t.teardownLocked()
	t.destroyed = true
	t.log.Clear()
	return conn
}

// connectTimeout fails an attempt that did not open in time.
func (t *Tester) connectTimeout(gen uint64) {
	conn := t.expire(gen)
	t.bus.Flush()
	closeConn(conn)
}

func (t *Tester) expire(gen uint64) Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed || t.info.State != tester.StateConnecting {
		return nil
	}
	t.connectTimer = nil

	conn := t.conn
	t.failLocked(fmt.Errorf("%w after %v", tester.ErrConnectTimeout, t.cfg.Timeout))
	t.closedLocked(CloseAbnormal, "connect timeout")
	return conn
}

// reconnect runs when the reconnect timer fires.
func (t *Tester) reconnect(gen uint64) {
	a, ok := t.startReconnect(gen)
	t.bus.Flush()
	if !ok {
		return
	}
	closeConn(a.stale)
	t.open(a)
}

func (t *Tester) startReconnect(gen uint64) (attempt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed || t.manual || t.info.State != tester.StateReconnecting {
		return attempt{}, false
	}
	t.reconnectTimer = nil
	return t.beginAttemptLocked(), true
}

// keepAlive re-arms the ping timer and sends a ping.
func (t *Tester) keepAlive(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.destroyed || t.info.State != tester.StateConnected {
		t.mu.Unlock()
		return
	}
	t.startPingLocked()
	out, err := t.pingLocked()
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("websocket keep-alive ping skipped", "error", err)
		return
	}
	t.write(out)
}

func (t *Tester) startPingLocked() {
	stopTimer(&t.pingTimer)
	if t.cfg.PingInterval <= 0 {
		return
	}
	gen := t.gen
	t.pingTimer = t.clock.AfterFunc(t.cfg.PingInterval, func() { t.keepAlive(gen) })
}

func (t *Tester) handleOpen(gen uint64, protocol string) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return
	}
	stopTimer(&t.connectTimer)

	t.info.ConnectedAt = t.clock.Now()
	t.info.Protocol = protocol
	t.info.ReadyState = ReadyOpen
	t.info.ReconnectCount = 0
	t.info.LastError = ""
	t.setStateLocked(tester.StateConnected)

	t.startPingLocked()
	t.systemLocked("connection established")
	events.Post(t.bus, EventConnected, t.info)
	t.logger.Info("websocket connected", "url", t.cfg.URL, "protocol", protocol)
	t.resolveLocked(nil)
}

func (t *Tester) handleMessage(gen uint64, f Frame) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return
	}

	now := t.clock.Now()
	format := ClassifyPayload(f.Kind, f.Data)
	if format == FormatJSON {
		t.observePongLocked(f.Data, now)
	}

	msg := Message{
		ID:        tester.NewID(),
		Type:      tester.MessageReceived,
		Content:   strings.ToValidUTF8(string(f.Data), "\uFFFD"),
		Timestamp: now,
		Size:      len(f.Data),
		Format:    format,
		Endpoint:  t.info.URL,
	}
	t.log.Append(msg)
	t.stats.MessagesReceived++
	t.stats.BytesReceived += int64(msg.Size)
	t.stats.LastActivity = now
	events.Post(t.bus, EventMessageReceived, msg)
}

// observePongLocked records latency for a pong answering an outstanding
// ping. A pong without a timestamp answers the newest ping.
func (t *Tester) observePongLocked(data []byte, now time.Time) {
	var pong struct {
		Type      string   `json:"type"`
		Timestamp *float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &pong); err != nil || pong.Type != "pong" || len(t.pings) == 0 {
		return
	}

	idx := len(t.pings) - 1
	if pong.Timestamp != nil {
		idx = -1
		for i, p := range t.pings {
			if p.stamp == int64(*pong.Timestamp) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
	}

	sentAt := t.pings[idx].sentAt
	t.pings = append(t.pings[:idx], t.pings[idx+1:]...)
	t.stats.recordLatency(now.Sub(sentAt))
}

func (t *Tester) handleError(gen uint64, err error) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return
	}
	t.failLocked(fmt.Errorf("%w: %w", tester.ErrConnectionFailed, err))
}

func (t *Tester) handleClose(gen uint64, code int, reason string) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return
	}
	t.closedLocked(code, reason)
}

// failLocked records a transport fault.
func (t *Tester) failLocked(err error) {
	stopTimer(&t.connectTimer)

	t.info.LastError = err.Error()
	t.setStateLocked(tester.StateError)
	t.errorLocked("connection error: " + err.Error())
	events.Post(t.bus, tester.EventError, err)
	t.logger.Warn("websocket connection error", "url", t.cfg.URL, "error", err)
	t.resolveLocked(err)
}

// closedLocked handles the end of a transport connection and applies the
// reconnect policy.
func (t *Tester) closedLocked(code int, reason string) {
	stopTimer(&t.connectTimer)
	stopTimer(&t.pingTimer)

	t.gen++
	t.conn = nil
	t.pings = nil
	t.info.ReadyState = ReadyClosed
	t.resolveLocked(fmt.Errorf("%w: code %d %s", tester.ErrConnectionClosed, code, reason))

	limit := t.cfg.ReconnectAttempts
	switch {
	case t.manual:
		t.setStateLocked(tester.StateDisconnected)
		t.systemLocked(closeText(code, reason))

	case t.info.ReconnectCount < limit:
		t.info.ReconnectCount++
		t.stats.ReconnectCount++
		t.setStateLocked(tester.StateReconnecting)
		t.systemLocked(fmt.Sprintf("connection lost, reconnecting (%d/%d)", t.info.ReconnectCount, limit))
		gen := t.gen
		t.reconnectTimer = t.clock.AfterFunc(t.cfg.ReconnectInterval, func() { t.reconnect(gen) })
		t.logger.Info("websocket reconnect scheduled",
			"url", t.cfg.URL,
			"attempt", t.info.ReconnectCount,
			"limit", limit,
			"delay", t.cfg.ReconnectInterval,
		)

	case limit > 0:
		err := fmt.Errorf("%w after %d attempts", tester.ErrReconnectExhausted, limit)
		t.systemLocked(closeText(code, reason))
		t.info.LastError = err.Error()
		t.setStateLocked(tester.StateError)
		t.errorLocked(err.Error())
		events.Post(t.bus, tester.EventError, err)
		t.logger.Error("websocket reconnect attempts exhausted", "url", t.cfg.URL, "limit", limit)

	default:
		t.systemLocked(closeText(code, reason))
		if t.info.State != tester.StateError {
			t.setStateLocked(tester.StateDisconnected)
		}
	}

	events.Post(t.bus, EventDisconnected, CloseInfo{Code: code, Reason: reason})
}

func (t *Tester) setStateLocked(s tester.State) {
	t.info.State = s
	events.Post(t.bus, tester.EventStateChange, s)
}

func (t *Tester) systemLocked(content string) {
	t.log.Append(Message{
		ID:        tester.NewID(),
		Type:      tester.MessageSystem,
		Content:   content,
		Timestamp: t.clock.Now(),
		Format:    FormatText,
	})
}

func (t *Tester) errorLocked(content string) {
	t.log.Append(Message{
		ID:        tester.NewID(),
		Type:      tester.MessageError,
		Content:   content,
		Timestamp: t.clock.Now(),
		Format:    FormatText,
	})
}

// resolveLocked delivers the outcome to a waiting Connect, if any.
func (t *Tester) resolveLocked(err error) {
	if t.pending == nil {
		return
	}
	t.pending <- err
	t.pending = nil
}

func (t *Tester) stopTimersLocked() {
	stopTimer(&t.connectTimer)
	stopTimer(&t.reconnectTimer)
	stopTimer(&t.pingTimer)
}

func stopTimer(timer *clock.Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}

func closeConn(c Conn) {
	if c != nil {
		_ = c.Close()
	}
}

func closeText(code int, reason string) string {
	if reason == "" {
		reason = "unknown"
	}
	return fmt.Sprintf("connection closed (code: %d, reason: %s)", code, reason)
}

// connHandler routes transport callbacks for one attempt.
type connHandler struct {
	t   *Tester
	gen uint64
}

func (h *connHandler) OnOpen(protocol string)          { h.t.handleOpen(h.gen, protocol) }
func (h *connHandler) OnMessage(f Frame)               { h.t.handleMessage(h.gen, f) }
func (h *connHandler) OnError(err error)               { h.t.handleError(h.gen, err) }
func (h *connHandler) OnClose(code int, reason string) { h.t.handleClose(h.gen, code, reason) }
