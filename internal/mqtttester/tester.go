package mqtttester

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/probekit/internal/clock"
	"github.com/nerrad567/probekit/internal/events"
	"github.com/nerrad567/probekit/internal/msglog"
	"github.com/nerrad567/probekit/internal/tester"
	"github.com/nerrad567/probekit/internal/topic"
)

// Option configures a Tester.
type Option func(*Tester)

// WithTransport sets the transport. The default is a PahoTransport.
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

// ConnectOption overrides connection settings for one Connect call. The
// override is kept for later connects.
type ConnectOption func(*Config)

// WithClientID sets the client ID.
func WithClientID(id string) ConnectOption {
	return func(c *Config) {
		if id != "" {
			c.ClientID = id
		}
	}
}

// WithCredentials sets the username and password.
func WithCredentials(username, password string) ConnectOption {
	return func(c *Config) {
		c.Username = username
		c.Password = password
	}
}

// Tester is the MQTT test client engine.
type Tester struct {
	transport Transport
	clock     clock.Clock
	logger    tester.Logger
	bus       *events.Bus

	mu        sync.Mutex
	cfg       Config
	client    Client
	gen       uint64
	info      ConnectionInfo
	stats     Stats
	log       *msglog.Log[Message]
	subs      map[string]*Subscription
	manual    bool
	destroyed bool

	// pending receives the outcome of the attempt started by Connect.
	pending chan error

	connectTimer   clock.Timer
	reconnectTimer clock.Timer
}

// New creates a disconnected Tester.
func New(cfg Config, opts ...Option) *Tester {
	cfg.applyDefaults()

	t := &Tester{
		cfg:    cfg,
		clock:  clock.Real(),
		logger: tester.NopLogger{},
		bus:    events.NewBus(),
		log:    msglog.New[Message](cfg.MaxMessages),
		subs:   make(map[string]*Subscription),
		info: ConnectionInfo{
			State:    tester.StateDisconnected,
			ClientID: cfg.ClientID,
			Protocol: cfg.Protocol,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.transport == nil {
		t.transport = NewPahoTransport()
	}
	t.bus.SetLogger(t.logger)
	return t
}

// Events returns the bus that carries this engine's events.
func (t *Tester) Events() *events.Bus {
	return t.bus
}

// attempt carries what a client open needs outside the lock.
type attempt struct {
	gen   uint64
	opts  ClientOptions
	stale Client
}

// Connect connects to brokerURL and waits until the session is up, fails,
// times out, or ctx is done. An empty brokerURL reuses the configured one.
// Cancelling ctx stops the wait but not the attempt.
func (t *Tester) Connect(ctx context.Context, brokerURL string, opts ...ConnectOption) error {
	a, done, err := t.startConnect(brokerURL, opts)
	t.bus.Flush()
	if err != nil {
		return err
	}
	endClient(a.stale)
	t.open(a)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tester) startConnect(brokerURL string, opts []ConnectOption) (attempt, chan error, error) {
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

	cfg := t.cfg
	if brokerURL != "" {
		cfg.BrokerURL = brokerURL
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ValidateBrokerURL(BuildBrokerURL(cfg)); err != nil {
		return attempt{}, nil, err
	}
	t.cfg = cfg
	t.log.SetMax(cfg.MaxMessages)

	stopTimer(&t.reconnectTimer)
	t.manual = false
	t.info.ReconnectCount = 0
	t.info.LastError = ""

	done := make(chan error, 1)
	t.pending = done
	return t.beginAttemptLocked(), done, nil
}

// beginAttemptLocked moves to connecting and arms the connect timeout.
func (t *Tester) beginAttemptLocked() attempt {
	t.gen++
	gen := t.gen

	stale := t.client
	t.client = nil

	full := BuildBrokerURL(t.cfg)
	t.info.BrokerURL = t.cfg.BrokerURL
	t.info.ClientID = t.cfg.ClientID
	t.info.Protocol = brokerScheme(full)
	t.setStateLocked(tester.StateConnecting)

	stopTimer(&t.connectTimer)
	t.connectTimer = t.clock.AfterFunc(t.cfg.ConnectTimeout, func() { t.connectTimeout(gen) })

	t.logger.Debug("mqtt connecting", "broker", full, "client_id", t.cfg.ClientID)

	return attempt{
		gen: gen,
		opts: ClientOptions{
			BrokerURL:             full,
			ClientID:              t.cfg.ClientID,
			Username:              t.cfg.Username,
			Password:              t.cfg.Password,
			KeepAlive:             t.cfg.KeepAlive,
			CleanSession:          t.cfg.CleanSession,
			ConnectTimeout:        t.cfg.ConnectTimeout,
			TLSInsecureSkipVerify: t.cfg.TLSInsecureSkipVerify,
		},
		stale: stale,
	}
}

// open builds the client outside the lock, records it if the attempt is
// still current, then starts the connect.
func (t *Tester) open(a attempt) {
	client, err := t.transport.Open(a.opts, &clientHandler{t: t, gen: a.gen})

	adopted, discard := t.adopt(a.gen, client, err)
	t.bus.Flush()
	endClient(discard)
	if adopted {
		client.Connect()
	}
}

func (t *Tester) adopt(gen uint64, client Client, err error) (bool, Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return false, client
	}
	if err != nil {
		t.failLocked(fmt.Errorf("%w: %w", tester.ErrConnectionFailed, err))
		return false, t.closedLocked()
	}
	t.client = client
	return true, nil
}

// Disconnect ends the session and cancels every timer. Subscriptions are
// kept for the next connect. It is a no-op when already disconnected.
func (t *Tester) Disconnect() {
	client := t.disconnect()
	t.bus.Flush()
	endClient(client)
}

func (t *Tester) disconnect() Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return nil
	}
	return t.teardownLocked()
}

func (t *Tester) teardownLocked() Client {
	idle := t.info.State == tester.StateDisconnected && t.client == nil

	t.manual = true
	stopTimer(&t.connectTimer)
	stopTimer(&t.reconnectTimer)
	t.gen++
	t.resolveLocked(tester.ErrConnectAborted)

	client := t.client
	t.client = nil
	if idle {
		return nil
	}

	t.setStateLocked(tester.StateDisconnected)
	t.systemLocked("MQTT connection closed by client")
	events.Post(t.bus, EventDisconnected, t.info)
	t.logger.Info("mqtt disconnected", "broker", t.info.BrokerURL)
	return client
}

// Publish sends payload to topicName. The returned error covers validation
// only; the broker's acknowledgement arrives as EventMessagePublished or
// EventPublishError.
func (t *Tester) Publish(topicName, payload string, opts PublishOptions) error {
	msg, client, gen, err := t.preparePublish(topicName, payload, opts)
	if err != nil {
		return err
	}
	client.Publish(topicName, []byte(payload), opts.QoS, opts.Retain, func(err error) {
		t.publishDone(gen, msg, err)
	})
	return nil
}

func (t *Tester) preparePublish(topicName, payload string, opts PublishOptions) (Message, Client, uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkConnectedLocked(); err != nil {
		return Message{}, nil, 0, err
	}
	if err := topic.ValidateTopic(topicName); err != nil {
		return Message{}, nil, 0, err
	}
	if opts.QoS > maxQoS {
		return Message{}, nil, 0, fmt.Errorf("%w: got %d", ErrInvalidQoS, opts.QoS)
	}
	if len(payload) > t.cfg.MaxPayloadSize {
		return Message{}, nil, 0, fmt.Errorf("%w: %d bytes exceeds the %d byte limit",
			tester.ErrMessageTooLarge, len(payload), t.cfg.MaxPayloadSize)
	}

	msg := Message{
		ID:        tester.NewID(),
		Type:      tester.MessagePublished,
		Topic:     topicName,
		Payload:   payload,
		QoS:       opts.QoS,
		Retain:    opts.Retain,
		Timestamp: t.clock.Now(),
		Size:      len(payload),
		Endpoint:  t.info.BrokerURL,
	}
	return msg, t.client, t.gen, nil
}

// publishDone records a publish acknowledgement. Acks for a session that
// has since ended are ignored.
func (t *Tester) publishDone(gen uint64, msg Message, err error) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		t.logger.Debug("mqtt stale publish ack ignored", "topic", msg.Topic)
		return
	}

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPublishFailed, err)
		failed := msg
		failed.Type = tester.MessageError
		failed.Payload = "publish failed: " + err.Error()
		t.log.Append(failed)
		t.logger.Warn("mqtt publish failed", "topic", msg.Topic, "error", err)
		events.Post(t.bus, EventPublishError, err)
		return
	}

	t.log.Append(msg)
	t.stats.MessagesPublished++
	t.stats.BytesPublished += int64(msg.Size)
	t.stats.LastActivity = t.clock.Now()
	events.Post(t.bus, EventMessagePublished, msg)
}

// Subscribe registers filter at qos. The subscription is recorded once the
// broker grants it.
func (t *Tester) Subscribe(filter string, qos byte) error {
	client, gen, err := t.prepareSubscribe(filter, qos)
	if err != nil {
		return err
	}
	client.Subscribe(filter, qos, func(err error) {
		t.subscribeDone(gen, filter, qos, err)
	})
	return nil
}

func (t *Tester) prepareSubscribe(filter string, qos byte) (Client, uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkConnectedLocked(); err != nil {
		return nil, 0, err
	}
	if err := topic.ValidateFilter(filter); err != nil {
		return nil, 0, err
	}
	if qos > maxQoS {
		return nil, 0, fmt.Errorf("%w: got %d", ErrInvalidQoS, qos)
	}
	return t.client, t.gen, nil
}

func (t *Tester) subscribeDone(gen uint64, filter string, qos byte, err error) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		t.logger.Debug("mqtt stale subscribe ack ignored", "filter", filter)
		return
	}

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, filter, err)
		t.errorLocked("subscribe failed: " + err.Error())
		t.logger.Warn("mqtt subscribe failed", "filter", filter, "error", err)
		events.Post(t.bus, EventSubscribeError, err)
		return
	}

	sub, ok := t.subs[filter]
	if !ok {
		sub = &Subscription{ID: tester.NewID(), Filter: filter}
		t.subs[filter] = sub
	}
	sub.QoS = qos
	sub.SubscribedAt = t.clock.Now()
	t.stats.SubscriptionCount = len(t.subs)

	t.systemLocked(fmt.Sprintf("subscribed to %s (QoS: %d)", filter, qos))
	events.Post(t.bus, EventSubscribed, *sub)
}

// Unsubscribe removes filter. The subscription stays registered if the
// broker rejects the request.
func (t *Tester) Unsubscribe(filter string) error {
	client, gen, err := t.prepareUnsubscribe(filter)
	if err != nil {
		return err
	}
	client.Unsubscribe(filter, func(err error) {
		t.unsubscribeDone(gen, filter, err)
	})
	return nil
}

func (t *Tester) prepareUnsubscribe(filter string) (Client, uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkConnectedLocked(); err != nil {
		return nil, 0, err
	}
	if err := topic.ValidateFilter(filter); err != nil {
		return nil, 0, err
	}
	return t.client, t.gen, nil
}

func (t *Tester) unsubscribeDone(gen uint64, filter string, err error) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		t.logger.Debug("mqtt stale unsubscribe ack ignored", "filter", filter)
		return
	}

	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, filter, err)
		t.errorLocked("unsubscribe failed: " + err.Error())
		t.logger.Warn("mqtt unsubscribe failed", "filter", filter, "error", err)
		events.Post(t.bus, EventUnsubscribeError, err)
		return
	}

	delete(t.subs, filter)
	t.stats.SubscriptionCount = len(t.subs)
	t.systemLocked("unsubscribed from " + filter)
	events.Post(t.bus, EventUnsubscribed, filter)
}

// ClearAllSubscriptions unsubscribes every registered filter. While
// disconnected the filters are dropped locally so they are not replayed.
func (t *Tester) ClearAllSubscriptions() {
	filters, client, gen := t.clearSubscriptions()
	t.bus.Flush()

	for _, filter := range filters {
		client.Unsubscribe(filter, func(err error) {
			t.unsubscribeDone(gen, filter, err)
		})
	}
}

func (t *Tester) clearSubscriptions() ([]string, Client, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return nil, nil, 0
	}
	if t.info.State == tester.StateConnected && t.client != nil {
		return t.sortedFiltersLocked(), t.client, t.gen
	}

	if len(t.subs) > 0 {
		clear(t.subs)
		t.stats.SubscriptionCount = 0
		t.systemLocked("subscriptions cleared")
	}
	return nil, nil, 0
}

func (t *Tester) checkConnectedLocked() error {
	if t.destroyed {
		return tester.ErrDestroyed
	}
	if t.info.State != tester.StateConnected || t.client == nil {
		return tester.ErrNotConnected
	}
	return nil
}

// ConnectionInfo returns a snapshot of the connection.
func (t *Tester) ConnectionInfo() ConnectionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
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

// Subscriptions returns the registered subscriptions ordered by filter.
func (t *Tester) Subscriptions() []Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Subscription, 0, len(t.subs))
	for _, filter := range t.sortedFiltersLocked() {
		out = append(out, *t.subs[filter])
	}
	return out
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
	return t.cfg
}

// UpdateConfig applies fn to a copy of the configuration. Changes take
// effect on the next Connect.
func (t *Tester) UpdateConfig(fn func(*Config)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := t.cfg
	fn(&cfg)
	cfg.applyDefaults()
	t.cfg = cfg
}

// Destroy disconnects, drops the message log and subscriptions, and removes
// every listener. Every later operation returns tester.ErrDestroyed.
func (t *Tester) Destroy() {
	client := t.destroy()
	t.bus.Flush()
	t.bus.Clear()
	endClient(client)
}

func (t *Tester) destroy() Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return nil
	}
	client := t.teardownLocked()
	t.destroyed = true
	t.log.Clear()
	clear(t.subs)
	t.stats.SubscriptionCount = 0
	return client
}

func (t *Tester) connectTimeout(gen uint64) {
	client := t.expire(gen)
	t.bus.Flush()
	endClient(client)
}

func (t *Tester) expire(gen uint64) Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed || t.info.State != tester.StateConnecting {
		return nil
	}
	t.connectTimer = nil

	t.failLocked(fmt.Errorf("%w after %v", tester.ErrConnectTimeout, t.cfg.ConnectTimeout))
	return t.closedLocked()
}

// reconnect runs when the reconnect timer fires.
func (t *Tester) reconnect(gen uint64) {
	a, ok := t.startReconnect(gen)
	t.bus.Flush()
	if !ok {
		return
	}
	endClient(a.stale)
	t.open(a)
}

func (t *Tester) startReconnect(gen uint64) (attempt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed || t.manual || t.info.State != tester.StateReconnecting {
		return attempt{}, false
	}
	t.reconnectTimer = nil

	t.info.ReconnectCount++
	t.stats.ReconnectCount++
	t.systemLocked(fmt.Sprintf("reconnect attempt %d/%d", t.info.ReconnectCount, t.cfg.MaxReconnectTimes))
	return t.beginAttemptLocked(), true
}

func (t *Tester) handleConnect(gen uint64) {
	filters, client := t.connected(gen)
	t.bus.Flush()

	for _, sub := range filters {
		client.Subscribe(sub.Filter, sub.QoS, func(err error) {
			t.resubscribeDone(gen, sub.Filter, sub.QoS, err)
		})
	}
}

func (t *Tester) connected(gen uint64) ([]Subscription, Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return nil, nil
	}
	stopTimer(&t.connectTimer)

	t.info.ConnectedAt = t.clock.Now()
	t.info.ReconnectCount = 0
	t.info.LastError = ""
	t.setStateLocked(tester.StateConnected)

	t.systemLocked("MQTT connection established")
	events.Post(t.bus, EventConnected, t.info)
	t.logger.Info("mqtt connected", "broker", t.info.BrokerURL, "client_id", t.info.ClientID)
	t.resolveLocked(nil)

	resubscribe := make([]Subscription, 0, len(t.subs))
	for _, filter := range t.sortedFiltersLocked() {
		resubscribe = append(resubscribe, *t.subs[filter])
	}
	return resubscribe, t.client
}

func (t *Tester) resubscribeDone(gen uint64, filter string, qos byte, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return
	}
	if err != nil {
		t.errorLocked(fmt.Sprintf("resubscribe failed: %s: %v", filter, err))
		t.logger.Warn("mqtt resubscribe failed", "filter", filter, "error", err)
		return
	}
	t.systemLocked(fmt.Sprintf("resubscribed to %s (QoS: %d)", filter, qos))
}

func (t *Tester) handleMessage(gen uint64, in Inbound) {
	defer t.bus.Flush()
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return
	}

	for _, sub := range t.subs {
		if topic.Match(sub.Filter, in.Topic) {
			sub.MessageCount++
		}
	}

	now := t.clock.Now()
	msg := Message{
		ID:        tester.NewID(),
		Type:      tester.MessageReceived,
		Topic:     in.Topic,
		Payload:   strings.ToValidUTF8(string(in.Payload), "\uFFFD"),
		QoS:       in.QoS,
		Retain:    in.Retain,
		Timestamp: now,
		Size:      len(in.Payload),
		Endpoint:  t.info.BrokerURL,
	}
	t.log.Append(msg)
	t.stats.MessagesReceived++
	t.stats.BytesReceived += int64(msg.Size)
	t.stats.LastActivity = now
	events.Post(t.bus, EventMessageReceived, msg)
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

func (t *Tester) handleOffline(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return
	}
	t.systemLocked("MQTT client offline")
}

func (t *Tester) handleClose(gen uint64) {
	client := t.closed(gen)
	t.bus.Flush()
	endClient(client)
}

func (t *Tester) closed(gen uint64) Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.destroyed {
		return nil
	}
	return t.closedLocked()
}

func (t *Tester) failLocked(err error) {
	stopTimer(&t.connectTimer)

	t.info.LastError = err.Error()
	t.setStateLocked(tester.StateError)
	t.errorLocked("connection error: " + err.Error())
	events.Post(t.bus, tester.EventError, err)
	t.logger.Warn("mqtt connection error", "broker", t.info.BrokerURL, "error", err)
	t.resolveLocked(err)
}

// closedLocked handles the end of a session and applies the reconnect
// policy. It returns the client to end once the lock is released.
func (t *Tester) closedLocked() Client {
	stopTimer(&t.connectTimer)

	t.gen++
	client := t.client
	t.client = nil
	t.resolveLocked(tester.ErrConnectionClosed)

	limit := t.cfg.MaxReconnectTimes
	switch {
	case t.manual:
		t.setStateLocked(tester.StateDisconnected)
		t.systemLocked("MQTT connection closed")

	case t.info.ReconnectCount < limit:
		t.setStateLocked(tester.StateReconnecting)
		t.systemLocked(fmt.Sprintf("connection lost, reconnecting (%d/%d)", t.info.ReconnectCount+1, limit))
		gen := t.gen
		t.reconnectTimer = t.clock.AfterFunc(t.cfg.ReconnectPeriod, func() { t.reconnect(gen) })
		t.logger.Info("mqtt reconnect scheduled",
			"broker", t.info.BrokerURL,
			"attempt", t.info.ReconnectCount+1,
			"limit", limit,
			"delay", t.cfg.ReconnectPeriod,
		)

	case limit > 0:
		err := fmt.Errorf("%w after %d attempts", tester.ErrReconnectExhausted, limit)
		t.info.LastError = err.Error()
		t.setStateLocked(tester.StateError)
		t.errorLocked(err.Error())
		events.Post(t.bus, tester.EventError, err)
		t.logger.Error("mqtt reconnect attempts exhausted", "broker", t.info.BrokerURL, "limit", limit)

	default:
		t.systemLocked("MQTT connection closed")
		if t.info.State != tester.StateError {
			t.setStateLocked(tester.StateDisconnected)
		}
	}

	events.Post(t.bus, EventDisconnected, t.info)
	return client
}

func (t *Tester) setStateLocked(s tester.State) {
	t.info.State = s
	events.Post(t.bus, tester.EventStateChange, s)
}

func (t *Tester) systemLocked(content string) {
	t.log.Append(Message{
		ID:        tester.NewID(),
		Type:      tester.MessageSystem,
		Topic:     systemTopic,
		Payload:   content,
		Timestamp: t.clock.Now(),
	})
}

func (t *Tester) errorLocked(content string) {
	t.log.Append(Message{
		ID:        tester.NewID(),
		Type:      tester.MessageError,
		Topic:     errorTopic,
		Payload:   content,
		Timestamp: t.clock.Now(),
	})
}

func (t *Tester) resolveLocked(err error) {
	if t.pending == nil {
		return
	}
	t.pending <- err
	t.pending = nil
}

func (t *Tester) sortedFiltersLocked() []string {
	filters := make([]string, 0, len(t.subs))
	for filter := range t.subs {
		filters = append(filters, filter)
	}
	slices.Sort(filters)
	return filters
}

func stopTimer(timer *clock.Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}

func endClient(c Client) {
	if c != nil {
		c.End()
	}
}

// clientHandler routes client callbacks for one attempt.
type clientHandler struct {
	t   *Tester
	gen uint64
}

func (h *clientHandler) OnConnect()          { h.t.handleConnect(h.gen) }
func (h *clientHandler) OnMessage(m Inbound) { h.t.handleMessage(h.gen, m) }
func (h *clientHandler) OnError(err error)   { h.t.handleError(h.gen, err) }
func (h *clientHandler) OnOffline()          { h.t.handleOffline(h.gen) }
func (h *clientHandler) OnClose()            { h.t.handleClose(h.gen) }
