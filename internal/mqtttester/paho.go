package mqtttester

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// ackTimeout bounds the wait for a publish, subscribe or unsubscribe
	// acknowledgement.
	ackTimeout = 10 * time.Second

	// disconnectQuiesce is the time paho is given to finish pending work
	// on End, in milliseconds.
	disconnectQuiesce = 250

	// subscribeRejected is the SUBACK return code for a refused filter.
	subscribeRejected = 0x80

	tlsMinVersion = tls.VersionTLS12
)

var (
	errAckTimeout      = errors.New("acknowledgement timed out")
	errSubscribeDenied = errors.New("broker rejected subscription")
)

// PahoTransport builds clients on eclipse/paho.mqtt.golang. Paho's own
// reconnect logic is disabled; the engine decides when to retry.
type PahoTransport struct{}

// NewPahoTransport returns a PahoTransport.
func NewPahoTransport() *PahoTransport {
	return &PahoTransport{}
}

// Open builds a paho client for opts. It does not connect.
func (p *PahoTransport) Open(opts ClientOptions, h Handler) (Client, error) {
	broker, err := dialURL(opts.BrokerURL)
	if err != nil {
		return nil, err
	}

	c := &pahoClient{handler: h}
	c.client = pahomqtt.NewClient(buildPahoOptions(broker, opts, c))
	return c, nil
}

// buildPahoOptions maps ClientOptions onto paho options and routes paho
// callbacks to c.
func buildPahoOptions(broker string, opts ClientOptions, c *pahoClient) *pahomqtt.ClientOptions {
	po := pahomqtt.NewClientOptions()
	po.AddBroker(broker)
	po.SetClientID(opts.ClientID)

	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	po.SetCleanSession(opts.CleanSession)
	po.SetKeepAlive(opts.KeepAlive)
	po.SetConnectTimeout(opts.ConnectTimeout)

	po.SetAutoReconnect(false)
	po.SetConnectRetry(false)

	switch brokerScheme(broker) {
	case "mqtts", "wss":
		po.SetTLSConfig(&tls.Config{
			MinVersion:         tlsMinVersion,
			InsecureSkipVerify: opts.TLSInsecureSkipVerify, //nolint:gosec // opt-in for self-signed test brokers
		})
	}

	po.SetDefaultPublishHandler(func(_ pahomqtt.Client, m pahomqtt.Message) {
		c.deliver(m)
	})
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.lost(err)
	})
	return po
}

// dialURL adds the default port to tcp-style broker URLs, which paho dials
// as host:port. WebSocket URLs are passed through.
func dialURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("broker url: %w", err)
	}
	if u.Port() != "" {
		return raw, nil
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(defaultPorts[u.Scheme]))
		return u.String(), nil
	}
	return raw, nil
}

// pahoClient adapts a paho client to Client.
type pahoClient struct {
	client  pahomqtt.Client
	handler Handler

	mu     sync.Mutex
	ended  bool
	closed bool
}

func (c *pahoClient) Connect() {
	if c.isEnded() {
		return
	}

	token := c.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			if c.finish() {
				c.handler.OnError(err)
				c.handler.OnClose()
			}
			return
		}
		if c.isEnded() {
			c.client.Disconnect(disconnectQuiesce)
			return
		}
		c.handler.OnConnect()
	}()
}

func (c *pahoClient) Publish(topic string, payload []byte, qos byte, retain bool, done func(error)) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		done(waitToken(token))
	}()
}

func (c *pahoClient) Subscribe(filter string, qos byte, done func(error)) {
	// A nil callback routes messages to the default publish handler.
	token := c.client.Subscribe(filter, qos, nil)
	go func() {
		if err := waitToken(token); err != nil {
			done(err)
			return
		}
		if st, ok := token.(*pahomqtt.SubscribeToken); ok {
			if code, found := st.Result()[filter]; found && code >= subscribeRejected {
				done(errSubscribeDenied)
				return
			}
		}
		done(nil)
	}()
}

func (c *pahoClient) Unsubscribe(filter string, done func(error)) {
	token := c.client.Unsubscribe(filter)
	go func() {
		done(waitToken(token))
	}()
}

func (c *pahoClient) End() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.closed = true
	c.mu.Unlock()

	if c.client.IsConnectionOpen() {
		c.client.Disconnect(disconnectQuiesce)
	}
}

func (c *pahoClient) deliver(m pahomqtt.Message) {
	if c.isEnded() {
		return
	}
	c.handler.OnMessage(Inbound{
		Topic:   m.Topic(),
		Payload: m.Payload(),
		QoS:     m.Qos(),
		Retain:  m.Retained(),
	})
}

func (c *pahoClient) lost(err error) {
	if !c.finish() {
		return
	}
	c.handler.OnOffline()
	c.handler.OnError(err)
	c.handler.OnClose()
}

// finish marks the session closed and reports whether the caller should
// deliver the closing callbacks.
func (c *pahoClient) finish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	return true
}

func (c *pahoClient) isEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func waitToken(token pahomqtt.Token) error {
	if !token.WaitTimeout(ackTimeout) {
		return errAckTimeout
	}
	return token.Error()
}
