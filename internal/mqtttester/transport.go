package mqtttester

import "time"

// ClientOptions is what a transport needs to build a client.
type ClientOptions struct {
	BrokerURL             string
	ClientID              string
	Username              string
	Password              string
	KeepAlive             time.Duration
	CleanSession          bool
	ConnectTimeout        time.Duration
	TLSInsecureSkipVerify bool
}

// Inbound is a message delivered by the broker.
type Inbound struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Handler receives client callbacks.
//
// A failed connect is reported as OnError followed by OnClose. A dropped
// session is reported as OnOffline, OnError, then OnClose. No callbacks
// arrive after OnClose.
type Handler interface {
	OnConnect()
	OnMessage(m Inbound)
	OnError(err error)
	OnOffline()
	OnClose()
}

// Client is one broker session. Acknowledgement callbacks may run on any
// goroutine, including the caller's.
type Client interface {
	// Connect starts connecting. The outcome is reported through the
	// Handler. Connect after End does nothing.
	Connect()

	Publish(topic string, payload []byte, qos byte, retain bool, done func(error))
	Subscribe(filter string, qos byte, done func(error))
	Unsubscribe(filter string, done func(error))

	// End closes the session without further callbacks. It is safe to
	// call more than once.
	End()
}

// Transport builds clients.
type Transport interface {
	Open(opts ClientOptions, h Handler) (Client, error)
}
