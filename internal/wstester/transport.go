package wstester

import (
	"fmt"
	"net/http"
)

// FrameKind distinguishes text from binary data frames.
type FrameKind int

// Frame kinds.
const (
	FrameText FrameKind = iota + 1
	FrameBinary
)

// Frame is an inbound data frame.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// ReadyState is the transport-level socket state.
type ReadyState int

// Ready states, numbered as browsers number them.
const (
	ReadyConnecting ReadyState = iota
	ReadyOpen
	ReadyClosing
	ReadyClosed
)

var readyStateNames = [...]string{"CONNECTING", "OPEN", "CLOSING", "CLOSED"}

func (s ReadyState) String() string {
	if s < 0 || int(s) >= len(readyStateNames) {
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
	return readyStateNames[s]
}

// MarshalText encodes the state as its name.
func (s ReadyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Close codes used by the engine and transports.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// Handler receives transport callbacks. Callbacks for one connection are
// never invoked concurrently with each other.
//
// A transport reports a failed open with OnError followed by OnClose. Once
// OnClose has been called no further callbacks arrive.
type Handler interface {
	OnOpen(protocol string)
	OnMessage(f Frame)
	OnError(err error)
	OnClose(code int, reason string)
}

// Conn is one transport connection.
type Conn interface {
	// Send writes a data frame. It must not invoke Handler callbacks
	// synchronously.
	Send(kind FrameKind, data []byte) error

	// Close starts a normal close. It is safe to call more than once.
	Close() error

	// Protocol returns the negotiated sub-protocol.
	Protocol() string

	// ReadyState returns the socket state.
	ReadyState() ReadyState
}

// Transport opens connections.
type Transport interface {
	// Open starts connecting and returns immediately. The outcome is
	// reported through h.
	Open(url string, protocols []string, header http.Header, h Handler) (Conn, error)
}
