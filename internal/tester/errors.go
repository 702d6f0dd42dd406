package tester

import "errors"

// Usage and transport errors shared by both engines.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyConnected is returned by Connect while connected.
	ErrAlreadyConnected = errors.New("tester: already connected")

	// ErrConnectInProgress is returned by Connect while an attempt is in flight.
	ErrConnectInProgress = errors.New("tester: connect already in progress")

	// ErrNotConnected is returned by send operations while not connected.
	ErrNotConnected = errors.New("tester: not connected")

	// ErrMessageTooLarge is returned when a payload exceeds the configured limit.
	ErrMessageTooLarge = errors.New("tester: message too large")

	// ErrInvalidURL is returned for malformed URLs or unsupported schemes.
	ErrInvalidURL = errors.New("tester: invalid url")

	// ErrInvalidFormat is returned for an unknown payload format.
	ErrInvalidFormat = errors.New("tester: invalid message format")

	// ErrConnectTimeout is returned when the transport does not open in time.
	ErrConnectTimeout = errors.New("tester: connect timed out")

	// ErrConnectionFailed wraps transport errors raised while connecting.
	ErrConnectionFailed = errors.New("tester: connection failed")

	// ErrConnectionClosed is returned when the transport closes before opening.
	ErrConnectionClosed = errors.New("tester: connection closed")

	// ErrConnectAborted is returned to a pending Connect when Disconnect or
	// Destroy is called.
	ErrConnectAborted = errors.New("tester: connect aborted")

	// ErrReconnectExhausted is recorded when the retry limit is reached.
	ErrReconnectExhausted = errors.New("tester: reconnect attempts exhausted")

	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("tester: destroyed")
)
