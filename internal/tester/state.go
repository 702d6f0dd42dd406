package tester

import "fmt"

// State is the connection lifecycle state of an engine.
type State int

const (
	// StateDisconnected is the initial state and the result of Disconnect.
	StateDisconnected State = iota

	// StateConnecting means a transport attempt is in flight.
	StateConnecting

	// StateConnected means the transport is open.
	StateConnected

	// StateReconnecting means the transport dropped and a retry is scheduled.
	StateReconnecting

	// StateError means the last attempt failed or retries were exhausted.
	StateError
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateReconnecting: "reconnecting",
	StateError:        "error",
}

// String returns the lowercase state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Active reports whether the state holds or is acquiring a transport.
func (s State) Active() bool {
	return s == StateConnecting || s == StateConnected || s == StateReconnecting
}

// MessageType tags each entry in an engine's message log.
type MessageType string

// Message types.
const (
	MessageSent      MessageType = "sent"
	MessagePublished MessageType = "published"
	MessageReceived  MessageType = "received"
	MessageSystem    MessageType = "system"
	MessageError     MessageType = "error"
)
