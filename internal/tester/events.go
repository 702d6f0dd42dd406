package tester

import "github.com/nerrad567/probekit/internal/events"

// Events emitted by both engines.
var (
	// EventStateChange fires on every state transition.
	EventStateChange = events.NewKey[State]("stateChange")

	// EventError fires on transport faults.
	EventError = events.NewKey[error]("error")

	// EventMessagesCleared fires when the message log is cleared.
	EventMessagesCleared = events.NewKey[struct{}]("messagesCleared")
)
