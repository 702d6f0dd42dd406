package wstester

import "github.com/nerrad567/probekit/internal/events"

// Events emitted by a Tester in addition to the shared tester events.
var (
	EventConnected       = events.NewKey[ConnectionInfo]("connected")
	EventDisconnected    = events.NewKey[CloseInfo]("disconnected")
	EventMessageSent     = events.NewKey[Message]("messageSent")
	EventMessageReceived = events.NewKey[Message]("messageReceived")
	EventSendError       = events.NewKey[error]("sendError")
)
