package mqtttester

import "github.com/nerrad567/probekit/internal/events"

// Events emitted by a Tester in addition to the shared tester events.
var (
	EventConnected        = events.NewKey[ConnectionInfo]("connected")
	EventDisconnected     = events.NewKey[ConnectionInfo]("disconnected")
	EventMessagePublished = events.NewKey[Message]("messagePublished")
	EventMessageReceived  = events.NewKey[Message]("messageReceived")
	EventPublishError     = events.NewKey[error]("publishError")
	EventSubscribed       = events.NewKey[Subscription]("subscribed")
	EventUnsubscribed     = events.NewKey[string]("unsubscribed")
	EventSubscribeError   = events.NewKey[error]("subscribeError")
	EventUnsubscribeError = events.NewKey[error]("unsubscribeError")
)
