// Package mqtttester implements the MQTT test client engine.
//
// A Tester owns one broker client at a time. It publishes, subscribes and
// unsubscribes on request, keeps a bounded log of traffic, and counts the
// messages each subscription filter has matched. Subscriptions are keyed by
// filter, survive disconnects and are replayed after every successful
// connect.
//
// Unlike the WebSocket engine, switching brokers never clears the message
// log or the subscription set.
//
// # Reconnection
//
// The engine owns the retry policy. After an unexpected close it waits
// Config.ReconnectPeriod, then opens a fresh client, up to
// Config.MaxReconnectTimes attempts. The paho transport has its own
// auto-reconnect switched off.
//
// # Acknowledgements
//
// Publish, Subscribe and Unsubscribe return once the request is handed to the
// client. Their outcome arrives later as an event (messagePublished,
// subscribed, unsubscribed, or the matching *Error event) and a log entry.
package mqtttester
