// Package wstester implements the WebSocket test client engine.
//
// A Tester owns one transport connection at a time and drives it through the
// tester.State lifecycle. It keeps a bounded log of every frame sent and
// received, aggregates traffic and latency statistics, retries unexpected
// closes up to Config.ReconnectAttempts times, and measures round-trip
// latency with an application-level JSON ping:
//
//	{"type":"ping","timestamp":1718000000000}
//
// A peer that answers with {"type":"pong","timestamp":<same value>} yields a
// latency sample. Echo servers do not.
//
// # Events
//
// Listeners attach to the bus returned by Events():
//
//	events.On(t.Events(), wstester.EventMessageReceived, func(m wstester.Message) {
//	    fmt.Println(m.Content)
//	})
//
// Events are delivered after the engine has released its lock, in the order
// they were raised, so listeners may call back into the engine.
//
// # Thread Safety
//
// All Tester methods are safe for concurrent use. Transport callbacks are
// serialised with caller operations by a single mutex.
package wstester
