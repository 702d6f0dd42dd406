// Package tester holds the vocabulary shared by the WebSocket and MQTT test
// clients: connection states, message type tags, usage errors, the events
// every engine emits, and the Logger interface engines accept.
//
// Engines live in their own packages (wstester, mqtttester). Code that drives
// both, such as the HTTP control API, depends only on this package for the
// common parts.
package tester
