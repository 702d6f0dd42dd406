// Package api implements the HTTP control API and event relay for probekit.
//
// This package provides:
//   - REST endpoints that drive the WebSocket and MQTT testers
//   - a WebSocket hub relaying engine events to UI clients
//   - optional JWT bearer authentication with viewer/operator roles
//   - middleware stack (request ID, logging, recovery, CORS, body limit)
//   - read access to the SQLite message archive
//
// # Architecture
//
// Each tester has one long-lived engine. Handlers translate requests into
// engine calls and engine errors into HTTP statuses: usage conflicts are
// 409, invalid input 400, operations that need a live connection 412 and
// transport failures during connect 502/504.
//
// Engine events are relayed on channels named "<protocol>.<event>", for
// example "mqtt.messageReceived". A client subscribes with
//
//	{"type":"subscribe","payload":{"channels":["mqtt.*"]}}
//
// "*" subscribes to everything.
//
// # Security
//
// When security.jwt.secret is empty the API is open. Otherwise every route
// except /health requires "Authorization: Bearer <token>". Browsers cannot
// set headers on WebSocket upgrades, so /events also accepts ?token=.
package api
