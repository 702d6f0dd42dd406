// Package archive persists tester traffic to SQLite.
//
// A Recorder subscribes to the message events of the WebSocket and MQTT
// testers and hands records to a background writer through a bounded
// buffer. Engine callbacks never block on the database: when the buffer is
// full the record is dropped and counted.
//
// The schema lives in the migrations package. Records are queried newest
// first through Repository.List, which backs GET /api/v1/archive.
package archive
