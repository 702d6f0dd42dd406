// Package logging provides structured logging for probekit.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the engines, the event bus and
// the HTTP API.
//
// # Features
//
//   - JSON output for unattended runs
//   - Text output for interactive use
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("listening", "addr", cfg.Addr())
//
// Never log broker passwords or bearer tokens.
package logging
