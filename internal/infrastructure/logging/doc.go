// Package logging provides structured logging for robotlink.
//
// It wraps log/slog so every component logs with the same handler,
// level and default fields.
//
// # Features
//
//   - JSON output for fleet log shipping
//   - Text output for bench debugging
//   - Default fields (service, version, robot) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version, cfg.Robot.Name)
//	logger.Component("session").Info("subscribed", "topic", topic)
//
// # Security
//
// Never log private key material or broker passwords. Certificate paths
// are fine to log; their contents are not.
package logging
