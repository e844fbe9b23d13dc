// Package logging provides structured logging for calibright.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler and default fields.
//
// # Features
//
//   - Text output for an interactive session (the default)
//   - JSON output for journald or log shippers
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("display added", "display", id)
//
// Brightness values are logged at debug level only; link failures are
// logged at warn with the display id and attempt count.
package logging
