// Package logging provides structured logging for venuecore.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields (service, version).
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log device tokens, signatures, session JWTs or Supabase keys.
// Log identifiers (device id, function name, request id) instead.
package logging
