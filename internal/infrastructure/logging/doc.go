// Package logging provides structured logging for the controller.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler and default fields.
//
// # Features
//
//   - JSON output for collection, text output for a serial console
//   - Default fields (service, version, device_id) on all log entries
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
//	logger := logging.New(cfg.Logging, version, cfg.Device.ID)
//	logger.Info("sensor event", "sensor", "door1", "state", "open")
//
// Never log WiFi passphrases or broker passwords.
package logging
