// Package logging provides structured logging for the doorlock service.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same default fields (service, version) and level filtering.
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
//	logger.Info("lock registered", "mac", mac)
//
// # Security
//
// Never log certificates, signatures, invite ids, master keys, or identity tokens.
package logging
