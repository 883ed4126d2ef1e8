// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every subsystem of the realtime client (connection, rooms, streaming,
// REST) takes a *Logger and tags its lines with a component field, so
// one connection's activity can be followed across packages.
//
// Example Usage:
//
//	logger := logging.NewDefault().Named("client")
//	logger.Info("Connecting", zap.String("url", cfg.URL))
//	logger.Error("Dial failed", zap.Error(err))
package logging
