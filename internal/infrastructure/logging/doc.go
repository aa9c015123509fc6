// Package logging builds the server's zap logger from the LOG_* settings.
//
// Components receive a named child logger so every line carries the
// subsystem it came from:
//
//	logger, err := logging.New(cfg.Logging)
//	termLog := logger.Component("terminal")
//	termLog.Info("session spawned", zap.String("session_id", id))
package logging
