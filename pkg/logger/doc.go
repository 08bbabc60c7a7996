// Package logger provides the structured logging interface used across the service.
//
// It wraps zerolog behind a small Logger interface so that components can be
// handed a scoped logger (WithField, WithFields, WithError) and tests can swap
// in NewTestLogger or NewNopLogger.
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "coordinator")
//	log.InfoWithFields("Scrape started", map[string]interface{}{
//	    "username": "natgeo",
//	})
//
// Console output is colored when stdout is a terminal and newline-delimited JSON
// otherwise, so the same binary behaves well in a shell and under a supervisor.
package logger
