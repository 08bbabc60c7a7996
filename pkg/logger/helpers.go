package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed HTTP request at a level chosen from its status
func LogRequest(l Logger, method, path, clientIP string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"client_ip":   clientIP,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.InfoWithFields("HTTP request completed", fields)
	}
}

// LogStage logs the outcome of one scrape stage
func LogStage(l Logger, username, stage string, count int, duration time.Duration, err error) {
	stageLog := l.WithFields(map[string]interface{}{
		"username": username,
		"stage":    stage,
		"count":    count,
		"duration": duration,
	})

	if err != nil {
		stageLog.WithError(err).Warn("Stage failed")
		return
	}
	stageLog.Info("Stage completed")
}

// LogRateLimit logs a pacing wait in front of the source
func LogRateLimit(l Logger, target string, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"target": target,
		"wait":   wait,
		"action": "rate_limited",
	}).Debug("Pacing request to source")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	componentLog := l.WithField("component", component)
	if len(config) > 0 {
		componentLog = componentLog.WithFields(config)
	}
	componentLog.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
