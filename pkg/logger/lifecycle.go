// pkg/logger/lifecycle.go

package logger

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerateTraceID returns a short 8-char trace id for correlating one
// command's log lines.
func GenerateTraceID() string {
	return uuid.New().String()[:8]
}

// WithCommandLogging wraps a command body with start/finish log lines
// carrying a shared trace id.
func WithCommandLogging(name string, fn func() error) error {
	l := L()
	traceID := GenerateTraceID()
	start := time.Now()

	l.Info("Command started",
		zap.String("command", name),
		zap.String("trace_id", traceID))

	err := fn()
	duration := time.Since(start)

	if err != nil {
		l.Error("Command failed",
			zap.String("command", name),
			zap.Duration("duration", duration),
			zap.String("trace_id", traceID),
			zap.Error(err))
	} else {
		l.Info("Command completed",
			zap.String("command", name),
			zap.Duration("duration", duration),
			zap.String("trace_id", traceID))
	}
	return err
}
