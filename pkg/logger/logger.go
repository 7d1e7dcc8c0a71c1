// pkg/logger/logger.go

package logger

import (
	"fmt"
	"os"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log *zap.Logger
)

// SetLogger installs the global logger used by L() and by the
// context-aware otelzap globals.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()

	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

// L returns the global logger, initializing a fallback if none has
// been installed yet.
func L() *zap.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()

	if l == nil {
		l = NewFallbackLogger()
		SetLogger(l)
	}
	return l
}

// NewFallbackLogger builds a console-only logger for when no log file
// is writable.
func NewFallbackLogger() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(defaultConsoleEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		parseLogLevel(os.Getenv("AMBERLOCK_LOG_LEVEL")),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// InitializeWithFallback sets up dual-output logging: human-readable
// console plus JSON file, degrading to console-only when no log path
// is writable.
func InitializeWithFallback() {
	path := resolveLogPath()
	if path == "" {
		fmt.Fprintln(os.Stderr, "no writable log path found, logging to console only")
		SetLogger(NewFallbackLogger())
		return
	}

	writer, err := logFileWriter(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not open log file, logging to console only:", err)
		SetLogger(NewFallbackLogger())
		return
	}

	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := parseLogLevel(os.Getenv("AMBERLOCK_LOG_LEVEL"))
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(defaultConsoleEncoderConfig()), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), writer, level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	SetLogger(l)
	l.Debug("Logger initialized", zap.String("log_path", path))
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		// Sync on a console sink fails on some platforms; ignore it.
		_ = l.Sync()
	}
}

func defaultConsoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "T"
	cfg.LevelKey = "L"
	cfg.NameKey = "N"
	cfg.CallerKey = "C"
	cfg.MessageKey = "M"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func parseLogLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.Set(s); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
