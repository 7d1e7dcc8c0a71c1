// pkg/cli/cli.go
//
// Command runtime: every cobra command body runs through Wrap, which
// installs the logger, loads settings, and provides a cancellable
// context wired to Ctrl-C.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/settings"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RuntimeContext carries per-invocation state into command bodies.
type RuntimeContext struct {
	Ctx       context.Context
	Log       *zap.Logger
	Settings  settings.Settings
	Timestamp time.Time
}

// Wrap adapts a RuntimeContext-style handler to cobra's RunE shape.
func Wrap(fn func(rc *RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		log := logger.L().Named(cmd.Name())
		traceID := logger.GenerateTraceID()
		start := time.Now()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, cfgErr := settings.Load(settings.DefaultPath())
		if cfgErr != nil {
			log.Warn("Could not load settings, using defaults", zap.Error(cfgErr))
			cfg = settings.Defaults()
		}

		rc := &RuntimeContext{
			Ctx:       ctx,
			Log:       log,
			Settings:  cfg,
			Timestamp: start,
		}

		log.Info("Command started",
			zap.String("command", cmd.Name()),
			zap.String("trace_id", traceID))

		defer func() {
			if r := recover(); r != nil {
				log.Error("Command panicked",
					zap.Any("panic", r),
					zap.String("trace_id", traceID))
				err = fmt.Errorf("internal error: %v", r)
			}

			duration := time.Since(start)
			if err != nil {
				log.Error("Command failed",
					zap.String("command", cmd.Name()),
					zap.Duration("duration", duration),
					zap.String("trace_id", traceID),
					zap.Error(err))
			} else {
				log.Info("Command completed",
					zap.String("command", cmd.Name()),
					zap.Duration("duration", duration),
					zap.String("trace_id", traceID))
			}
		}()

		return fn(rc, cmd, args)
	}
}
