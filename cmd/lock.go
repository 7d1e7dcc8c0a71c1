/* cmd/lock.go */

package cmd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/batch"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/privilege"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/progress"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/walk"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var lockFlags struct {
	level       string
	mode        string
	recursive   bool
	dryRun      bool
	parallelism int
	noRollback  bool
	checkpoint  bool
	stopOnError bool
	force       bool
	resume      string
}

var lockCmd = &cobra.Command{
	Use:   "lock [paths...]",
	Short: "Apply a mandatory integrity label to files or directories",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		if len(args) == 0 && lockFlags.resume == "" {
			return cerr.New("at least one path is required")
		}

		opts, err := lockOptions(rc)
		if err != nil {
			return err
		}

		rt, err := rc.BuildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		paths, err := expandPaths(rc, args, lockFlags.recursive)
		if err != nil {
			return err
		}

		cb := consoleProgress(cmd)

		var result batch.Result
		switch {
		case lockFlags.resume != "":
			result, err = rt.Orch.ResumeLock(rc.Ctx, lockFlags.resume, opts, cb)
		case lockFlags.force:
			priv := batch.NewPrivileged(rt.Orch, privilege.NewPlatformEscalator(), rt.Prober)
			result, err = priv.ForceLock(rc.Ctx, paths, opts, cb)
		default:
			result, err = rt.Orch.Lock(rc.Ctx, paths, opts, cb)
		}
		if err != nil {
			return err
		}

		printResult(cmd, "lock", result)
		if !result.IsSuccess() {
			rc.Log.Warn("Lock batch finished with failures",
				zap.Int("failed", result.Failed),
				zap.Int("cancelled", result.Cancelled))
		}
		return nil
	}),
}

func init() {
	f := lockCmd.Flags()
	f.StringVar(&lockFlags.level, "level", "", "integrity level to apply (Medium, High, System)")
	f.StringVar(&lockFlags.mode, "mode", "", "protect mode (read-only, seal)")
	f.BoolVarP(&lockFlags.recursive, "recursive", "r", false, "descend into directories")
	f.BoolVar(&lockFlags.dryRun, "dry-run", false, "report what would change without touching anything")
	f.IntVar(&lockFlags.parallelism, "parallelism", 0, "worker count (default from settings)")
	f.BoolVar(&lockFlags.noRollback, "no-rollback", false, "do not restore prior labels when the batch fails")
	f.BoolVar(&lockFlags.checkpoint, "checkpoint", false, "record a resumable checkpoint")
	f.BoolVar(&lockFlags.stopOnError, "stop-on-error", false, "halt the batch on the first failure")
	f.BoolVar(&lockFlags.force, "force", false, "escalate to SYSTEM for objects out of reach")
	f.StringVar(&lockFlags.resume, "resume", "", "resume a checkpointed batch by id")
}

func lockOptions(rc *cli.RuntimeContext) (batch.Options, error) {
	opts := batch.DefaultOptions()

	levelName := lockFlags.level
	if levelName == "" {
		levelName = rc.Settings.DefaultLevel
	}
	lvl, err := label.ParseLevel(levelName)
	if err != nil {
		return opts, err
	}
	opts.DesiredLevel = lvl

	modeName := lockFlags.mode
	if modeName == "" {
		modeName = rc.Settings.DefaultMode
	}
	mode, err := batch.ParseMode(modeName)
	if err != nil {
		return opts, err
	}
	opts.Mode = mode
	opts.Policy = batch.PolicyFor(mode, rc.Settings.EnableNRNX)

	opts.Parallelism = rc.Settings.Parallelism
	if lockFlags.parallelism > 0 {
		opts.Parallelism = lockFlags.parallelism
	}
	opts.DryRun = lockFlags.dryRun
	opts.EnableRollback = !lockFlags.noRollback
	opts.EnableCheckpoint = lockFlags.checkpoint
	opts.StopOnError = lockFlags.stopOnError
	return opts, nil
}

// expandPaths resolves directory arguments into their contents when
// recursive mode is on.
func expandPaths(rc *cli.RuntimeContext, args []string, recursive bool) ([]string, error) {
	if !recursive {
		return args, nil
	}

	var paths []string
	for _, arg := range args {
		sub, err := walk.Collect(rc.Ctx, arg, walk.Options{IncludeDirs: true})
		if err != nil {
			return nil, err
		}
		paths = append(paths, sub...)
	}
	return paths, nil
}

func consoleProgress(cmd *cobra.Command) progress.Callback {
	return func(path string, snap progress.Snapshot) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\r%s", snap.FormatStatus())
	}
}

func printResult(cmd *cobra.Command, op string, result batch.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(cmd.ErrOrStderr())
	fmt.Fprintf(out, "%s: %d total, %d succeeded, %d failed, %d downgraded, %d skipped, %d cancelled\n",
		op, result.Total, result.Succeeded, result.Failed, result.Downgraded, result.Skipped, result.Cancelled)
	if result.Downgraded > 0 {
		fmt.Fprintf(out, "note: applied level was %s (System requires SeRelabelPrivilege)\n", result.EffectiveLevel)
	}
	if result.CheckpointID != "" {
		fmt.Fprintf(out, "checkpoint: %s\n", result.CheckpointID)
	}
	if result.Rollback != nil {
		fmt.Fprintf(out, "rollback: %d/%d restored\n", result.Rollback.Succeeded, result.Rollback.Total)
	}
	for _, pr := range result.PerPath {
		if pr.Outcome == batch.Failed {
			fmt.Fprintf(out, "  failed: %s: %s\n", pr.Path, pr.Error)
		}
	}
}
