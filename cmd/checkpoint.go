/* cmd/checkpoint.go */

package cmd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/checkpoint"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/cli"
	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and clean up resumable batch checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored checkpoints, newest first",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		mgr, err := checkpoint.NewManager(rc.Settings.CheckpointDir)
		if err != nil {
			return err
		}

		checkpoints, err := mgr.List()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(checkpoints) == 0 {
			fmt.Fprintln(out, "no checkpoints")
			return nil
		}
		for _, ck := range checkpoints {
			fmt.Fprintf(out, "%s  %s  %s  %.0f%%  %d pending\n",
				ck.ID, ck.Operation, ck.CreatedAt.Format("2006-01-02 15:04"),
				ck.Percentage(), len(ck.PendingPaths))
		}
		return nil
	}),
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete one checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		mgr, err := checkpoint.NewManager(rc.Settings.CheckpointDir)
		if err != nil {
			return err
		}
		return mgr.Delete(args[0])
	}),
}

var checkpointCleanupDays int

var checkpointCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete checkpoints older than a cutoff",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		mgr, err := checkpoint.NewManager(rc.Settings.CheckpointDir)
		if err != nil {
			return err
		}

		deleted, err := mgr.CleanupOlderThan(checkpointCleanupDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d checkpoint(s)\n", deleted)
		return nil
	}),
}

func init() {
	checkpointCleanupCmd.Flags().IntVar(&checkpointCleanupDays, "days", 7, "delete checkpoints older than this many days")
	checkpointCmd.AddCommand(checkpointListCmd, checkpointDeleteCmd, checkpointCleanupCmd)
}
