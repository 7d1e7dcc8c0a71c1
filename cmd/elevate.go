/* cmd/elevate.go */

package cmd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/batch"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/label"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/privilege"
	"github.com/spf13/cobra"
)

var elevateCmd = &cobra.Command{
	Use:   "elevate",
	Short: "Maintenance operations under a SYSTEM token",
}

var elevateShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Spawn a SYSTEM shell on the active console session",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		rt, err := rc.BuildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		priv := batch.NewPrivileged(rt.Orch, privilege.NewPlatformEscalator(), rt.Prober)
		pid, err := priv.SpawnMaintenanceShell(rc.Ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "SYSTEM shell started (pid %d)\n", pid)
		return nil
	}),
}

var repairFlags struct {
	level string
}

var elevateRepairCmd = &cobra.Command{
	Use:   "repair [path]",
	Short: "Clear and re-apply a stuck or unparseable label under SYSTEM",
	Args:  cobra.ExactArgs(1),
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		lvl, err := label.ParseLevel(repairFlags.level)
		if err != nil {
			return err
		}

		rt, err := rc.BuildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		priv := batch.NewPrivileged(rt.Orch, privilege.NewPlatformEscalator(), rt.Prober)
		if err := priv.RepairLabel(rc.Ctx, args[0], lvl, label.DefaultPolicy); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "label repaired: %s -> %s\n", args[0], lvl)
		return nil
	}),
}

func init() {
	elevateRepairCmd.Flags().StringVar(&repairFlags.level, "level", "High", "integrity level to re-apply")
	elevateCmd.AddCommand(elevateShellCmd, elevateRepairCmd)
}
