/* cmd/root.go */

package cmd

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/logger"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd is the base command for amberlock.
var RootCmd = &cobra.Command{
	Use:   "amberlock",
	Short: "Mandatory integrity labeling for files and directories",
	Long: `AmberLock protects files by raising their Windows mandatory integrity
label so that lower-integrity processes cannot modify them. Unlocking is
gated behind a local password vault.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	for _, subCmd := range []*cobra.Command{
		lockCmd,
		unlockCmd,
		inspectCmd,
		vaultCmd,
		checkpointCmd,
		auditCmd,
		elevateCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute initializes and runs the root command.
func Execute() {
	defer logger.Sync()

	RegisterCommands()

	if err := RootCmd.Execute(); err != nil {
		switch {
		case cerr.Is(err, amberr.ErrAuthFailed):
			logger.L().Error("Authentication failed", zap.Error(err))
			os.Exit(2)
		case cerr.Is(err, amberr.ErrUnsupported):
			logger.L().Error("Operation not supported here", zap.Error(err))
			os.Exit(3)
		default:
			logger.L().Error("Command error", zap.Error(err))
			os.Exit(1)
		}
	}
}
