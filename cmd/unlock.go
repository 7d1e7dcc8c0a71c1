/* cmd/unlock.go */

package cmd

import (
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/batch"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/privilege"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var unlockFlags struct {
	recursive   bool
	dryRun      bool
	parallelism int
	force       bool
}

var unlockCmd = &cobra.Command{
	Use:   "unlock [paths...]",
	Short: "Remove the mandatory integrity label from files or directories",
	Long: `Removes labels applied by lock. When a password vault exists, the vault
password is required; a failed verification touches no objects.`,
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cerr.New("at least one path is required")
		}

		rt, err := rc.BuildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		auth, vstore := rc.VaultAuth()
		var verifier batch.Verifier
		if vstore.Exists() {
			password, err := cli.PromptPassword("Vault password: ")
			if err != nil {
				return err
			}
			verifier = batch.NewVaultVerifier(auth, vstore, password)
		}

		paths, err := expandPaths(rc, args, unlockFlags.recursive)
		if err != nil {
			return err
		}

		opts := batch.DefaultOptions()
		opts.Parallelism = rc.Settings.Parallelism
		if unlockFlags.parallelism > 0 {
			opts.Parallelism = unlockFlags.parallelism
		}
		opts.DryRun = unlockFlags.dryRun

		var result batch.Result
		if unlockFlags.force {
			priv := batch.NewPrivileged(rt.Orch, privilege.NewPlatformEscalator(), rt.Prober)
			result, err = priv.ForceUnlock(rc.Ctx, paths, opts, verifier, consoleProgress(cmd))
		} else {
			result, err = rt.Orch.Unlock(rc.Ctx, paths, opts, verifier, consoleProgress(cmd))
		}
		if err != nil {
			return err
		}

		printResult(cmd, "unlock", result)
		return nil
	}),
}

func init() {
	f := unlockCmd.Flags()
	f.BoolVarP(&unlockFlags.recursive, "recursive", "r", false, "descend into directories")
	f.BoolVar(&unlockFlags.dryRun, "dry-run", false, "report what would change without touching anything")
	f.IntVar(&unlockFlags.parallelism, "parallelism", 0, "worker count (default from settings)")
	f.BoolVar(&unlockFlags.force, "force", false, "escalate to SYSTEM for objects out of reach")
}
