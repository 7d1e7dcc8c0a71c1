/* cmd/inspect.go */

package cmd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/cli"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [paths...]",
	Short: "Show the mandatory label of objects and the caller's capability",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cerr.New("at least one path is required")
		}

		rt, err := rc.BuildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()

		cap, err := rt.Prober.Probe(rc.Ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "caller: %s integrity, sacl=%v, system-label=%v, sid=%s\n",
			cap.CallerLevel, cap.CanTouchSACL, cap.CanSetSystem, cap.UserIdentity)

		for _, path := range args {
			obj, err := rt.Store.GetLabel(path)
			if err != nil {
				fmt.Fprintf(out, "%s: error: %v\n", path, err)
				continue
			}
			if obj.Explicit {
				fmt.Fprintf(out, "%s: %s / %s (%s)\n", path, obj.Level, obj.Policy, obj.Raw)
			} else {
				fmt.Fprintf(out, "%s: no explicit label (implicit %s / %s)\n", path, obj.Level, obj.Policy)
			}
		}
		return nil
	}),
}
