/* cmd/audit.go */

package cmd

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/audit"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/cli"
	"github.com/spf13/cobra"
)

var auditFlags struct {
	tail   int
	status string
	path   string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read the append-only operation log",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		var records []audit.Record
		var err error

		filter := audit.Filter{Status: auditFlags.status, PathContains: auditFlags.path}
		if filter == (audit.Filter{}) && auditFlags.tail > 0 {
			records, err = audit.Tail(rc.Settings.AuditLogPath, auditFlags.tail)
		} else {
			records, err = audit.Read(rc.Settings.AuditLogPath, filter)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "no matching records")
			return nil
		}
		for _, rec := range records {
			line := fmt.Sprintf("%s  %-9s  %s  %s/%s  %s",
				rec.TimeUTC, rec.Status, rec.Path, rec.LevelApplied, rec.Policy, rec.Mode)
			if len(rec.Errors) > 0 {
				line += "  " + strings.Join(rec.Errors, "; ")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}),
}

func init() {
	f := auditCmd.Flags()
	f.IntVarP(&auditFlags.tail, "tail", "n", 20, "show only the last N records")
	f.StringVar(&auditFlags.status, "status", "", "filter by status (success, error, unlocked)")
	f.StringVar(&auditFlags.path, "path", "", "filter by path substring")
}
