/* cmd/vault.go */

package cmd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/cli"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the password vault that gates unlock",
}

var vaultCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or replace) the password vault",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		auth, store := rc.VaultAuth()

		password, err := cli.PromptPassword("New vault password: ")
		if err != nil {
			return err
		}
		if len(password) < 8 {
			return cerr.New("password must be at least 8 characters")
		}
		confirm, err := cli.PromptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return cerr.New("passwords do not match")
		}

		blob, err := auth.CreateVault(password)
		if err != nil {
			return err
		}
		if err := store.Write(blob); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "vault created at %s\n", store.Path())
		return nil
	}),
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a vault exists and is readable",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		auth, store := rc.VaultAuth()
		out := cmd.OutOrStdout()

		if !store.Exists() {
			fmt.Fprintf(out, "no vault at %s\n", store.Path())
			return nil
		}

		data, err := store.Read()
		if err != nil {
			return err
		}
		rec, err := auth.LoadVault(data)
		if err != nil {
			fmt.Fprintf(out, "vault at %s exists but cannot be read: %v\n", store.Path(), err)
			return nil
		}
		fmt.Fprintf(out, "vault at %s (version %d, %s)\n", store.Path(), rec.Version, rec.Params)
		return nil
	}),
}

var vaultVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a password against the vault without changing anything",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		auth, store := rc.VaultAuth()

		data, err := store.Read()
		if err != nil {
			return err
		}

		password, err := cli.PromptPassword("Vault password: ")
		if err != nil {
			return err
		}
		ok, err := auth.VerifyPassword(data, password)
		if err != nil {
			return err
		}
		if !ok {
			return cerr.New("password rejected")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "password accepted")
		return nil
	}),
}

var vaultRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the vault after verifying its password",
	RunE: cli.Wrap(func(rc *cli.RuntimeContext, cmd *cobra.Command, args []string) error {
		auth, store := rc.VaultAuth()

		data, err := store.Read()
		if err != nil {
			return err
		}

		password, err := cli.PromptPassword("Vault password: ")
		if err != nil {
			return err
		}
		ok, err := auth.VerifyPassword(data, password)
		if err != nil {
			return err
		}
		if !ok {
			return cerr.New("password rejected")
		}

		if err := store.Remove(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "vault removed")
		return nil
	}),
}

func init() {
	vaultCmd.AddCommand(vaultCreateCmd, vaultStatusCmd, vaultVerifyCmd, vaultRemoveCmd)
}
