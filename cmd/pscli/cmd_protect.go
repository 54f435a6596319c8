// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pscli/pscli/internal/builtin"
	"github.com/pscli/pscli/internal/protect"
)

// newProtectCommand exposes the passwd builtin outside the prompt.
func newProtectCommand(app *App, flags *rootFlagValues) *cobra.Command {
	protectCmd := &cobra.Command{
		Use:   "protect [subcommand] [names...]",
		Short: "Manage the password and protected commands",
		Long: `Manage the password and the set of protected commands.

Subcommands are those of the passwd command: list, protect, unprotect,
mod, clear, change and reset. Without a subcommand it asks for the
password and lists the protected set.`,
		Example: `  pscli protect list
  pscli protect protect backup restore
  pscli protect mod netscan
  pscli protect change`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := app.open(ctx, flags)
			if err != nil {
				return err
			}
			defer svc.Close()

			prompter := protect.NewTermPrompter(app.stdin, app.stdout)
			res := app.session(svc, prompter).Execute(ctx, builtin.PasswdName, args...)
			if !res.Outcome.OK() {
				return silentExit(cmd, res.ExitCode())
			}
			return nil
		},
	}
	protectCmd.Flags().SetInterspersed(false)
	return protectCmd
}
