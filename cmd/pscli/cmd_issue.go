// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pscli/pscli/internal/issue"
)

// newIssueCommand prints the troubleshooting pages shipped with pscli.
func newIssueCommand(app *App) *cobra.Command {
	var style string
	issueCmd := &cobra.Command{
		Use:   "issue [slug]",
		Short: "Explain a known error and how to fix it",
		Example: `  pscli issue
  pscli issue incorrect-password`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			slugs := make([]string, 0, len(issue.Values()))
			for _, i := range issue.Values() {
				slugs = append(slugs, i.Slug())
			}
			return slugs, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(app.stdout, TitleStyle.Render("Known issues"))
				for _, i := range issue.Values() {
					fmt.Fprintf(app.stdout, "  %s  %s\n", CmdStyle.Render(fmt.Sprintf("%-24s", i.Slug())), i.Title())
				}
				return nil
			}
			found := issue.BySlug(args[0])
			if found == nil {
				return fmt.Errorf("no issue named %q; run 'pscli issue' for the list", args[0])
			}
			rendered, err := found.Render(style)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&style, "style", "dark", "glamour style: dark, light, notty or a JSON style file")
	return issueCmd
}
