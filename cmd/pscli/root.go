// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for pscli.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pscli/pscli/internal/issue"
	"github.com/pscli/pscli/internal/render"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose    bool
	configPath string
	watch      bool
	strict     bool
	output     string
}

// bind registers the persistent root flags on fs.
func (f *rootFlagValues) bind(fs *pflag.FlagSet) {
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose output")
	fs.StringVar(&f.configPath, "config", "", "settings file (default is $PSCLI_HOME/settings/terminal.json)")
	fs.BoolVarP(&f.watch, "watch", "w", false, "reload automatically when scanned folders change")
	fs.BoolVar(&f.strict, "strict", false, "exit non-zero when a command is unknown, denied or fails")
	fs.StringVarP(&f.output, "output", "o", string(render.FormatTable), "output format: table, plain, json, yaml or toml")
}

// NewRootCommand builds the command tree over app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "pscli [command] [args...]",
		Short: "Plugin-driven interactive command shell",
		Long: TitleStyle.Render("pscli") + SubtitleStyle.Render(" - plugin-driven interactive command shell") + `

pscli discovers commands from the plugins, games, ascii, tools, health
and install folders under its root directory and dispatches typed words
to them. Without arguments it starts the interactive prompt.

` + SubtitleStyle.Render("Examples:") + `
  pscli                     Start the interactive prompt
  pscli calc 2 3            Run one command and exit
  pscli list games          List the games group
  pscli serve               Share the prompt over SSH
  pscli config init         Write the default terminal.json
  pscli -- list             Run a loaded command named like a subcommand

A loaded command whose name matches a pscli subcommand wins in the bare
form; pscli's own built-in commands never shadow subcommands.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runInteractive(cmd, app, flags)
			}
			return runOnce(cmd, app, flags, args, flags.strict)
		},
	}
	// Flags after the trigger belong to the command, not to pscli.
	rootCmd.Flags().SetInterspersed(false)

	flags.bind(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newListCommand(app, flags),
		newRunCommand(app, flags),
		newProtectCommand(app, flags),
		newHistoryCommand(app, flags),
		newServeCommand(app, flags),
		newConfigCommand(app, flags),
		newIssueCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	ctx := context.Background()
	app := NewApp(Dependencies{})
	root := NewRootCommand(app)
	root.SetArgs(app.routeArgs(ctx, root, os.Args[1:]))
	if err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
