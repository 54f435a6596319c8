// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pscli/pscli/internal/protect"
	"github.com/pscli/pscli/internal/repl"
)

// runInteractive starts the prompt on the process stdio. A console gets a
// line editor; other input is read line by line. Either way line input and
// password prompts share one reader.
func runInteractive(cmd *cobra.Command, app *App, flags *rootFlagValues) error {
	ctx := cmd.Context()
	svc, err := app.open(ctx, flags)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if svc.watchEnabled(flags) {
		go runWatcher(ctx, app, svc)
	}

	if term.IsTerminal(int(app.stdin.Fd())) {
		console := repl.NewTerminal(app.stdin, app.stdout)
		return repl.New(app.session(svc, console), console, repl.WithLogger(svc.logger)).Run(ctx)
	}
	lines := bufio.NewReader(app.stdin)
	prompter := protect.NewTermPrompter(app.stdin, app.stdout).WithLineReader(lines)
	loop := repl.New(app.session(svc, prompter), repl.NewPromptReader(lines, app.stdout), repl.WithLogger(svc.logger))
	return loop.Run(ctx)
}

// runOnce dispatches args[0] with the remaining args. With strict set, an
// unknown, denied or failed command becomes a non-zero exit.
func runOnce(cmd *cobra.Command, app *App, flags *rootFlagValues, args []string, strict bool) error {
	ctx := cmd.Context()
	svc, err := app.open(ctx, flags)
	if err != nil {
		return err
	}
	defer svc.Close()

	prompter := protect.NewTermPrompter(app.stdin, app.stdout)
	res := app.session(svc, prompter).Execute(ctx, args[0], args[1:]...)
	svc.logger.Debug("dispatched", "trigger", res.Trigger, "name", res.Name, "outcome", res.Outcome.String())
	if strict && !res.Outcome.OK() {
		return silentExit(cmd, res.ExitCode())
	}
	return nil
}

func newRunCommand(app *App, flags *rootFlagValues) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <command> [args...]",
		Short: "Run one command and exit with its status",
		Long: `Run one command and exit with its status.

Unlike the bare form (pscli <command>), run always reports an unknown,
denied or failed command through the exit status, and it reaches
commands whose names collide with pscli subcommands.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, app, flags, args, true)
		},
	}
	runCmd.Flags().SetInterspersed(false)
	return runCmd
}

func newListCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var all bool
	listCmd := &cobra.Command{
		Use:   "list [group]",
		Short: "List commands, optionally of one group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.open(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer svc.Close()

			s := app.session(svc, nil)
			switch {
			case len(args) == 1:
				if !svc.d.State().Registry.HasGroup(args[0]) {
					return fmt.Errorf("no such group: %s", args[0])
				}
				s.ShowGroup(args[0])
			case all:
				s.ShowModules()
			default:
				s.ShowAll()
			}
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&all, "all", "a", false, "include the menu group")
	return listCmd
}
