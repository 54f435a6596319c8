// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pscli/pscli/internal/builtin"
	"github.com/pscli/pscli/internal/history"
	"github.com/pscli/pscli/internal/render"
)

func newHistoryCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var clearAll bool
	historyCmd := &cobra.Command{
		Use:   "history [n]",
		Short: "Show recently dispatched commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			limit := builtin.DefaultHistoryLimit
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 0 {
					return fmt.Errorf("history: %q is not a count", args[0])
				}
				limit = n
			}
			format, err := render.ParseFormat(flags.output)
			if err != nil {
				return err
			}

			loaded, err := app.loadSettings(ctx, flags)
			if err != nil {
				return err
			}
			_, logger := app.newLogger(flags.verbose)
			store, err := history.Open(ctx, loaded.Paths.History, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if clearAll {
				n, err := store.Clear(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.stdout, "%s Removed %d entries\n", SuccessStyle.Render("✓"), n)
				return nil
			}

			entries, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			return writeHistory(app.stdout, format, entries)
		},
	}
	historyCmd.Flags().BoolVar(&clearAll, "clear", false, "delete every recorded entry")
	return historyCmd
}

// writeHistory prints entries newest first in the requested format.
func writeHistory(w io.Writer, format render.Format, entries []history.Entry) error {
	switch format {
	case render.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case render.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case render.FormatTOML:
		// TOML documents are tables, so the list goes under a key.
		return toml.NewEncoder(w).Encode(struct {
			Entries []history.Entry `toml:"entries"`
		}{entries})
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No history yet."))
		return nil
	}
	styled := format == render.FormatTable
	for _, e := range entries {
		stamp := e.StartedAt.Local().Format(time.DateTime)
		outcome := fmt.Sprintf("%-8s", e.Outcome)
		line := strings.TrimSpace(e.Trigger + " " + strings.Join(e.Args, " "))
		if styled {
			stamp = SubtitleStyle.Render(stamp)
			if e.Outcome == "ran" {
				outcome = SuccessStyle.Render(outcome)
			} else {
				outcome = WarningStyle.Render(outcome)
			}
			line = CmdStyle.Render(line)
		}
		fmt.Fprintf(w, "%s  %s %s\n", stamp, outcome, line)
		if e.Error != "" {
			fmt.Fprintf(w, "    %s\n", e.Error)
		}
	}
	return nil
}
