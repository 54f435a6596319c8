// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/issue"
	"github.com/pscli/pscli/internal/render"
)

// newConfigCommand creates the `pscli config` command tree.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pscli settings",
		Long: `Manage pscli settings.

Settings are stored in terminal.json inside the settings directory:
  $PSCLI_HOME/settings, or ~/.polsoft/psCli/settings by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings and derived paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, flags)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the settings file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

func settingsPath(flags *rootFlagValues) (string, error) {
	if flags.configPath != "" {
		return flags.configPath, nil
	}
	dir, err := config.SettingsDir()
	if err != nil {
		return "", err
	}
	return dir + string(os.PathSeparator) + config.SettingsFileName, nil
}

func showConfig(ctx context.Context, app *App, flags *rootFlagValues) error {
	loaded, err := config.LoadResolved(ctx, loadOptions(flags))
	if loaded == nil {
		rendered, _ := issue.Get(issue.SettingsInvalidId).Render("dark")
		fmt.Fprint(app.stderr, rendered)
		return err
	}
	if err != nil {
		fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, flags.verbose))
	}

	format, err := render.ParseFormat(flags.output)
	if err != nil {
		return err
	}
	masked := *loaded.Settings
	if masked.Security.MaintePassword != "" {
		masked.Security.MaintePassword = "********"
	}
	switch format {
	case render.FormatJSON:
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(masked)
	case render.FormatYAML, render.FormatTOML:
		// Settings only carry json tags; go through a generic map.
		var generic map[string]any
		data, err := json.Marshal(masked)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		if format == render.FormatTOML {
			return toml.NewEncoder(app.stdout).Encode(generic)
		}
		return yaml.NewEncoder(app.stdout).Encode(generic)
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	p := loaded.Paths
	s := loaded.Settings

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Settings"))
	fmt.Fprintln(app.stdout)
	source := SubtitleStyle.Render("(using defaults)")
	if loaded.Source != "" {
		source = loaded.Source
	}
	fmt.Fprintf(app.stdout, "%s: %s\n\n", keyStyle.Render("Settings file"), source)

	rows := []struct{ key, value string }{
		{"root_dir", p.Root},
		{"plugins_folder", p.Plugins},
		{"metadata_folder", p.Metadata},
		{"protected", p.Protected},
		{"password", p.Password},
		{"history", p.History},
		{"virtual_shell", fmt.Sprint(s.Dispatcher.VirtualShell)},
		{"clear_on_menu", fmt.Sprint(s.UI.ClearOnMenu)},
		{"default_prompt", fmt.Sprintf("%q", s.UI.DefaultPrompt)},
		{"history.enabled", fmt.Sprint(s.History.Enabled)},
		{"watch.enabled", fmt.Sprint(s.Watch.Enabled)},
		{"watch.debounce_ms", fmt.Sprint(s.Watch.DebounceMS)},
		{"serve.address", s.Serve.Address},
	}
	for _, r := range rows {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render(r.key), valueStyle.Render(r.value))
	}
	return nil
}

func initConfig(app *App, flags *rootFlagValues) error {
	path, err := settingsPath(flags)
	if err != nil {
		return err
	}
	written, err := config.WriteDefault(path)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("write default settings").
			WithResource(path).
			WithSuggestion("Check that the settings directory is writable").
			Wrap(err).
			BuildError()
	}
	if !written {
		fmt.Fprintf(app.stdout, "%s Settings already exist at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
