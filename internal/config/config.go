// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pscli/pscli/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

// maxSettingsSize bounds terminal.json; plugins append logs to it, so a
// runaway file should not be read into memory whole.
const maxSettingsSize = 4 << 20

//go:embed settings_schema.cue
var settingsSchema string

// loadWithOptions reads and validates terminal.json. A missing file yields
// the defaults without error.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Settings, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load settings canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultSettings())

	path, err := opts.settingsFile()
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		path = ""
	case err != nil:
		return nil, "", issue.NewErrorContext().
			WithOperation("read settings").
			WithResource(path).
			WithSuggestion("Check that the file is readable").
			Wrap(err).
			BuildError()
	default:
		if err := mergeSettings(v, path, data); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(path).
				WithSuggestion("Check that the file contains valid JSON").
				WithSuggestion("Run 'pscli config show' to see the expected keys").
				Wrap(err).
				BuildError()
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, path, nil
}

func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("dispatcher.root_dir", d.Dispatcher.RootDir)
	v.SetDefault("dispatcher.plugins_folder", d.Dispatcher.PluginsFolder)
	v.SetDefault("dispatcher.metadata_folder", d.Dispatcher.MetadataFolder)
	v.SetDefault("dispatcher.virtual_shell", d.Dispatcher.VirtualShell)
	v.SetDefault("ui.clear_on_menu", d.UI.ClearOnMenu)
	v.SetDefault("ui.default_prompt", d.UI.DefaultPrompt)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("security.mainte_password", d.Security.MaintePassword)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce_ms", d.Watch.DebounceMS)
	v.SetDefault("serve.address", d.Serve.Address)
}

// mergeSettings validates data against #Settings and merges it into v.
// JSON is a subset of CUE, so the file compiles directly.
func mergeSettings(v *viper.Viper, path string, data []byte) error {
	if len(data) > maxSettingsSize {
		return fmt.Errorf("settings file is %d bytes, limit is %d", len(data), maxSettingsSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(settingsSchema)
	if schema.Err() != nil {
		return fmt.Errorf("internal error: failed to compile settings schema: %w", schema.Err())
	}

	user := cctx.CompileBytes(data, cue.Filename(path))
	if user.Err() != nil {
		return formatCUEError(user.Err(), path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Settings")).Unify(user)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	v.SetConfigType("json")
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}
	return nil
}

// formatCUEError flattens a CUE error list into "path: message" lines.
func formatCUEError(err error, path string) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}
	lines := make([]string, 0, len(list))
	for _, e := range list {
		field := strings.Join(cueerrors.Path(e), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if field != "" {
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}
	return fmt.Errorf("%s: %s", filepath.Base(path), strings.Join(lines, "; "))
}

// WriteDefault writes the default settings to path unless a file already
// exists there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(DefaultSettings(), "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("failed to write settings: %w", err)
	}
	return true, nil
}
