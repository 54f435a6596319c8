// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DefaultPluginsFolder is the plugins folder relative to the root dir.
	DefaultPluginsFolder = "plugins"
	// DefaultMetadataFolder is the metadata folder relative to the root dir.
	DefaultMetadataFolder = "metadata"
	// DefaultPrompt is the REPL prompt template.
	DefaultPrompt = "{root_dir} > "
	// DefaultMaintePassword is the maintenance password used when neither
	// the environment nor the settings provide one.
	DefaultMaintePassword = "polsoft"
	// DefaultWatchDebounceMS is the watcher quiet period in milliseconds.
	DefaultWatchDebounceMS = 500
	// DefaultServeAddress is the listen address of `pscli serve`.
	DefaultServeAddress = "127.0.0.1:2323"
)

// ErrInvalidLoadOptions is the sentinel wrapped by InvalidLoadOptionsError.
var ErrInvalidLoadOptions = errors.New("invalid load options")

type (
	// Settings is the typed view of terminal.json.
	Settings struct {
		Dispatcher DispatcherSettings `json:"dispatcher" mapstructure:"dispatcher"`
		UI         UISettings         `json:"ui" mapstructure:"ui"`
		Security   SecuritySettings   `json:"security" mapstructure:"security"`
		History    HistorySettings    `json:"history" mapstructure:"history"`
		Watch      WatchSettings      `json:"watch" mapstructure:"watch"`
		Serve      ServeSettings      `json:"serve" mapstructure:"serve"`
	}

	// DispatcherSettings locates the scanned folders.
	DispatcherSettings struct {
		// RootDir holds plugins, games, ascii, tools, health, install and
		// build.ps1. Empty means RootDir().
		RootDir string `json:"root_dir" mapstructure:"root_dir"`
		// PluginsFolder is absolute or relative to RootDir.
		PluginsFolder string `json:"plugins_folder" mapstructure:"plugins_folder"`
		// MetadataFolder is absolute or relative to RootDir.
		MetadataFolder string `json:"metadata_folder" mapstructure:"metadata_folder"`
		// VirtualShell runs .sh files in the embedded shell interpreter.
		VirtualShell bool `json:"virtual_shell" mapstructure:"virtual_shell"`
	}

	// UISettings controls the REPL front end.
	UISettings struct {
		ClearOnMenu   bool   `json:"clear_on_menu" mapstructure:"clear_on_menu"`
		DefaultPrompt string `json:"default_prompt" mapstructure:"default_prompt"`
		Verbose       bool   `json:"verbose" mapstructure:"verbose"`
	}

	// SecuritySettings holds the maintenance group password.
	SecuritySettings struct {
		MaintePassword string `json:"mainte_password" mapstructure:"mainte_password"`
	}

	// HistorySettings controls the execution log.
	HistorySettings struct {
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Path overrides Home()/history.db.
		Path string `json:"path" mapstructure:"path"`
	}

	// WatchSettings controls automatic reload.
	WatchSettings struct {
		Enabled    bool `json:"enabled" mapstructure:"enabled"`
		DebounceMS int  `json:"debounce_ms" mapstructure:"debounce_ms"`
	}

	// ServeSettings controls `pscli serve`.
	ServeSettings struct {
		Address string `json:"address" mapstructure:"address"`
	}

	// Paths are the absolute locations derived from Settings.
	Paths struct {
		Root      string
		Plugins   string
		Metadata  string
		Settings  string
		Protected string
		Password  string
		History   string
	}

	// InvalidLoadOptionsError lists every malformed LoadOptions field.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}
)

// DefaultSettings returns the settings used when terminal.json is absent.
func DefaultSettings() *Settings {
	return &Settings{
		Dispatcher: DispatcherSettings{
			PluginsFolder:  DefaultPluginsFolder,
			MetadataFolder: DefaultMetadataFolder,
		},
		UI: UISettings{
			ClearOnMenu:   true,
			DefaultPrompt: DefaultPrompt,
		},
		History: HistorySettings{Enabled: true},
		Watch:   WatchSettings{DebounceMS: DefaultWatchDebounceMS},
		Serve:   ServeSettings{Address: DefaultServeAddress},
	}
}

// ResolvePaths turns the relative folders of s into absolute paths.
// settingsDir is the directory terminal.json was looked up in.
func (s *Settings) ResolvePaths(settingsDir string) (Paths, error) {
	root := s.Dispatcher.RootDir
	if root == "" {
		r, err := RootDir()
		if err != nil {
			return Paths{}, err
		}
		root = r
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve root dir: %w", err)
	}

	history := s.History.Path
	if history == "" {
		history = filepath.Join(filepath.Dir(settingsDir), HistoryFileName)
	}

	return Paths{
		Root:      root,
		Plugins:   underRoot(root, s.Dispatcher.PluginsFolder, DefaultPluginsFolder),
		Metadata:  underRoot(root, s.Dispatcher.MetadataFolder, DefaultMetadataFolder),
		Settings:  filepath.Join(settingsDir, SettingsFileName),
		Protected: filepath.Join(settingsDir, ProtectedFileName),
		Password:  filepath.Join(settingsDir, PasswordFileName),
		History:   history,
	}, nil
}

// MaintePassword returns the maintenance password: environment, then
// settings, then DefaultMaintePassword.
func (s *Settings) MaintePassword(getenv func(string) string) string {
	if getenv != nil {
		if v := getenv(EnvMaintePassword); v != "" {
			return v
		}
	}
	if s.Security.MaintePassword != "" {
		return s.Security.MaintePassword
	}
	return DefaultMaintePassword
}

// Prompt renders the REPL prompt for the given root dir.
func (s *Settings) Prompt(rootDir string) string {
	tmpl := s.UI.DefaultPrompt
	if tmpl == "" {
		tmpl = DefaultPrompt
	}
	return strings.ReplaceAll(tmpl, "{root_dir}", filepath.Base(rootDir))
}

// Error implements the error interface.
func (e *InvalidLoadOptionsError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid load options: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidLoadOptions.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }

func underRoot(root, folder, fallback string) string {
	if folder == "" {
		folder = fallback
	}
	if filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(root, folder)
}
