// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// AppName is the application name.
	AppName = "pscli"

	// EnvHome overrides the per-user data directory.
	EnvHome = "PSCLI_HOME"
	// EnvRoot overrides the installation root that holds plugins, games,
	// ascii, tools, health and install.
	EnvRoot = "PSCLI_ROOT"
	// EnvMaintePassword overrides the maintenance group password.
	EnvMaintePassword = "PSCLI_MAINTE_PASS"

	// SettingsFileName is the settings file inside SettingsDir.
	SettingsFileName = "terminal.json"
	// ProtectedFileName holds the protected command and module names.
	ProtectedFileName = "protected.json"
	// PasswordFileName holds the hashed protection password.
	PasswordFileName = "haslo.txt"
	// HistoryFileName is the SQLite execution log inside Home.
	HistoryFileName = "history.db"
)

// Home returns the per-user data directory: $PSCLI_HOME, or
// ~/.polsoft/psCli.
func Home() (string, error) {
	if h := os.Getenv(EnvHome); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".polsoft", "psCli"), nil
}

// SettingsDir returns the directory holding terminal.json, protected.json
// and haslo.txt.
func SettingsDir() (string, error) {
	h, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, "settings"), nil
}

// RootDir returns the installation root: $PSCLI_ROOT or the working
// directory.
func RootDir() (string, error) {
	if r := os.Getenv(EnvRoot); r != "" {
		return filepath.Abs(r)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}
