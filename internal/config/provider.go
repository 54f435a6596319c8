// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

type (
	// LoadOptions defines explicit settings loading inputs.
	LoadOptions struct {
		// SettingsFilePath forces a specific terminal.json when set.
		SettingsFilePath string
		// SettingsDirPath overrides SettingsDir() when set.
		SettingsDirPath string
	}

	// Provider loads settings from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Settings, error)
	}

	// Loaded bundles settings with the paths derived from them.
	Loaded struct {
		Settings *Settings
		Paths    Paths
		// Source is the file that was read, or "" when defaults were used.
		Source string
	}

	fileProvider struct{}
)

// NewProvider creates a settings provider backed by the filesystem.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads settings from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Settings, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadResolved loads settings and resolves their paths in one step. When the
// settings file is rejected the defaults are returned together with the
// error, so callers can warn and carry on.
func LoadResolved(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dir, err := opts.settingsDir()
	if err != nil {
		return nil, err
	}

	s, source, loadErr := loadWithOptions(ctx, opts)
	if loadErr != nil {
		if ctx.Err() != nil {
			return nil, loadErr
		}
		s, source = DefaultSettings(), ""
	}

	paths, err := s.ResolvePaths(dir)
	if err != nil {
		return nil, errors.Join(loadErr, err)
	}
	return &Loaded{Settings: s, Paths: paths, Source: source}, loadErr
}

// Validate rejects whitespace-only paths.
func (o LoadOptions) Validate() error {
	var errs []error
	if o.SettingsFilePath != "" && strings.TrimSpace(o.SettingsFilePath) == "" {
		errs = append(errs, errors.New("settings file path must not be blank"))
	}
	if o.SettingsDirPath != "" && strings.TrimSpace(o.SettingsDirPath) == "" {
		errs = append(errs, errors.New("settings dir path must not be blank"))
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}

func (o LoadOptions) settingsDir() (string, error) {
	if o.SettingsFilePath != "" {
		return filepath.Dir(o.SettingsFilePath), nil
	}
	if o.SettingsDirPath != "" {
		return o.SettingsDirPath, nil
	}
	return SettingsDir()
}

func (o LoadOptions) settingsFile() (string, error) {
	if o.SettingsFilePath != "" {
		return o.SettingsFilePath, nil
	}
	dir, err := o.settingsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}
