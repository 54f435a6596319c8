// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pscli/pscli/internal/builtin"
	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/dispatch"
	"github.com/pscli/pscli/internal/history"
	"github.com/pscli/pscli/internal/protect"
	"github.com/pscli/pscli/internal/render"
	"github.com/pscli/pscli/internal/runtime"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and opens
	// its services through it.
	App struct {
		stdin    *os.File
		stdout   io.Writer
		stderr   io.Writer
		getenv   func(string) string
		lookPath runtime.LookPathFunc
		now      func() time.Time
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Stdin    *os.File
		Stdout   io.Writer
		Stderr   io.Writer
		Getenv   func(string) string
		LookPath runtime.LookPathFunc
		Now      func() time.Time
	}

	// services is one loaded dispatcher with the stores behind it.
	services struct {
		loaded    *config.Loaded
		d         *dispatch.Dispatcher
		protected *protect.ProtectedStore
		passwords *protect.PasswordStore
		history   *history.Store
		logger    *slog.Logger
		charm     *log.Logger
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.LookPath == nil {
		deps.LookPath = exec.LookPath
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{
		stdin:    deps.Stdin,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
		getenv:   deps.Getenv,
		lookPath: deps.LookPath,
		now:      deps.Now,
	}
}

// newLogger returns a charm logger on stderr and the slog logger over it.
func (a *App) newLogger(verbose bool) (*log.Logger, *slog.Logger) {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	charm := log.NewWithOptions(a.stderr, log.Options{
		Level:           level,
		ReportTimestamp: verbose,
		TimeFormat:      time.TimeOnly,
	})
	return charm, slog.New(charm)
}

// loadOptions maps the root flags to settings load options.
func loadOptions(flags *rootFlagValues) config.LoadOptions {
	return config.LoadOptions{SettingsFilePath: flags.configPath}
}

// loadSettings reads settings, warning about a rejected file and falling
// back to defaults.
func (a *App) loadSettings(ctx context.Context, flags *rootFlagValues) (*config.Loaded, error) {
	loaded, err := config.LoadResolved(ctx, loadOptions(flags))
	if loaded == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, flags.verbose))
	}
	return loaded, nil
}

// open loads settings, opens the stores and performs the first load of a
// dispatcher. Callers must Close the result.
func (a *App) open(ctx context.Context, flags *rootFlagValues) (*services, error) {
	loaded, err := a.loadSettings(ctx, flags)
	if err != nil {
		return nil, err
	}
	verbose := flags.verbose || loaded.Settings.UI.Verbose
	charm, logger := a.newLogger(verbose)

	format, err := render.ParseFormat(flags.output)
	if err != nil {
		return nil, err
	}

	svc := &services{
		loaded:    loaded,
		protected: protect.NewProtectedStore(loaded.Paths.Protected),
		passwords: protect.NewPasswordStore(loaded.Paths.Password),
		logger:    logger,
		charm:     charm,
	}

	if loaded.Settings.History.Enabled {
		hs, histErr := history.Open(ctx, loaded.Paths.History, logger)
		if histErr != nil {
			logger.Warn("history disabled", "path", loaded.Paths.History, "error", histErr)
		} else {
			svc.history = hs
		}
	}

	deps := builtin.Deps{Protected: svc.protected, Passwords: svc.passwords, Logger: logger}
	opts := dispatch.Options{
		Settings: func(ctx context.Context) (*config.Loaded, error) {
			return config.LoadResolved(ctx, loadOptions(flags))
		},
		Protected: svc.protected,
		Passwords: svc.passwords,
		Presenter: render.NewPresenter(format),
		LookPath:  a.lookPath,
		Getenv:    a.getenv,
		Now:       a.now,
		Logger:    logger,

		ModuleOutput: a.stdout,
	}
	// Assigned only when open so the interfaces never hold a nil *Store.
	if svc.history != nil {
		deps.History = svc.history
		opts.Recorder = svc.history
	}
	opts.Builtins = builtin.Commands(deps)

	svc.d = dispatch.New(opts)
	if err := svc.d.Load(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

// session returns a session over the app's stdio.
func (a *App) session(svc *services, prompter protect.Prompter) *dispatch.Session {
	return svc.d.NewSession(a.stdin, a.stdout, a.stderr, prompter)
}

// Close releases the dispatcher and the history database.
func (s *services) Close() error {
	if s.d != nil {
		s.d.Close()
	}
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

// watchEnabled reports whether automatic reload is on.
func (s *services) watchEnabled(flags *rootFlagValues) bool {
	return flags.watch || s.loaded.Settings.Watch.Enabled
}
