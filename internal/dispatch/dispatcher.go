// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/discovery"
	luaplugin "github.com/pscli/pscli/internal/plugin/lua"
	"github.com/pscli/pscli/internal/protect"
	"github.com/pscli/pscli/internal/runtime"
)

// ErrNotLoaded is returned by operations that need a State before Load.
var ErrNotLoaded = errors.New("dispatcher not loaded")

type (
	// SettingsLoader returns the settings and resolved paths for a load.
	// It may return usable settings together with an error; the error is
	// then logged and the settings used.
	SettingsLoader func(ctx context.Context) (*config.Loaded, error)

	// Recorder receives one Event per dispatched command.
	Recorder interface {
		Record(ctx context.Context, ev Event) error
	}

	// Event describes one dispatched command for the history log.
	Event struct {
		Trigger   string
		Name      string
		Args      []string
		Outcome   Outcome
		Err       error
		StartedAt time.Time
		Duration  time.Duration
	}

	// Options configures a Dispatcher.
	Options struct {
		Settings SettingsLoader
		// Builtins are registered before any scanned file, so a plugin with
		// the same name replaces them.
		Builtins []command.Descriptor
		// Protected and Passwords back the protection gate. A nil Protected
		// store disables the protected-set check.
		Protected *protect.ProtectedStore
		Passwords *protect.PasswordStore
		// Prompter answers challenges for the process session. Nil reads
		// the password from os.Stdin.
		Prompter  protect.Prompter
		Presenter Presenter
		Recorder  Recorder
		// LookPath overrides exec.LookPath for external handlers.
		LookPath runtime.LookPathFunc
		// Getenv overrides os.Getenv for the maintenance password.
		Getenv func(string) string
		// Now overrides time.Now for history timestamps.
		Now func() time.Time
		// ModuleOutput receives what native modules print while loading.
		ModuleOutput io.Writer
		Logger       *slog.Logger
	}

	// State is one immutable load of the dispatcher.
	State struct {
		Registry    *command.Registry
		Settings    *config.Settings
		Paths       config.Paths
		Runtimes    *runtime.Registry
		Diagnostics []discovery.Diagnostic
		// LoadFailures lists native modules that did not load.
		LoadFailures []error
		LoadedAt     time.Time

		modules []*luaplugin.Module
	}

	// Dispatcher resolves and executes triggers against the current State.
	Dispatcher struct {
		opts    Options
		gate    *protect.Gate
		logger  *slog.Logger
		state   atomic.Pointer[State]
		loadMu  sync.Mutex
		session *Session
	}
)

// New creates a dispatcher. Call Load before Execute. The process session
// uses os stdio and opts.Prompter, or a TermPrompter over os.Stdin and
// os.Stdout when that is nil.
func New(opts Options) *Dispatcher {
	if opts.Presenter == nil {
		opts.Presenter = PlainPresenter{}
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ModuleOutput == nil {
		opts.ModuleOutput = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Prompter == nil {
		opts.Prompter = protect.NewTermPrompter(os.Stdin, os.Stdout)
	}

	d := &Dispatcher{opts: opts, logger: opts.Logger}
	d.gate = protect.NewGate(opts.Protected, opts.Passwords, d.maintePassword, opts.Logger)
	d.session = d.NewSession(os.Stdin, os.Stdout, os.Stderr, opts.Prompter)
	return d
}

// State returns the current snapshot, or nil before Load.
func (d *Dispatcher) State() *State { return d.state.Load() }

// Gate returns the protection gate.
func (d *Dispatcher) Gate() *protect.Gate { return d.gate }

// Presenter returns the configured presenter.
func (d *Dispatcher) Presenter() Presenter { return d.opts.Presenter }

// Load builds the first State.
func (d *Dispatcher) Load(ctx context.Context) error { return d.Reload(ctx) }

// Reload re-reads settings, rescans every folder and swaps in a new State.
// Modules of the previous State are closed once the swap is done. Only
// context cancellation makes it fail; every other problem degrades to
// defaults and diagnostics.
func (d *Dispatcher) Reload(ctx context.Context) error {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	st, err := d.buildState(ctx)
	if err != nil {
		return err
	}
	old := d.state.Swap(st)
	if old != nil {
		go old.close()
	}
	d.logger.Info("commands loaded", "commands", st.Registry.Len(), "aliases", st.Registry.Aliases().Len(), "root", st.Paths.Root)
	return nil
}

// Close releases native modules of the current State.
func (d *Dispatcher) Close() {
	if st := d.state.Swap(nil); st != nil {
		st.close()
	}
}

// Resolve maps a trigger to a canonical name: lowercase, alias index first,
// else the trigger itself. Meta-verbs are not considered here.
func (d *Dispatcher) Resolve(trigger string) string {
	st := d.State()
	if st == nil {
		return command.Empty().Resolve(trigger)
	}
	return st.Registry.Resolve(trigger)
}

// Execute runs trigger on the process session.
func (d *Dispatcher) Execute(ctx context.Context, trigger string, args ...string) Result {
	return d.session.Execute(ctx, trigger, args...)
}

// DefaultSession returns the session bound to the process stdio.
func (d *Dispatcher) DefaultSession() *Session { return d.session }

// SetDefaultPrompter sets the prompter of the process session.
func (d *Dispatcher) SetDefaultPrompter(p protect.Prompter) { d.session.Prompter = p }

func (d *Dispatcher) maintePassword() string {
	if st := d.State(); st != nil && st.Settings != nil {
		return st.Settings.MaintePassword(d.opts.Getenv)
	}
	return config.DefaultSettings().MaintePassword(d.opts.Getenv)
}

func (s *State) close() {
	for _, m := range s.modules {
		m.Close()
	}
}
