// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/discovery"
	"github.com/pscli/pscli/internal/metadata"
	luaplugin "github.com/pscli/pscli/internal/plugin/lua"
	"github.com/pscli/pscli/internal/runtime"
)

// gameDescPrefix starts the description of a game without one.
const gameDescPrefix = "Game: "

func (d *Dispatcher) loadSettings(ctx context.Context) (*config.Loaded, error) {
	if d.opts.Settings == nil {
		return nil, fmt.Errorf("no settings loader: %w", ErrNotLoaded)
	}
	loaded, err := d.opts.Settings(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if loaded == nil {
		return nil, err
	}
	if err != nil {
		d.logger.Warn("settings rejected, using defaults", "error", err)
	}
	return loaded, nil
}

func (d *Dispatcher) buildState(ctx context.Context) (*State, error) {
	loaded, err := d.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	paths := loaded.Paths
	d.prepareDirs(paths)

	res, err := discovery.NewScanner(paths.Root, paths.Plugins).Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, diag := range res.Diagnostics {
		diag.Log(d.logger)
	}

	rt := runtime.BuildRegistry(runtime.BuildRegistryOptions{
		VirtualShell: loaded.Settings.Dispatcher.VirtualShell,
		LookPath:     d.opts.LookPath,
		Logger:       d.logger,
	})
	for _, diag := range rt.Diagnostics {
		d.logger.Debug(diag.Message, "code", diag.Code.String())
	}

	st := &State{
		Settings:    loaded.Settings,
		Paths:       paths,
		Runtimes:    rt.Registry,
		Diagnostics: res.Diagnostics,
		LoadedAt:    d.opts.Now(),
	}

	b := command.NewBuilder()
	for _, bd := range d.opts.Builtins {
		b.Register(bd)
		b.RegisterAliases(bd.Name, bd.Meta.Aliases)
	}

	store := metadata.NewStore(paths.Metadata, d.logger)
	for _, e := range res.Entries {
		switch e.Class {
		case discovery.ClassNative:
			d.registerNative(b, store, st, e)
		case discovery.ClassExternal:
			meta := store.ResolveExternal(e.FileName)
			b.Register(command.Descriptor{
				Name:       e.Name,
				Handler:    command.External{Path: e.Path, Ext: e.Ext},
				Meta:       meta,
				Provenance: e.Provenance,
				Launch:     e.Launch,
				Dir:        e.Dir,
			})
			b.RegisterAliases(e.Name, meta.Aliases)
		}
	}

	st.Registry = b.Build()
	for _, o := range st.Registry.CommandOverrides() {
		d.logger.Debug("command replaced", "name", o.Key, "previous", o.Previous, "winner", o.Winner)
	}
	for _, o := range st.Registry.AliasOverrides() {
		d.logger.Debug("alias remapped", "alias", o.Key, "previous", o.Previous, "winner", o.Winner)
	}
	return st, nil
}

func (d *Dispatcher) registerNative(b *command.Builder, store *metadata.Store, st *State, e discovery.Entry) {
	m, err := luaplugin.Load(e.Path, d.opts.ModuleOutput)
	if err != nil {
		st.LoadFailures = append(st.LoadFailures, err)
		d.opts.Presenter.Notice(d.session.Stderr, Notice{
			Kind: NoticeLoadFailed,
			Text: fmt.Sprintf("[ERROR] Loading %s: %v", e.FileName, errorCause(err)),
			Err:  err,
		})
		return
	}
	st.modules = append(st.modules, m)

	desc := func(name string, meta command.Metadata, fn command.NativeFunc) command.Descriptor {
		return command.Descriptor{
			Name:       name,
			Handler:    command.Native{Func: fn, Source: e.Path},
			Meta:       meta,
			Provenance: e.Provenance,
			Launch:     e.Launch,
			Dir:        e.Dir,
		}
	}

	if e.Provenance != command.ProvenanceGame {
		for _, c := range m.Commands {
			meta := store.ResolveNative(m.Decl, c.Decl)
			b.Register(desc(c.Decl.Name, meta, m.Func(c)))
			b.RegisterAliases(c.Decl.Name, c.Decl.Aliases)
		}
		return
	}

	base := store.ResolveGame(m.Name, m.Decl)
	fallback := gameDescPrefix + m.Name
	for _, c := range m.Commands {
		meta := metadata.ApplyCommand(base, c.Decl, fallback)
		b.Register(desc(c.Decl.Name, meta, m.Func(c)))
		b.RegisterAliases(c.Decl.Name, c.Decl.Aliases)
	}
	if len(m.Commands) == 0 && m.HasEntry() {
		meta := base.Clone()
		if meta.Description == "" {
			meta.Description = fallback
		}
		b.Register(desc(m.Name, meta, m.EntryFunc()))
		b.RegisterAliases(m.Name, meta.Aliases)
	}
}

// prepareDirs creates the plugin, metadata and settings folders when they
// are missing. Failures only matter for the scan, which tolerates them.
func (d *Dispatcher) prepareDirs(p config.Paths) {
	for _, dir := range []string{p.Plugins, p.Metadata, filepath.Dir(p.Settings)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			d.logger.Debug("could not create folder", "path", dir, "error", err)
		}
	}
}

// errorCause unwraps a module load error to the interpreter message.
func errorCause(err error) error {
	var le *luaplugin.LoadError
	if errors.As(err, &le) {
		return le.Cause()
	}
	return err
}
