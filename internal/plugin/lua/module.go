// SPDX-License-Identifier: MPL-2.0

package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/metadata"

	lua "github.com/yuin/gopher-lua"
)

// handlersKey is the global table that keeps registered run functions
// reachable for the lifetime of the state.
const handlersKey = "__pscli_handlers"

// entryGlobals are the function names tried, in order, for a module entry
// point when no command was registered.
var entryGlobals = []string{"main", "menu"}

// ErrModuleLoad is the sentinel wrapped by LoadError.
var ErrModuleLoad = errors.New("native module failed to load")

type (
	// Command is one command registered by a module.
	Command struct {
		Decl metadata.CommandDecl
		fn   *lua.LFunction
	}

	// Module is a loaded native module.
	Module struct {
		// Path is the module file.
		Path string
		// Name is the file name without extension.
		Name     string
		Decl     metadata.ModuleDecl
		Commands []Command

		entry *lua.LFunction
		state *State
	}

	// LoadError reports a module whose file failed to execute.
	LoadError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrModuleLoad so callers can match with errors.Is.
func (e *LoadError) Unwrap() error { return ErrModuleLoad }

// Cause returns the underlying interpreter error.
func (e *LoadError) Cause() error { return e.Err }

// Load executes the module at path in a fresh state. Anything the module
// prints while loading goes to out.
func Load(path string, out io.Writer) (*Module, error) {
	base := filepath.Base(path)
	m := &Module{
		Path:  path,
		Name:  strings.TrimSuffix(base, filepath.Ext(base)),
		state: NewState(out),
	}

	L := m.state.L
	handlers := L.NewTable()
	L.SetGlobal(handlersKey, handlers)
	L.SetGlobal("command", L.NewFunction(func(L *lua.LState) int {
		return m.register(L, handlers)
	}))

	if err := m.state.DoFile(path); err != nil {
		m.state.Close()
		return nil, &LoadError{Path: path, Err: err}
	}

	m.Decl = metadata.ModuleDecl{
		Author:   m.state.globalString("__author__"),
		Category: m.state.globalString("__category__"),
		Group:    m.state.globalString("__group__"),
		Desc:     m.state.globalString("__desc__"),
	}
	for _, name := range entryGlobals {
		if fn, ok := L.GetGlobal(name).(*lua.LFunction); ok {
			m.entry = fn
			break
		}
	}
	return m, nil
}

// HasEntry reports whether the module exposes a main or menu function.
func (m *Module) HasEntry() bool { return m.entry != nil }

// Func adapts a registered command to a command.NativeFunc.
func (m *Module) Func(c Command) command.NativeFunc {
	return m.bind(c.fn, true)
}

// EntryFunc adapts the module entry point. The entry point takes no
// arguments; trailing arguments are dropped. It returns nil when the module
// has no entry point.
func (m *Module) EntryFunc() command.NativeFunc {
	if m.entry == nil {
		return nil
	}
	return m.bind(m.entry, false)
}

// Close releases the module state.
func (m *Module) Close() { m.state.Close() }

func (m *Module) bind(fn *lua.LFunction, passArgs bool) command.NativeFunc {
	return func(ctx context.Context, inv *command.Invocation) error {
		var args []string
		var out io.Writer
		if inv != nil {
			out = inv.Stdout
			if passArgs {
				args = inv.Args
			}
		}
		return m.state.Call(ctx, fn, out, args)
	}
}

// register implements the Lua command{...} builder.
func (m *Module) register(L *lua.LState, handlers *lua.LTable) int {
	opts := L.CheckTable(1)

	run, ok := opts.RawGetString("run").(*lua.LFunction)
	if !ok {
		L.ArgError(1, "command requires a run function")
		return 0
	}

	decl := metadata.CommandDecl{
		Name: tableString(opts, "name"),
		Desc: tableString(opts, "desc"),
		Doc:  tableString(opts, "doc"),
	}
	if decl.Name == "" {
		decl.Name = m.Name
	}
	switch v := opts.RawGetString("aliases").(type) {
	case *lua.LTable:
		v.ForEach(func(_, value lua.LValue) {
			if s, ok := value.(lua.LString); ok && s != "" {
				decl.Aliases = append(decl.Aliases, string(s))
			}
		})
	case lua.LString:
		if v != "" {
			decl.Aliases = append(decl.Aliases, string(v))
		}
	}

	handlers.Append(run)
	m.Commands = append(m.Commands, Command{Decl: decl, fn: run})
	return 0
}

func tableString(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}
