// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/config"
)

// Runtime type constants for the execution strategies.
const (
	RuntimeTypeNative  RuntimeType = "native"
	RuntimeTypeProcess RuntimeType = "process"
	RuntimeTypeVirtual RuntimeType = "virtual"
)

// ErrRuntimeNotRegistered is returned by Registry.Get for an unknown type.
var ErrRuntimeNotRegistered = errors.New("runtime not registered")

type (
	// ExecutionContext contains all information needed to execute a command.
	ExecutionContext struct {
		// Context is the Go context for cancellation. Detached launches are
		// not bound to it once spawned.
		Context context.Context
		// Name is the canonical command name, used in logs and errors.
		Name    string
		Handler command.Handler
		Launch  command.LaunchPolicy
		// Dir is the working directory for detached launches and the
		// virtual shell. Empty means the current directory.
		Dir string
		// Args are the trailing positional arguments, passed verbatim.
		Args   []string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result contains the result of a command execution.
	Result struct {
		// ExitCode is the exit code of the command
		ExitCode ExitCode
		// Error contains any error that occurred
		Error error
		// PID is set for detached launches.
		PID int
	}

	// Runtime defines the interface for command execution.
	Runtime interface {
		// Name returns the runtime name
		Name() string
		// Execute runs a command in this runtime
		Execute(ctx *ExecutionContext) *Result
		// Available returns whether this runtime is usable on this system
		Available() bool
		// Validate checks if a command can be executed with this runtime
		Validate(ctx *ExecutionContext) error
	}

	// RuntimeType identifies the type of runtime.
	//
	//nolint:revive // RuntimeType is more descriptive than Type for external callers
	RuntimeType string

	// Registry holds all available runtimes.
	Registry struct {
		runtimes map[RuntimeType]Runtime
	}
)

// NewExecutionContext creates an execution context for d with stdio bound to
// the process streams.
func NewExecutionContext(ctx context.Context, d command.Descriptor, args []string) *ExecutionContext {
	ectx := &ExecutionContext{
		Context: ctx,
		Name:    d.Name,
		Handler: d.Handler,
		Launch:  d.Launch,
		Args:    args,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	if d.Launch == command.LaunchDetached {
		ectx.Dir = d.Dir
	}
	return ectx
}

// Success returns true if the command executed successfully.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// NewRegistry creates a new runtime registry.
func NewRegistry() *Registry {
	return &Registry{runtimes: make(map[RuntimeType]Runtime)}
}

// Register adds a runtime to the registry.
func (r *Registry) Register(typ RuntimeType, rt Runtime) {
	r.runtimes[typ] = rt
}

// Get returns a runtime by type.
func (r *Registry) Get(typ RuntimeType) (Runtime, error) {
	rt, ok := r.runtimes[typ]
	if !ok {
		return nil, fmt.Errorf("runtime '%s': %w", typ, ErrRuntimeNotRegistered)
	}
	return rt, nil
}

// Select returns the runtime type for the handler in ctx. Native handlers
// use the native runtime. External .sh scripts use the virtual runtime when
// one is registered; everything else is spawned as a process.
func (r *Registry) Select(ctx *ExecutionContext) (RuntimeType, error) {
	switch h := ctx.Handler.(type) {
	case command.Native:
		return RuntimeTypeNative, nil
	case command.External:
		if h.Ext == ".sh" {
			if _, ok := r.runtimes[RuntimeTypeVirtual]; ok {
				return RuntimeTypeVirtual, nil
			}
		}
		return RuntimeTypeProcess, nil
	default:
		return "", fmt.Errorf("command %q has no handler", ctx.Name)
	}
}

// Execute runs a command using the runtime chosen by Select.
func (r *Registry) Execute(ctx *ExecutionContext) *Result {
	typ, err := r.Select(ctx)
	if err != nil {
		return NewErrorResult(1, err)
	}
	rt, err := r.Get(typ)
	if err != nil {
		return NewErrorResult(1, err)
	}
	if !rt.Available() {
		return NewErrorResult(1, fmt.Errorf("runtime '%s' is not available on this system", rt.Name()))
	}
	if err := rt.Validate(ctx); err != nil {
		return NewErrorResult(1, err)
	}
	if ctx.Context == nil {
		ctx.Context = context.Background()
	}
	return rt.Execute(ctx)
}

// Run executes ctx and folds the Result into an error. A non-zero exit with
// no other error becomes *ExitCodeError.
func (r *Registry) Run(ctx *ExecutionContext) error {
	res := r.Execute(ctx)
	if res.Error != nil {
		return res.Error
	}
	if !res.ExitCode.IsSuccess() {
		return &ExitCodeError{Name: ctx.Name, Code: res.ExitCode}
	}
	return nil
}

// FilterEnv removes variables that must not leak into child processes, such
// as the maintenance password.
func FilterEnv(environ []string) []string {
	result := make([]string, 0, len(environ))
	for _, e := range environ {
		name, _, found := strings.Cut(e, "=")
		if found && shouldFilterEnvVar(name) {
			continue
		}
		result = append(result, e)
	}
	return result
}

func shouldFilterEnvVar(name string) bool {
	return strings.EqualFold(name, config.EnvMaintePassword)
}
