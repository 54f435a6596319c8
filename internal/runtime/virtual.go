// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pscli/pscli/internal/command"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRuntime executes .sh scripts using the embedded mvdan/sh
// interpreter, so shell plugins work on hosts without a POSIX shell.
type VirtualRuntime struct {
	environ func() []string
	logger  *slog.Logger
}

// NewVirtualRuntime creates a new virtual runtime.
func NewVirtualRuntime(logger *slog.Logger) *VirtualRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &VirtualRuntime{environ: os.Environ, logger: logger}
}

// Name returns the runtime name.
func (r *VirtualRuntime) Name() string { return string(RuntimeTypeVirtual) }

// Available returns true; the interpreter is built in.
func (r *VirtualRuntime) Available() bool { return true }

// Validate checks that the handler is a .sh script that parses.
func (r *VirtualRuntime) Validate(ctx *ExecutionContext) error {
	h, ok := ctx.Handler.(command.External)
	if !ok || h.Ext != ".sh" {
		return fmt.Errorf("%s: virtual runtime only runs .sh scripts", ctx.Name)
	}
	_, err := parseScript(h.Path)
	return err
}

// Execute runs the script. A detached script runs on its own goroutine and
// is not bound to the caller's context.
func (r *VirtualRuntime) Execute(ctx *ExecutionContext) *Result {
	h := ctx.Handler.(command.External)
	prog, err := parseScript(h.Path)
	if err != nil {
		return NewErrorResult(1, err)
	}

	stdin := ctx.Stdin
	if ctx.Launch == command.LaunchDetached {
		stdin = nil
	}
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(FilterEnv(r.environ())...)),
		interp.StdIO(stdin, ctx.Stdout, ctx.Stderr),
		interp.ExecHandlers(r.execHandler(ctx.Name)),
		// Prepend "--" so arguments such as "-v" are not read as shell options.
		interp.Params(append([]string{"--"}, ctx.Args...)...),
	}
	if ctx.Dir != "" {
		opts = append(opts, interp.Dir(ctx.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	if ctx.Launch == command.LaunchDetached {
		go func() {
			res := exitResult(runner.Run(context.Background(), prog))
			r.logger.Debug("detached script exited", "command", ctx.Name, "code", res.ExitCode, "error", res.Error)
		}()
		return NewDetachedResult(0)
	}
	return exitResult(runner.Run(ctx.Context, prog))
}

// execHandler logs each external program the script runs before handing it
// to the default handler.
func (r *VirtualRuntime) execHandler(name string) func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			r.logger.Debug("virtual shell exec", "command", name, "argv", args)
			return next(ctx, args)
		}
	}
}

func parseScript(path string) (*syntax.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	prog, err := syntax.NewParser().Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("script syntax error: %w", err)
	}
	return prog, nil
}

func exitResult(err error) *Result {
	if err == nil {
		return NewSuccessResult()
	}
	var exitStatus interp.ExitStatus
	if errors.As(err, &exitStatus) {
		return NewExitCodeResult(ExitCode(exitStatus))
	}
	return NewErrorResult(1, fmt.Errorf("script execution failed: %w", err))
}
