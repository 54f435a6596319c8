// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/pscli/pscli/internal/command"
)

// ProcessRuntime executes external scripts and binaries as subprocesses.
type ProcessRuntime struct {
	lookPath LookPathFunc
	environ  func() []string
	logger   *slog.Logger
}

// NewProcessRuntime creates a process runtime. A nil lookPath uses
// exec.LookPath.
func NewProcessRuntime(lookPath LookPathFunc, logger *slog.Logger) *ProcessRuntime {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessRuntime{lookPath: lookPath, environ: os.Environ, logger: logger}
}

// Name returns the runtime name.
func (r *ProcessRuntime) Name() string { return string(RuntimeTypeProcess) }

// Available always returns true; missing interpreters are reported per call.
func (r *ProcessRuntime) Available() bool { return true }

// Validate checks that the handler is an external file.
func (r *ProcessRuntime) Validate(ctx *ExecutionContext) error {
	h, ok := ctx.Handler.(command.External)
	if !ok {
		return fmt.Errorf("%s: not an external handler", ctx.Name)
	}
	if h.Path == "" {
		return fmt.Errorf("%s: external handler has no path", ctx.Name)
	}
	return nil
}

// Execute spawns the handler according to the launch policy.
func (r *ProcessRuntime) Execute(ctx *ExecutionContext) *Result {
	h := ctx.Handler.(command.External)
	argv, err := Argv(h.Path, h.Ext, ctx.Args, r.lookPath)
	if err != nil {
		return NewErrorResult(1, err)
	}

	if ctx.Launch == command.LaunchDetached {
		return r.startDetached(ctx, argv)
	}

	cmd := exec.CommandContext(ctx.Context, argv[0], argv[1:]...)
	cmd.Dir = ctx.Dir
	cmd.Env = FilterEnv(r.environ())
	cmd.Stdin = ctx.Stdin
	cmd.Stdout = ctx.Stdout
	cmd.Stderr = ctx.Stderr

	r.logger.Debug("running process", "command", ctx.Name, "argv", argv)
	return extractExitCode(cmd.Run())
}

// startDetached spawns argv outside the caller's process group and reaps it
// in the background. The child is not tied to ctx.Context.
func (r *ProcessRuntime) startDetached(ctx *ExecutionContext, argv []string) *Result {
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:noctx // detached children outlive the request
	cmd.Dir = ctx.Dir
	cmd.Env = FilterEnv(r.environ())
	cmd.SysProcAttr = detachedProcAttr()
	attachDetachedIO(cmd, ctx)

	if err := cmd.Start(); err != nil {
		return NewErrorResult(1, fmt.Errorf("start %s: %w", ctx.Name, err))
	}
	pid := cmd.Process.Pid
	r.logger.Debug("detached process started", "command", ctx.Name, "pid", pid, "dir", cmd.Dir)

	go func() {
		err := cmd.Wait()
		r.logger.Debug("detached process exited", "command", ctx.Name, "pid", pid, "error", err)
	}()
	return NewDetachedResult(pid)
}
