// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package runtime

import (
	"os/exec"
	"syscall"
)

// detachedProcAttr puts the child in its own process group so terminal
// signals sent to the shell do not reach it.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// attachDetachedIO shares output with the shell. There is no console to open
// on Unix; stdin stays detached.
func attachDetachedIO(cmd *exec.Cmd, ctx *ExecutionContext) {
	cmd.Stdout = ctx.Stdout
	cmd.Stderr = ctx.Stderr
}
