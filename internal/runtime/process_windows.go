// SPDX-License-Identifier: MPL-2.0

//go:build windows

package runtime

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// detachedProcAttr opens a new console window in a new process group.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_CONSOLE | windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// attachDetachedIO leaves stdio unset so the child uses its own console.
func attachDetachedIO(*exec.Cmd, *ExecutionContext) {}
