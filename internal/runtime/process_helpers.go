// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"os/exec"
)

// extractExitCode determines the Result of a finished command from the error
// returned by exec.Cmd.Run.
func extractExitCode(err error) *Result {
	if err == nil {
		return NewSuccessResult()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Command executed but returned non-zero exit code
		exitCode := ExitCode(exitErr.ExitCode())
		if validateErr := exitCode.Validate(); validateErr != nil {
			// Killed by a signal reports -1.
			return NewErrorResult(1, err)
		}
		return NewExitCodeResult(exitCode)
	}

	// Some other error (e.g., command not found, permission denied)
	return NewErrorResult(1, err)
}
