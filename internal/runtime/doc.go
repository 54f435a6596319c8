// SPDX-License-Identifier: MPL-2.0

// Package runtime executes resolved command handlers.
//
// Three runtime implementations are available:
//   - native: calls an in-process command.Native function
//   - process: spawns an external script or binary, choosing the interpreter
//     from the file extension
//   - virtual: runs .sh scripts with the embedded mvdan/sh interpreter when
//     enabled in settings
//
// All runtimes implement the Runtime interface with Name(), Execute(),
// Available() and Validate(). The Registry picks the runtime for an
// ExecutionContext and Run turns the Result into an error the dispatcher can
// report: nil on success, *ExitCodeError for a non-zero exit, or the
// underlying failure.
//
// Launch policy only applies to external handlers. LaunchWait runs to
// completion; LaunchDetached starts the process in its own process group (a
// new console on Windows), with the discovery folder as working directory,
// and returns once it has been spawned.
package runtime
