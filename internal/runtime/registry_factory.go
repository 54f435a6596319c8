// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// CodeInterpreterMissing indicates some script extensions cannot run on
	// this host.
	CodeInterpreterMissing InitDiagnosticCode = "interpreter_missing"
)

// ErrInvalidInitDiagnosticCode is the sentinel error wrapped by InvalidInitDiagnosticCodeError.
var ErrInvalidInitDiagnosticCode = errors.New("invalid init diagnostic code")

type (
	// BuildRegistryOptions configures runtime registry construction.
	BuildRegistryOptions struct {
		// VirtualShell routes .sh scripts through the embedded interpreter.
		VirtualShell bool
		// LookPath overrides exec.LookPath, mainly for tests.
		LookPath LookPathFunc
		Logger   *slog.Logger
	}

	// InitDiagnosticCode categorizes non-fatal runtime initialization diagnostics.
	InitDiagnosticCode string

	// InvalidInitDiagnosticCodeError is returned when an InitDiagnosticCode value
	// is not one of the defined diagnostic codes.
	InvalidInitDiagnosticCodeError struct {
		Value InitDiagnosticCode
	}

	// InitDiagnostic reports non-fatal runtime initialization details.
	InitDiagnostic struct {
		Code    InitDiagnosticCode
		Message string
	}

	// RegistryBuildResult contains the built registry and diagnostics.
	RegistryBuildResult struct {
		Registry    *Registry
		Diagnostics []InitDiagnostic
	}
)

// Error implements the error interface.
func (e *InvalidInitDiagnosticCodeError) Error() string {
	return fmt.Sprintf("invalid init diagnostic code %q (valid: %s)", e.Value, CodeInterpreterMissing)
}

// Unwrap returns ErrInvalidInitDiagnosticCode so callers can use errors.Is for programmatic detection.
func (e *InvalidInitDiagnosticCodeError) Unwrap() error { return ErrInvalidInitDiagnosticCode }

// String returns the string representation of the InitDiagnosticCode.
func (c InitDiagnosticCode) String() string { return string(c) }

// Validate returns nil if the InitDiagnosticCode is one of the defined diagnostic codes.
func (c InitDiagnosticCode) Validate() error {
	switch c {
	case CodeInterpreterMissing:
		return nil
	default:
		return &InvalidInitDiagnosticCodeError{Value: c}
	}
}

// BuildRegistry creates and populates the runtime registry. Native and
// process runtimes are always registered; the virtual runtime only when
// VirtualShell is set.
func BuildRegistry(opts BuildRegistryOptions) RegistryBuildResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := RegistryBuildResult{Registry: NewRegistry()}
	result.Registry.Register(RuntimeTypeNative, NewNativeRuntime())
	result.Registry.Register(RuntimeTypeProcess, NewProcessRuntime(opts.LookPath, logger))
	if opts.VirtualShell {
		result.Registry.Register(RuntimeTypeVirtual, NewVirtualRuntime(logger))
	}

	if missing := MissingInterpreters(opts.LookPath); len(missing) > 0 {
		result.Diagnostics = append(result.Diagnostics, InitDiagnostic{
			Code:    CodeInterpreterMissing,
			Message: "no interpreter on PATH for " + strings.Join(missing, " "),
		})
	}
	return result
}
