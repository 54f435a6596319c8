// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCommand is the sentinel wrapped by UnknownCommandError.
	ErrUnknownCommand = errors.New("unknown command or group")

	// ErrHandlerFailed is the sentinel wrapped by HandlerError.
	ErrHandlerFailed = errors.New("command failed")

	// ErrUnknownModule is the sentinel wrapped by UnknownModuleError.
	ErrUnknownModule = errors.New("no command loaded from module")

	// ErrAmbiguousModule is the sentinel wrapped by AmbiguousModuleError.
	ErrAmbiguousModule = errors.New("module registers several commands")
)

type (
	// UnknownCommandError reports a trigger that matched neither a meta-verb,
	// an alias nor a command.
	UnknownCommandError struct {
		Trigger string
	}

	// HandlerError attributes a handler failure to the text the user typed.
	HandlerError struct {
		Trigger string
		// Name is the canonical command the trigger resolved to.
		Name string
		Err  error
	}

	// UnknownModuleError reports a module name no loaded command came from.
	UnknownModuleError struct {
		Module string
	}

	// AmbiguousModuleError reports a module file that registered several
	// commands, none of them named after the module.
	AmbiguousModuleError struct {
		Module   string
		Commands []string
	}
)

// Error implements the error interface.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%v: '%s'", ErrUnknownCommand, e.Trigger)
}

// Unwrap returns ErrUnknownCommand.
func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("'%s': %v", e.Trigger, e.Err)
}

// Unwrap exposes both ErrHandlerFailed and the handler's own error.
func (e *HandlerError) Unwrap() []error { return []error{ErrHandlerFailed, e.Err} }

// Error implements the error interface.
func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("%v: '%s'", ErrUnknownModule, e.Module)
}

// Unwrap returns ErrUnknownModule.
func (e *UnknownModuleError) Unwrap() error { return ErrUnknownModule }

// Error implements the error interface.
func (e *AmbiguousModuleError) Error() string {
	return fmt.Sprintf("%v: '%s' (%s)", ErrAmbiguousModule, e.Module, strings.Join(e.Commands, ", "))
}

// Unwrap returns ErrAmbiguousModule.
func (e *AmbiguousModuleError) Unwrap() error { return ErrAmbiguousModule }
