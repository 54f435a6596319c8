// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"

	"github.com/pscli/pscli/internal/command"
)

// ErrNativePanic is the sentinel wrapped by PanicError.
var ErrNativePanic = errors.New("native command panicked")

type (
	// NativeRuntime calls in-process command functions.
	NativeRuntime struct{}

	// PanicError carries the value recovered from a panicking native command.
	PanicError struct {
		Value any
	}
)

// Error implements the error interface.
func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap returns ErrNativePanic.
func (e *PanicError) Unwrap() error { return ErrNativePanic }

// NewNativeRuntime creates a new native runtime.
func NewNativeRuntime() *NativeRuntime {
	return &NativeRuntime{}
}

// Name returns the runtime name.
func (r *NativeRuntime) Name() string { return string(RuntimeTypeNative) }

// Available always returns true.
func (r *NativeRuntime) Available() bool { return true }

// Validate checks that the handler is a callable native function.
func (r *NativeRuntime) Validate(ctx *ExecutionContext) error {
	h, ok := ctx.Handler.(command.Native)
	if !ok {
		return fmt.Errorf("%s: not a native handler", ctx.Name)
	}
	if h.Func == nil {
		return fmt.Errorf("%s: native handler has no function", ctx.Name)
	}
	return nil
}

// Execute calls the function with the trailing arguments. Launch policy does
// not apply: native commands always run to completion.
func (r *NativeRuntime) Execute(ctx *ExecutionContext) *Result {
	h := ctx.Handler.(command.Native)
	inv := &command.Invocation{
		Args:   ctx.Args,
		Stdin:  ctx.Stdin,
		Stdout: ctx.Stdout,
		Stderr: ctx.Stderr,
	}
	if err := callNative(ctx, h.Func, inv); err != nil {
		return NewErrorResult(1, err)
	}
	return NewSuccessResult()
}

func callNative(ctx *ExecutionContext, fn command.NativeFunc, inv *command.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx.Context, inv)
}
