// SPDX-License-Identifier: MPL-2.0

package protect

import (
	"errors"
	"fmt"
)

// ErrAuthFailed is the sentinel wrapped by AuthError.
var ErrAuthFailed = errors.New("incorrect password")

type (
	// Check names the gate step that rejected a call.
	Check string

	// AuthError reports a rejected password challenge. It is never retried
	// by the gate.
	AuthError struct {
		Name  string
		Check Check
		// Err is set when the challenge itself failed, e.g. the prompt could
		// not read input.
		Err error
	}
)

const (
	// CheckProtected is the protected-set challenge.
	CheckProtected Check = "protected"
	// CheckMaintenance is the maintenance-group challenge.
	CheckMaintenance Check = "maintenance"
)

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s check for %q: %v", e.Check, e.Name, e.Err)
	}
	return fmt.Sprintf("%s check for %q: %v", e.Check, e.Name, ErrAuthFailed)
}

// Unwrap returns ErrAuthFailed so callers can match with errors.Is.
func (e *AuthError) Unwrap() error { return ErrAuthFailed }
