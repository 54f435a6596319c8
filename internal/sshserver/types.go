// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// StateCreated indicates the server has been created but not started.
	StateCreated State = iota
	// StateStarting indicates the server is in the process of starting.
	StateStarting
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopping indicates the server is shutting down.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal; LastError holds the cause.
	StateFailed
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid SSH server config")

type (
	// State represents the lifecycle state of the server.
	State int32

	// Config holds immutable configuration for the SSH server.
	Config struct {
		// Address is host:port; port 0 picks a free port.
		Address string
		// HostKeyPath is an optional PEM host key. Empty generates an
		// ephemeral key per start.
		HostKeyPath string
		// IdleTimeout closes sessions without traffic. Zero disables it.
		IdleTimeout time.Duration
		// StartupTimeout bounds Start (default: 5s).
		StartupTimeout time.Duration
		// ShutdownTimeout bounds graceful shutdown in Stop (default: 10s).
		ShutdownTimeout time.Duration
	}

	// InvalidConfigError collects every malformed Config field.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// String returns a human-readable representation of the server state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultConfig returns a loopback configuration with a random port.
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1:0",
		StartupTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate reports every malformed field at once.
func (c Config) Validate() error {
	var errs []error
	host, port, err := net.SplitHostPort(c.Address)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("address %q: %w", c.Address, err))
	case strings.TrimSpace(host) == "" && host != "":
		errs = append(errs, fmt.Errorf("address %q: blank host", c.Address))
	default:
		if n, convErr := strconv.Atoi(port); convErr != nil || n < 0 || n > 65535 {
			errs = append(errs, fmt.Errorf("address %q: port must be 0-65535", c.Address))
		}
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("idle timeout must not be negative"))
	}
	if c.StartupTimeout < 0 {
		errs = append(errs, errors.New("startup timeout must not be negative"))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown timeout must not be negative"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid SSH server config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
