// SPDX-License-Identifier: MPL-2.0

package protect

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/pscli/pscli/internal/command"
)

// MaintenanceGroup is the group whose commands need the maintenance password.
const MaintenanceGroup = "mainte."

// errNoPrompter is reported when a challenge is due but nobody can answer it.
var errNoPrompter = errors.New("no interactive input available")

// Gate runs the password challenges for one dispatcher.
type Gate struct {
	protected      *ProtectedStore
	passwords      *PasswordStore
	maintePassword func() string
	logger         *slog.Logger
}

// NewGate returns a gate. maintePassword is called on every maintenance
// check so a reload can change it.
func NewGate(protected *ProtectedStore, passwords *PasswordStore, maintePassword func() string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		protected:      protected,
		passwords:      passwords,
		maintePassword: maintePassword,
		logger:         logger,
	}
}

// Protected returns the protected-set store.
func (g *Gate) Protected() *ProtectedStore { return g.protected }

// Passwords returns the password store.
func (g *Gate) Passwords() *PasswordStore { return g.passwords }

// Check challenges the caller for d. It returns nil when d may run and an
// *AuthError otherwise. Each challenge is asked once.
func (g *Gate) Check(ctx context.Context, d command.Descriptor, p Prompter) error {
	if g.isProtected(d) {
		if err := g.challenge(ctx, d.Name, CheckProtected, p, g.verifyUser); err != nil {
			return err
		}
	}
	if IsMaintenance(d.Meta.Group) {
		if err := g.challenge(ctx, d.Name, CheckMaintenance, p, g.verifyMaintenance); err != nil {
			return err
		}
	}
	return nil
}

// Requires reports which challenges Check would ask for d.
func (g *Gate) Requires(d command.Descriptor) []Check {
	var checks []Check
	if g.isProtected(d) {
		checks = append(checks, CheckProtected)
	}
	if IsMaintenance(d.Meta.Group) {
		checks = append(checks, CheckMaintenance)
	}
	return checks
}

// IsMaintenance reports whether group is the maintenance group.
func IsMaintenance(group string) bool {
	return strings.ToLower(strings.TrimSpace(group)) == MaintenanceGroup
}

// isProtected reports whether d's name is in the protected command set.
// The modules set is not consulted here; it only guards `passwd mod`.
func (g *Gate) isProtected(d command.Descriptor) bool {
	if g.protected == nil {
		return false
	}
	ok, err := g.protected.IsCommandProtected(d.Name)
	if err != nil {
		g.logger.Debug("protected set unreadable", "path", g.protected.Path(), "error", err)
		return false
	}
	return ok
}

func (g *Gate) challenge(ctx context.Context, name string, check Check, p Prompter, verify func(string) (bool, error)) error {
	if p == nil {
		return &AuthError{Name: name, Check: check, Err: errNoPrompter}
	}
	input, err := p.Password(ctx, PasswordPrompt)
	if err != nil {
		return &AuthError{Name: name, Check: check, Err: err}
	}
	ok, err := verify(strings.TrimSpace(input))
	if err != nil {
		return &AuthError{Name: name, Check: check, Err: err}
	}
	if !ok {
		g.logger.Debug("password rejected", "command", name, "check", string(check))
		return &AuthError{Name: name, Check: check}
	}
	return nil
}

func (g *Gate) verifyUser(input string) (bool, error) {
	if g.passwords == nil {
		return false, errors.New("no password store configured")
	}
	return g.passwords.Verify(input)
}

func (g *Gate) verifyMaintenance(input string) (bool, error) {
	if input == "" || g.maintePassword == nil {
		return false, nil
	}
	expected := g.maintePassword()
	return subtle.ConstantTimeCompare([]byte(input), []byte(expected)) == 1, nil
}
