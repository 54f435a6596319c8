// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/history"
	"github.com/pscli/pscli/internal/protect"
)

const (
	// Author is credited on every builtin.
	Author = "Sebastian Januchowski"
	// Group is the list group of every builtin.
	Group = "system"

	// PasswdName is the password management command.
	PasswdName = "passwd"
	// HistoryName is the history command.
	HistoryName = "history"

	sourcePrefix = "builtin:"
)

// ErrUsage is returned for missing or unknown subcommands.
var ErrUsage = errors.New("invalid usage")

type (
	// HistoryReader reads recent executions.
	HistoryReader interface {
		Recent(ctx context.Context, limit int) ([]history.Entry, error)
	}

	// Deps are the services builtins act on. Nil services leave the
	// commands that need them out of Commands.
	Deps struct {
		Protected *protect.ProtectedStore
		Passwords *protect.PasswordStore
		History   HistoryReader
		// Location formats history timestamps; nil means time.Local.
		Location *time.Location
		Logger   *slog.Logger
	}

	// Builder collects builtin descriptors.
	Builder struct {
		descs []command.Descriptor
	}
)

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// Add registers fn under name. Group and Author default to the builtin
// values when meta leaves them empty.
func (b *Builder) Add(name string, meta command.Metadata, fn command.NativeFunc) *Builder {
	if meta.Group == "" {
		meta.Group = Group
	}
	if meta.Author == "" {
		meta.Author = Author
	}
	b.descs = append(b.descs, command.Descriptor{
		Name:       name,
		Handler:    command.Native{Func: fn, Source: sourcePrefix + name},
		Meta:       meta,
		Provenance: command.ProvenanceBuiltin,
		Launch:     command.LaunchWait,
	})
	return b
}

// Build returns the collected descriptors.
func (b *Builder) Build() []command.Descriptor {
	return append([]command.Descriptor(nil), b.descs...)
}

// Commands returns every builtin that deps can support.
func Commands(deps Deps) []command.Descriptor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	b := NewBuilder()
	if deps.Protected != nil && deps.Passwords != nil {
		p := &passwd{protected: deps.Protected, passwords: deps.Passwords, logger: deps.Logger}
		b.Add(PasswdName, command.Metadata{
			Category:    "security",
			Description: "Password management and protected commands",
			Aliases:     []string{"password", "pass"},
		}, p.run)
	}
	if deps.History != nil {
		h := &historyCmd{reader: deps.History, loc: deps.Location}
		b.Add(HistoryName, command.Metadata{
			Category:    "tool",
			Description: "Show recently dispatched commands",
			Aliases:     []string{"hist"},
		}, h.run)
	}
	return b.Build()
}
