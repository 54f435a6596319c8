// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"io"
	"slices"
)

const (
	// ProvenancePlugin marks commands found in the primary plugins folder
	// (and the root build script).
	ProvenancePlugin Provenance = iota
	// ProvenanceGame marks native modules found in the games folder.
	ProvenanceGame
	// ProvenanceAscii marks launchers found in the ascii folder.
	ProvenanceAscii
	// ProvenanceHealth marks launchers found in the health folder.
	ProvenanceHealth
	// ProvenanceTool marks launchers found in the tools folder.
	ProvenanceTool
	// ProvenanceInstall marks launchers found in the install folder.
	ProvenanceInstall
	// ProvenanceBuiltin marks commands compiled into the binary.
	ProvenanceBuiltin
)

const (
	// LaunchWait runs the handler to completion before Execute returns.
	LaunchWait LaunchPolicy = iota
	// LaunchDetached starts an external process in its own console or
	// process group and returns as soon as it has been spawned.
	LaunchDetached
)

type (
	// Provenance records which scanned location or class produced a
	// command. It drives grouping and launch policy, never namespacing.
	Provenance int

	// LaunchPolicy selects between synchronous and fire-and-forget
	// execution of a descriptor.
	LaunchPolicy int

	// Metadata is the merged, display-oriented description of a command.
	Metadata struct {
		Author      string   `json:"author" yaml:"author"`
		Category    string   `json:"category" yaml:"category"`
		Group       string   `json:"group" yaml:"group"`
		Description string   `json:"desc" yaml:"desc"`
		Aliases     []string `json:"aliases" yaml:"aliases"`
	}

	// Invocation carries the positional arguments and stdio of one call.
	Invocation struct {
		Args   []string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// NativeFunc is an in-process command body. It receives the trailing
	// arguments verbatim and is responsible for validating them.
	NativeFunc func(ctx context.Context, inv *Invocation) error

	// Handler is the sealed tagged variant over the two invocation
	// strategies. Only Native and External implement it.
	Handler interface {
		handlerKind() string
	}

	// Native is an in-process callable plus the module it came from.
	Native struct {
		Func   NativeFunc
		Source string
	}

	// External is a script or binary invoked as a subprocess.
	External struct {
		Path string
		// Ext is the lowercase file extension including the dot.
		Ext string
	}

	// Descriptor is the unit of registration.
	Descriptor struct {
		Name       string
		Handler    Handler
		Meta       Metadata
		Provenance Provenance
		Launch     LaunchPolicy
		// Dir is the directory the command was discovered in. Detached
		// launches use it as their working directory.
		Dir string
	}
)

func (Native) handlerKind() string   { return "native" }
func (External) handlerKind() string { return "external" }

// KindOf returns "native" or "external" for a handler, or "" for nil.
func KindOf(h Handler) string {
	if h == nil {
		return ""
	}
	return h.handlerKind()
}

// String returns the folder-style name of the provenance.
func (p Provenance) String() string {
	switch p {
	case ProvenancePlugin:
		return "plugin"
	case ProvenanceGame:
		return "game"
	case ProvenanceAscii:
		return "ascii"
	case ProvenanceHealth:
		return "health"
	case ProvenanceTool:
		return "tool"
	case ProvenanceInstall:
		return "install"
	case ProvenanceBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// String returns "wait" or "detached".
func (l LaunchPolicy) String() string {
	if l == LaunchDetached {
		return "detached"
	}
	return "wait"
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	m.Aliases = slices.Clone(m.Aliases)
	return m
}

// Equal reports field-wise equality, including alias order.
func (m Metadata) Equal(o Metadata) bool {
	return m.Author == o.Author &&
		m.Category == o.Category &&
		m.Group == o.Group &&
		m.Description == o.Description &&
		slices.Equal(m.Aliases, o.Aliases)
}

// Equal compares two descriptors by identity of their handler target rather
// than by function pointer, so two scans of the same tree compare equal.
func (d Descriptor) Equal(o Descriptor) bool {
	if d.Name != o.Name || d.Provenance != o.Provenance || d.Launch != o.Launch || d.Dir != o.Dir {
		return false
	}
	if !d.Meta.Equal(o.Meta) {
		return false
	}
	switch h := d.Handler.(type) {
	case Native:
		oh, ok := o.Handler.(Native)
		return ok && h.Source == oh.Source && (h.Func == nil) == (oh.Func == nil)
	case External:
		oh, ok := o.Handler.(External)
		return ok && h == oh
	default:
		return o.Handler == nil
	}
}
