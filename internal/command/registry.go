// SPDX-License-Identifier: MPL-2.0

package command

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

type (
	// Override records a registration that replaced an earlier one with the
	// same key. Overrides are informational: the later entry always wins.
	Override struct {
		Key      string
		Previous string
		Winner   string
	}

	// Builder accumulates registrations for one load. It is not safe for
	// concurrent use; the finished Registry is.
	Builder struct {
		commands        map[string]Descriptor
		aliases         map[string]string
		commandOverride []Override
		aliasOverride   []Override
	}

	// Registry is an immutable snapshot of the command table and its alias
	// index. Reload produces a new Registry; entries are never removed from
	// an existing one.
	Registry struct {
		commands        map[string]Descriptor
		aliases         AliasIndex
		commandOverride []Override
		aliasOverride   []Override
	}
)

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		commands: make(map[string]Descriptor),
		aliases:  make(map[string]string),
	}
}

// Register inserts d under its lowercased name, replacing any earlier
// descriptor with the same name.
func (b *Builder) Register(d Descriptor) {
	d.Name = normalize(d.Name)
	if d.Name == "" {
		return
	}
	d.Meta = d.Meta.Clone()
	if prev, ok := b.commands[d.Name]; ok {
		b.commandOverride = append(b.commandOverride, Override{
			Key:      d.Name,
			Previous: describeTarget(prev),
			Winner:   describeTarget(d),
		})
	}
	b.commands[d.Name] = d
}

// RegisterAliases maps every alias to name, replacing earlier mappings.
// Aliases are not checked against canonical names.
func (b *Builder) RegisterAliases(name string, aliases []string) {
	name = normalize(name)
	for _, a := range aliases {
		a = normalize(a)
		if a == "" {
			continue
		}
		if prev, ok := b.aliases[a]; ok && prev != name {
			b.aliasOverride = append(b.aliasOverride, Override{Key: a, Previous: prev, Winner: name})
		}
		b.aliases[a] = name
	}
}

// Build freezes the builder into a Registry. The builder must not be used
// afterwards.
func (b *Builder) Build() *Registry {
	r := &Registry{
		commands:        b.commands,
		aliases:         AliasIndex{forward: b.aliases},
		commandOverride: b.commandOverride,
		aliasOverride:   b.aliasOverride,
	}
	b.commands, b.aliases = nil, nil
	return r
}

// Empty returns a registry with no commands.
func Empty() *Registry {
	return NewBuilder().Build()
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.commands) }

// Lookup returns the descriptor registered under the canonical name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.commands[normalize(name)]
	return d, ok
}

// Resolve maps a trigger to its canonical name: alias index first, then
// the lowercased trigger itself. The result may not be registered.
func (r *Registry) Resolve(trigger string) string {
	t := normalize(trigger)
	if canonical, ok := r.aliases.Lookup(t); ok {
		return canonical
	}
	return t
}

// Aliases returns the alias index of this snapshot.
func (r *Registry) Aliases() AliasIndex { return r.aliases }

// AliasesFor returns the aliases pointing at name, sorted.
func (r *Registry) AliasesFor(name string) []string {
	return r.aliases.Reverse(normalize(name))
}

// AllGroups returns the distinct lowercase group names, sorted.
func (r *Registry) AllGroups() []string {
	set := make(map[string]struct{}, len(r.commands))
	for _, d := range r.commands {
		set[strings.ToLower(d.Meta.Group)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// HasGroup reports whether any command belongs to group (case-insensitive).
func (r *Registry) HasGroup(group string) bool {
	group = strings.ToLower(group)
	for _, d := range r.commands {
		if strings.ToLower(d.Meta.Group) == group {
			return true
		}
	}
	return false
}

// Descriptors returns the descriptors accepted by keep (all when keep is
// nil), sorted by group, category, then name.
func (r *Registry) Descriptors(keep func(Descriptor) bool) []Descriptor {
	out := make([]Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		if keep == nil || keep(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b Descriptor) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Meta.Group), strings.ToLower(b.Meta.Group)),
			cmp.Compare(strings.ToLower(a.Meta.Category), strings.ToLower(b.Meta.Category)),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return out
}

// CommandOverrides lists the names that more than one source registered.
func (r *Registry) CommandOverrides() []Override { return slices.Clone(r.commandOverride) }

// AliasOverrides lists aliases that were remapped during the load.
func (r *Registry) AliasOverrides() []Override { return slices.Clone(r.aliasOverride) }

// Equal reports whether both registries hold equal descriptors under the
// same names and identical alias indexes.
func (r *Registry) Equal(o *Registry) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.commands) != len(o.commands) {
		return false
	}
	for name, d := range r.commands {
		od, ok := o.commands[name]
		if !ok || !d.Equal(od) {
			return false
		}
	}
	return r.aliases.Equal(o.aliases)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func describeTarget(d Descriptor) string {
	switch h := d.Handler.(type) {
	case Native:
		return h.Source
	case External:
		return h.Path
	default:
		return d.Provenance.String()
	}
}
