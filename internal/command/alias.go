// SPDX-License-Identifier: MPL-2.0

package command

import (
	"maps"
	"slices"
)

// AliasIndex maps alias strings to canonical command names. The zero value
// is an empty index.
type AliasIndex struct {
	forward map[string]string
}

// Lookup returns the canonical name for alias.
func (a AliasIndex) Lookup(alias string) (string, bool) {
	c, ok := a.forward[alias]
	return c, ok
}

// Len returns the number of aliases.
func (a AliasIndex) Len() int { return len(a.forward) }

// Reverse returns every alias that maps to canonical, sorted.
func (a AliasIndex) Reverse(canonical string) []string {
	var out []string
	for alias, target := range a.forward {
		if target == canonical {
			out = append(out, alias)
		}
	}
	slices.Sort(out)
	return out
}

// Map returns a copy of the alias table.
func (a AliasIndex) Map() map[string]string {
	return maps.Clone(a.forward)
}

// Equal reports whether both indexes contain the same mappings.
func (a AliasIndex) Equal(o AliasIndex) bool {
	return maps.Equal(a.forward, o.forward)
}
