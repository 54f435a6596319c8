// SPDX-License-Identifier: MPL-2.0

package protect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	commandsKey = "commands"
	modulesKey  = "modules"
)

// ProtectedStore reads and writes protected.json. The file holds two string
// arrays, "commands" and "modules"; writing one array preserves the other
// and any unknown keys.
type ProtectedStore struct {
	path string
}

// NewProtectedStore returns a store backed by path.
func NewProtectedStore(path string) *ProtectedStore {
	return &ProtectedStore{path: path}
}

// Path returns the backing file.
func (s *ProtectedStore) Path() string { return s.path }

// Commands returns the protected command names, lowercased and sorted. A
// missing file is an empty set.
func (s *ProtectedStore) Commands() ([]string, error) { return s.list(commandsKey) }

// Modules returns the protected module names.
func (s *ProtectedStore) Modules() ([]string, error) { return s.list(modulesKey) }

// IsCommandProtected reports whether name is in the protected set. Read
// errors count as unprotected; they are returned so callers can log them.
func (s *ProtectedStore) IsCommandProtected(name string) (bool, error) {
	names, err := s.Commands()
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(names, strings.ToLower(name))
	return found, nil
}

// IsModuleProtected reports whether module is in the protected module set.
func (s *ProtectedStore) IsModuleProtected(module string) (bool, error) {
	names, err := s.Modules()
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(names, strings.ToLower(module))
	return found, nil
}

// Protect adds names to the command set.
func (s *ProtectedStore) Protect(names ...string) error {
	return s.update(commandsKey, func(set []string) []string { return append(set, names...) })
}

// Unprotect removes names from the command set.
func (s *ProtectedStore) Unprotect(names ...string) error {
	return s.update(commandsKey, func(set []string) []string { return without(set, names) })
}

// Clear empties the command set. The module set is left alone.
func (s *ProtectedStore) Clear() error {
	return s.update(commandsKey, func([]string) []string { return nil })
}

// ProtectModule adds names to the module set.
func (s *ProtectedStore) ProtectModule(names ...string) error {
	return s.update(modulesKey, func(set []string) []string { return append(set, names...) })
}

// UnprotectModule removes names from the module set.
func (s *ProtectedStore) UnprotectModule(names ...string) error {
	return s.update(modulesKey, func(set []string) []string { return without(set, names) })
}

func (s *ProtectedStore) list(key string) ([]string, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	return normalizeSet(gjson.GetBytes(data, key)), nil
}

// read returns the file contents, "{}" for a missing file, and an error for
// anything that is not a JSON object.
func (s *ProtectedStore) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read protected set: %w", err)
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("read protected set %s: not a JSON object", s.path)
	}
	return data, nil
}

func (s *ProtectedStore) update(key string, fn func([]string) []string) error {
	data, err := s.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking every write.
		data = []byte("{}")
	}
	current := normalizeSet(gjson.GetBytes(data, key))
	next := normalize(fn(current))

	out, err := sjson.SetBytes(data, key, next)
	if err != nil {
		return fmt.Errorf("update protected set: %w", err)
	}
	out = []byte(gjson.GetBytes(out, "@pretty").Raw)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("write protected set: %w", err)
	}
	return nil
}

// normalizeSet reads a JSON array of names. Non-array values are ignored.
func normalizeSet(v gjson.Result) []string {
	if !v.IsArray() {
		return []string{}
	}
	names := make([]string, 0, len(v.Array()))
	for _, item := range v.Array() {
		names = append(names, item.String())
	}
	return normalize(names)
}

// normalize lowercases, trims, drops empties, sorts and deduplicates.
func normalize(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func without(set, remove []string) []string {
	drop := normalize(remove)
	return slices.DeleteFunc(set, func(n string) bool {
		_, found := slices.BinarySearch(drop, n)
		return found
	})
}
