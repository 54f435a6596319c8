// SPDX-License-Identifier: MPL-2.0

// Package metadata merges command metadata from built-in defaults, native
// module declarations and JSON side-files.
package metadata

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pscli/pscli/internal/command"

	"github.com/tidwall/gjson"
)

const (
	// NoDescription is shown when no source provides a description.
	NoDescription = "No description"

	defaultAuthor   = "Unknown"
	nativeCategory  = "general"
	nativeGroup     = "python"
	externalGroup   = "utility"
	externalCat     = "tool"
	gameCategory    = "games"
	gameGroup       = "games"
	sideFileExt     = ".json"
	maxSideFileSize = 1 << 20
)

// ErrMalformedSideFile is the sentinel wrapped by ParseError.
var ErrMalformedSideFile = errors.New("malformed metadata file")

type (
	// ModuleDecl holds the module-level declarations of a native module.
	// Empty fields are treated as not declared.
	ModuleDecl struct {
		Author   string
		Category string
		Group    string
		Desc     string
	}

	// CommandDecl is one command declared by a native module.
	CommandDecl struct {
		Name    string
		Aliases []string
		// Desc is an explicit description; it beats Doc.
		Desc string
		// Doc is a free-form docstring; only its first line is used.
		Doc string
	}

	// ParseError reports a side-file that exists but could not be used.
	ParseError struct {
		Path string
		Err  error
	}

	// Store resolves metadata against one metadata folder.
	Store struct {
		dir    string
		logger *slog.Logger
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns ErrMalformedSideFile.
func (e *ParseError) Unwrap() error { return ErrMalformedSideFile }

// NewStore returns a store reading side-files from dir. A nil logger uses
// slog.Default().
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the metadata folder.
func (s *Store) Dir() string { return s.dir }

// NativeDefaults returns the defaults for plugin native modules.
func NativeDefaults() command.Metadata {
	return command.Metadata{
		Author:   defaultAuthor,
		Category: nativeCategory,
		Group:    nativeGroup,
		Aliases:  []string{},
	}
}

// ExternalDefaults returns the defaults for external binaries.
func ExternalDefaults() command.Metadata {
	return command.Metadata{
		Author:      defaultAuthor,
		Category:    externalCat,
		Group:       externalGroup,
		Description: NoDescription,
		Aliases:     []string{},
	}
}

// ResolveNative merges defaults, module declarations and the command's own
// declaration. Side-files are never consulted for native plugin modules.
func (s *Store) ResolveNative(mod ModuleDecl, cmd CommandDecl) command.Metadata {
	meta := NativeDefaults()
	overlayModule(&meta, mod)
	return ApplyCommand(meta, cmd, NoDescription)
}

// ResolveExternal returns the external defaults overlaid with
// <dir>/<fileName>.json, where fileName includes the extension.
func (s *Store) ResolveExternal(fileName string) command.Metadata {
	meta := ExternalDefaults()
	s.overlaySideFile(&meta, fileName)
	return meta
}

// ResolveGame returns the base metadata of a games-folder module. The
// side-file <dir>/<baseName>.json is read first; when it leaves the
// description at NoDescription the module declarations take over with the
// games defaults.
func (s *Store) ResolveGame(baseName string, mod ModuleDecl) command.Metadata {
	meta := ExternalDefaults()
	s.overlaySideFile(&meta, baseName)
	if meta.Description == NoDescription {
		meta.Author = cmp.Or(mod.Author, defaultAuthor)
		meta.Category = cmp.Or(mod.Category, gameCategory)
		meta.Group = cmp.Or(mod.Group, gameGroup)
		meta.Description = mod.Desc
	}
	return meta
}

// ApplyCommand finishes base with a command declaration: aliases come from
// the declaration, an explicit Desc wins, then the first line of Doc. An
// empty description becomes emptyDesc.
func ApplyCommand(base command.Metadata, cmd CommandDecl, emptyDesc string) command.Metadata {
	meta := base.Clone()
	meta.Aliases = append([]string{}, cmd.Aliases...)
	switch {
	case strings.TrimSpace(cmd.Desc) != "":
		meta.Description = strings.TrimSpace(cmd.Desc)
	case FirstLine(cmd.Doc) != "":
		meta.Description = FirstLine(cmd.Doc)
	}
	if meta.Description == "" {
		meta.Description = emptyDesc
	}
	return meta
}

// FirstLine returns the first line of the trimmed docstring.
func FirstLine(doc string) string {
	doc = strings.TrimSpace(doc)
	line, _, _ := strings.Cut(doc, "\n")
	return strings.TrimSpace(line)
}

func overlayModule(meta *command.Metadata, mod ModuleDecl) {
	if mod.Author != "" {
		meta.Author = mod.Author
	}
	if mod.Category != "" {
		meta.Category = mod.Category
	}
	if mod.Group != "" {
		meta.Group = mod.Group
	}
	if mod.Desc != "" {
		meta.Description = mod.Desc
	}
}

// overlaySideFile applies update semantics: every known key present in the
// file replaces the current value. Read and parse failures leave meta as is.
func (s *Store) overlaySideFile(meta *command.Metadata, name string) {
	doc, err := s.readSideFile(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("metadata side-file ignored", "file", name, "error", err)
		}
		return
	}

	for key, dst := range map[string]*string{
		"author":   &meta.Author,
		"category": &meta.Category,
		"group":    &meta.Group,
		"desc":     &meta.Description,
	} {
		if v := doc.Get(key); v.Exists() {
			*dst = v.String()
		}
	}

	if v := doc.Get("aliases"); v.Exists() {
		aliases := []string{}
		if v.IsArray() {
			for _, a := range v.Array() {
				if a.String() != "" {
					aliases = append(aliases, a.String())
				}
			}
		} else if v.String() != "" {
			aliases = append(aliases, v.String())
		}
		meta.Aliases = aliases
	}
}

// readSideFile loads and validates <dir>/<name>.json.
func (s *Store) readSideFile(name string) (gjson.Result, error) {
	if s.dir == "" {
		return gjson.Result{}, fs.ErrNotExist
	}
	path := filepath.Join(s.dir, name+sideFileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return gjson.Result{}, err
	}
	if len(data) > maxSideFileSize {
		return gjson.Result{}, &ParseError{Path: path, Err: errors.New("file too large")}
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &ParseError{Path: path, Err: errors.New("invalid JSON")}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return gjson.Result{}, &ParseError{Path: path, Err: errors.New("top-level value is not an object")}
	}
	return doc, nil
}
