// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeSideFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write side-file: %v", err)
	}
}

func TestResolveNative(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A side-file named after the module must be ignored on the native path.
	writeSideFile(t, dir, "calc.lua", `{"category": "office"}`)
	s := NewStore(dir, nil)

	tests := []struct {
		name     string
		mod      ModuleDecl
		cmd      CommandDecl
		category string
		group    string
		desc     string
	}{
		{
			name:     "defaults only",
			cmd:      CommandDecl{Name: "x"},
			category: "general",
			group:    "python",
			desc:     NoDescription,
		},
		{
			name:     "module declarations",
			mod:      ModuleDecl{Category: "math", Group: "office", Desc: "Calculator"},
			cmd:      CommandDecl{Name: "run_calculator"},
			category: "math",
			group:    "office",
			desc:     "Calculator",
		},
		{
			name:     "doc first line beats module desc",
			mod:      ModuleDecl{Category: "math", Desc: "Calculator"},
			cmd:      CommandDecl{Name: "run_calculator", Doc: "\n  Adds numbers.\n  Second line."},
			category: "math",
			group:    "python",
			desc:     "Adds numbers.",
		},
		{
			name:     "explicit desc beats doc",
			mod:      ModuleDecl{Category: "math"},
			cmd:      CommandDecl{Name: "run_calculator", Doc: "Docstring", Desc: "Explicit"},
			category: "math",
			group:    "python",
			desc:     "Explicit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := s.ResolveNative(tt.mod, tt.cmd)
			if m.Category != tt.category || m.Group != tt.group || m.Description != tt.desc {
				t.Errorf("ResolveNative() = %+v, want category=%q group=%q desc=%q", m, tt.category, tt.group, tt.desc)
			}
			if m.Author != "Unknown" {
				t.Errorf("Author = %q, want Unknown", m.Author)
			}
		})
	}
}

func TestResolveExternal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSideFile(t, dir, "backup.ps1", `{"category": "office", "aliases": ["bk", "save"], "extra": 1}`)
	writeSideFile(t, dir, "broken.bat", `{"category": `)
	writeSideFile(t, dir, "list.cmd", `["not", "an", "object"]`)
	writeSideFile(t, dir, "single.exe", `{"aliases": "one", "desc": "Single alias"}`)
	s := NewStore(dir, nil)

	m := s.ResolveExternal("backup.ps1")
	if m.Category != "office" || m.Group != "utility" || m.Description != NoDescription {
		t.Errorf("ResolveExternal(backup.ps1) = %+v", m)
	}
	if !slices.Equal(m.Aliases, []string{"bk", "save"}) {
		t.Errorf("aliases = %v", m.Aliases)
	}

	for _, name := range []string{"broken.bat", "list.cmd", "missing.vbs"} {
		if got := s.ResolveExternal(name); !got.Equal(ExternalDefaults()) {
			t.Errorf("ResolveExternal(%s) = %+v, want defaults", name, got)
		}
	}

	if got := s.ResolveExternal("single.exe"); !slices.Equal(got.Aliases, []string{"one"}) || got.Description != "Single alias" {
		t.Errorf("ResolveExternal(single.exe) = %+v", got)
	}
}

func TestReadSideFile_ParseError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSideFile(t, dir, "bad", `{`)
	_, err := NewStore(dir, nil).readSideFile("bad")

	if !errors.Is(err, ErrMalformedSideFile) {
		t.Fatalf("readSideFile() = %v, want ErrMalformedSideFile", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Path != filepath.Join(dir, "bad.json") {
		t.Errorf("ParseError = %+v", pe)
	}
}

func TestResolveGame(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSideFile(t, dir, "snake", `{"desc": "Classic snake", "aliases": ["sn"]}`)
	writeSideFile(t, dir, "tetris", `{"aliases": ["tt"]}`)
	s := NewStore(dir, nil)

	snake := s.ResolveGame("snake", ModuleDecl{Group: "arcade"})
	if snake.Description != "Classic snake" || snake.Group != "utility" {
		t.Errorf("side-file with desc should win wholesale: %+v", snake)
	}

	tetris := s.ResolveGame("tetris", ModuleDecl{Author: "polsoft"})
	if tetris.Group != "games" || tetris.Category != "games" || tetris.Author != "polsoft" {
		t.Errorf("module declarations should take over: %+v", tetris)
	}
	if !slices.Equal(tetris.Aliases, []string{"tt"}) {
		t.Errorf("side-file aliases lost: %v", tetris.Aliases)
	}

	entry := ApplyCommand(tetris, CommandDecl{Name: "tetris"}, "Game: tetris")
	if entry.Description != "Game: tetris" {
		t.Errorf("empty description fallback = %q", entry.Description)
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                    "",
		"one":                 "one",
		"  one  \n two":       "one",
		"\n\n  padded\nnext ": "padded",
	}
	for in, want := range tests {
		if got := FirstLine(in); got != want {
			t.Errorf("FirstLine(%q) = %q, want %q", in, got, want)
		}
	}
}
