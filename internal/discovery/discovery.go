// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pscli/pscli/internal/command"
)

type (
	// Entry is one classified file found by a scan.
	Entry struct {
		// Name is the registration name: the file name without extension,
		// or BuildCommandName for the root build script.
		Name string
		// FileName is the base name including the extension.
		FileName   string
		Path       string
		Ext        string
		Class      Class
		Provenance command.Provenance
		Launch     command.LaunchPolicy
		Dir        string
	}

	// Result bundles the ordered entries with diagnostics.
	Result struct {
		Entries     []Entry
		Diagnostics []Diagnostic
	}

	// Scanner walks the scan plan.
	Scanner struct {
		root  string
		steps []Step
	}
)

// NewScanner returns a scanner over the default plan for root and the
// plugins folder.
func NewScanner(root, plugins string) *Scanner {
	return &Scanner{root: root, steps: DefaultPlan(root, plugins)}
}

// NewScannerWithPlan returns a scanner over an explicit plan.
func NewScannerWithPlan(root string, steps []Step) *Scanner {
	return &Scanner{root: root, steps: slices.Clone(steps)}
}

// Dirs returns every folder the scanner reads, in plan order, followed by
// the root.
func (s *Scanner) Dirs() []string {
	dirs := make([]string, 0, len(s.steps)+1)
	for _, st := range s.steps {
		dirs = append(dirs, st.Dir)
	}
	return append(dirs, s.root)
}

// Scan reads every planned folder. It only fails when ctx is done; all
// filesystem problems become diagnostics.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan canceled: %w", err)
		}
		s.scanStep(st, res)
	}
	s.scanBuildScript(res)
	return res, nil
}

func (s *Scanner) scanStep(st Step, res *Result) {
	dirEntries, err := os.ReadDir(st.Dir)
	if err != nil {
		code, sev := CodeDirUnreadable, SeverityWarning
		if errors.Is(err, fs.ErrNotExist) {
			code, sev = CodeDirMissing, SeverityInfo
		}
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Severity: sev,
			Code:     code,
			Message:  fmt.Sprintf("skipping %s folder", st.Provenance),
			Path:     st.Dir,
			Cause:    err,
		})
		return
	}

	// os.ReadDir returns entries sorted by name.
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ReservedPrefix) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		class := Classify(ext)
		if !st.accepts(class) {
			continue
		}

		full := filepath.Join(st.Dir, name)
		isDir, statErr := entryIsDir(de, full)
		if statErr != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeEntryUnreadable,
				Message:  "skipping unreadable entry",
				Path:     full,
				Cause:    statErr,
			})
			continue
		}
		if isDir {
			continue
		}

		res.Entries = append(res.Entries, Entry{
			Name:       strings.TrimSuffix(name, filepath.Ext(name)),
			FileName:   name,
			Path:       full,
			Ext:        ext,
			Class:      class,
			Provenance: st.Provenance,
			Launch:     st.Launch,
			Dir:        st.Dir,
		})
	}
}

func (s *Scanner) scanBuildScript(res *Result) {
	if s.root == "" {
		return
	}
	for _, name := range buildScripts {
		full := filepath.Join(s.root, name)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		res.Entries = append(res.Entries, Entry{
			Name:       BuildCommandName,
			FileName:   name,
			Path:       full,
			Ext:        strings.ToLower(filepath.Ext(name)),
			Class:      ClassExternal,
			Provenance: command.ProvenancePlugin,
			Launch:     command.LaunchWait,
			Dir:        s.root,
		})
		return
	}
}

// entryIsDir follows symlinks so a link to a folder is skipped like a folder.
func entryIsDir(de fs.DirEntry, full string) (bool, error) {
	if de.Type()&fs.ModeSymlink == 0 {
		return de.IsDir(), nil
	}
	info, err := os.Stat(full)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
