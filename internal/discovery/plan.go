// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"path/filepath"

	"github.com/pscli/pscli/internal/command"
)

const (
	// ClassNative marks files loaded in-process.
	ClassNative Class = iota + 1
	// ClassExternal marks files run as a subprocess.
	ClassExternal
)

const (
	// NativeExt is the extension of native modules.
	NativeExt = ".lua"

	// BuildCommandName is the name the root build script registers under.
	BuildCommandName = "build"

	// ReservedPrefix excludes files and folders from every scan.
	ReservedPrefix = "__"
)

// externalExts is the allow-list of external executables.
var externalExts = map[string]struct{}{
	".bat": {},
	".cmd": {},
	".ps1": {},
	".exe": {},
	".vbs": {},
	".sh":  {},
	".py":  {},
}

// buildScripts are tried in order at the root; the first one found wins.
var buildScripts = []string{"build.ps1", "build.sh"}

type (
	// Class is the extension class of an entry.
	Class int

	// Step is one folder of the scan plan.
	Step struct {
		Dir        string
		Provenance command.Provenance
		Launch     command.LaunchPolicy
		Native     bool
		External   bool
	}
)

// String returns "native" or "external".
func (c Class) String() string {
	switch c {
	case ClassNative:
		return "native"
	case ClassExternal:
		return "external"
	default:
		return "none"
	}
}

// Classify returns the class of a lowercase extension, or 0 when it is not
// recognised.
func Classify(ext string) Class {
	if ext == NativeExt {
		return ClassNative
	}
	if _, ok := externalExts[ext]; ok {
		return ClassExternal
	}
	return 0
}

// IsScannedExt reports whether ext belongs to either class.
func IsScannedExt(ext string) bool {
	return Classify(ext) != 0
}

// DefaultPlan returns the folder steps in scan order. The root build script
// is handled after these steps by Scanner.
func DefaultPlan(root, plugins string) []Step {
	aux := func(name string, p command.Provenance) Step {
		return Step{
			Dir:        filepath.Join(root, name),
			Provenance: p,
			Launch:     command.LaunchDetached,
			External:   true,
		}
	}
	return []Step{
		{Dir: plugins, Provenance: command.ProvenancePlugin, Launch: command.LaunchWait, Native: true, External: true},
		{Dir: filepath.Join(root, "games"), Provenance: command.ProvenanceGame, Launch: command.LaunchWait, Native: true},
		aux("ascii", command.ProvenanceAscii),
		aux("tools", command.ProvenanceTool),
		aux("health", command.ProvenanceHealth),
		aux("install", command.ProvenanceInstall),
	}
}

// accepts reports whether the step takes entries of class c.
func (s Step) accepts(c Class) bool {
	switch c {
	case ClassNative:
		return s.Native
	case ClassExternal:
		return s.External
	default:
		return false
	}
}
