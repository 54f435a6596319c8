// SPDX-License-Identifier: MPL-2.0

// Package discovery scans the plugin folders and classifies each entry as a
// native module or an external executable.
//
// The scan follows a fixed plan: the plugins folder first, then games,
// ascii, tools, health and install, and finally the root build script.
// Registration is last-writer-wins, so the plan order decides which file owns
// a name that appears in more than one folder. Each folder is read one level
// deep, entries whose name starts with "__" are skipped, and a missing folder
// is reported as a diagnostic rather than an error.
//
// File organization:
//   - discovery.go: Scanner, Entry and the per-folder scan
//   - plan.go: the scan plan and extension classes
//   - diagnostic.go: non-fatal diagnostics returned to callers
package discovery
