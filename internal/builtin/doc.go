// SPDX-License-Identifier: MPL-2.0

// Package builtin holds the commands compiled into the binary. They are
// registered before any scanned file, so a plugin with the same name
// replaces them.
package builtin
