// SPDX-License-Identifier: MPL-2.0

// Package render draws command lists and notices for terminals (styled with
// lipgloss) and for scripts (JSON or YAML).
package render
