// SPDX-License-Identifier: MPL-2.0

package discovery

import "log/slog"

const (
	// SeverityInfo marks expected conditions such as an absent folder.
	SeverityInfo Severity = "info"
	// SeverityWarning indicates a recoverable discovery warning.
	SeverityWarning Severity = "warning"
)

const (
	// CodeDirMissing is reported for a planned folder that does not exist.
	CodeDirMissing = "dir_missing"
	// CodeDirUnreadable is reported when a folder exists but cannot be listed.
	CodeDirUnreadable = "dir_unreadable"
	// CodeEntryUnreadable is reported when an entry cannot be stat'ed.
	CodeEntryUnreadable = "entry_unreadable"
)

type (
	// Severity represents discovery diagnostic severity.
	Severity string

	// Diagnostic is a non-fatal discovery finding. Diagnostics are returned
	// to callers instead of being printed so the CLI decides what to show.
	Diagnostic struct {
		Severity Severity
		Code     string
		Message  string
		Path     string
		Cause    error
	}
)

// Log writes the diagnostic at debug level. Discovery problems are never
// shown to the user by default.
func (d Diagnostic) Log(logger *slog.Logger) {
	attrs := []any{"code", d.Code, "path", d.Path, "severity", string(d.Severity)}
	if d.Cause != nil {
		attrs = append(attrs, "error", d.Cause)
	}
	logger.Debug(d.Message, attrs...)
}
