// SPDX-License-Identifier: MPL-2.0

package render

import "github.com/charmbracelet/lipgloss"

// Palette shared by every renderer, tuned for dark backgrounds.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
	ColorVerbose   = lipgloss.Color("#9CA3AF")
)

// Styles are bound to one lipgloss renderer so each output stream (the
// local terminal or an SSH session) gets its own color profile.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Group   lipgloss.Style
	Command lipgloss.Style
	Desc    lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
}

// NewStyles builds the styles for r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(ColorPrimary),
		Header:  r.NewStyle().Bold(true).Foreground(ColorMuted),
		Group:   r.NewStyle().Foreground(ColorWarning),
		Command: r.NewStyle().Bold(true).Foreground(ColorHighlight),
		Desc:    r.NewStyle(),
		Muted:   r.NewStyle().Foreground(ColorVerbose),
		Error:   r.NewStyle().Bold(true).Foreground(ColorError),
		Warning: r.NewStyle().Foreground(ColorWarning),
		Success: r.NewStyle().Foreground(ColorSuccess),
	}
}
