// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"fmt"
	"io"
	goruntime "runtime"
	"strings"

	"github.com/pscli/pscli/internal/command"
)

const (
	// NoticeUnknown reports an unresolved trigger.
	NoticeUnknown NoticeKind = iota
	// NoticeDenied reports a rejected password.
	NoticeDenied
	// NoticeFailed reports a handler failure.
	NoticeFailed
	// NoticeEmptyGroup reports a list filter that matched nothing.
	NoticeEmptyGroup
	// NoticeLoadFailed reports a native module that could not be loaded.
	NoticeLoadFailed
)

type (
	// NoticeKind classifies a one-line message.
	NoticeKind int

	// Notice is a one-line message for the session.
	Notice struct {
		Kind NoticeKind
		Text string
		Err  error
	}

	// Row is one listed command with its effective aliases.
	Row struct {
		command.Descriptor
		Aliases []string
	}

	// View is a rendered command list.
	View struct {
		Title string
		// Group is the filter, or "" for the full list.
		Group string
		// Menu marks the menu view, which shows the banner title.
		Menu bool
		// Clear asks the presenter to clear the screen first.
		Clear bool
		Rows  []Row
	}

	// Presenter writes lists and notices to a session.
	Presenter interface {
		List(w io.Writer, v View) error
		Notice(w io.Writer, n Notice)
	}

	// PlainPresenter renders without styling.
	PlainPresenter struct{}
)

// List writes a header and one line per row. The full list separates
// groups with a rule.
func (PlainPresenter) List(w io.Writer, v View) error {
	header := strings.TrimSuffix(fmt.Sprintf(rowFormat, "GROUP", "COMMAND", "DESCRIPTION", "CATEGORY", "ALIASES"), "\n")
	rule := strings.Repeat("-", len(header))
	if _, err := fmt.Fprintf(w, "%s\n%s\n%s\n", v.Title, header, rule); err != nil {
		return err
	}
	prev := ""
	for i, r := range v.Rows {
		group := strings.ToLower(r.Meta.Group)
		if v.Group == "" && i > 0 && group != prev {
			if _, err := fmt.Fprintln(w, rule); err != nil {
				return err
			}
		}
		prev = group
		_, err := fmt.Fprintf(w, rowFormat,
			r.Meta.Group, r.Name, Truncate(r.Meta.Description, DescriptionWidth), r.Meta.Category, r.AliasText())
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", rule, Footer(len(v.Rows)))
	return err
}

// Footer is the line printed under every list.
func Footer(n int) string {
	return fmt.Sprintf("%d modules | OS: %s %s | Go: %s | [f5] refresh", n, goruntime.GOOS, goruntime.GOARCH, goruntime.Version())
}

// AliasText joins the aliases, or returns "-" when there are none.
func (r Row) AliasText() string {
	if len(r.Aliases) == 0 {
		return "-"
	}
	return strings.Join(r.Aliases, ", ")
}

// Notice writes the text on its own line.
func (PlainPresenter) Notice(w io.Writer, n Notice) {
	fmt.Fprintln(w, n.Text)
}

const (
	// DescriptionWidth is the description column width in list views.
	DescriptionWidth = 45

	rowFormat = "%-10s | %-15s | %-45s | %-12s | %s\n"
)

// Truncate trims s and cuts it to at most width runes.
func Truncate(s string, width int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= width {
		return string(r)
	}
	return string(r[:width])
}
