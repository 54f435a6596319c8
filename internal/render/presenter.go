// SPDX-License-Identifier: MPL-2.0

package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/pscli/pscli/internal/dispatch"
)

const (
	// FormatTable is the styled terminal table.
	FormatTable Format = "table"
	// FormatPlain is the unstyled table.
	FormatPlain Format = "plain"
	// FormatJSON prints one JSON document per list.
	FormatJSON Format = "json"
	// FormatYAML prints one YAML document per list.
	FormatYAML Format = "yaml"
	// FormatTOML prints one TOML document per list.
	FormatTOML Format = "toml"

	clearScreen = "\033[H\033[2J"
)

// Column widths of the table formats.
const (
	groupWidth    = 10
	commandWidth  = 15
	categoryWidth = 12
)

// ErrUnknownFormat is the sentinel wrapped by UnknownFormatError.
var ErrUnknownFormat = errors.New("unknown output format")

type (
	// Format selects how lists are written.
	Format string

	// UnknownFormatError reports an unsupported --output value.
	UnknownFormatError struct {
		Value string
	}

	// Record is the structured form of one listed command.
	Record struct {
		Group       string   `json:"group" yaml:"group" toml:"group"`
		Command     string   `json:"command" yaml:"command" toml:"command"`
		Description string   `json:"description" yaml:"description" toml:"description"`
		Category    string   `json:"category" yaml:"category" toml:"category"`
		Author      string   `json:"author" yaml:"author" toml:"author"`
		Aliases     []string `json:"aliases" yaml:"aliases" toml:"aliases"`
		Source      string   `json:"source" yaml:"source" toml:"source"`
	}

	// Listing is the structured form of one view.
	Listing struct {
		Title    string   `json:"title" yaml:"title" toml:"title"`
		Group    string   `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
		Commands []Record `json:"commands" yaml:"commands" toml:"commands"`
	}

	// Presenter implements dispatch.Presenter for every Format.
	Presenter struct {
		format Format
	}
)

var _ dispatch.Presenter = (*Presenter)(nil)

// Formats lists the accepted --output values.
func Formats() []Format {
	return []Format{FormatTable, FormatPlain, FormatJSON, FormatYAML, FormatTOML}
}

// ParseFormat validates s. An empty string selects FormatTable.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatTable, nil
	}
	f := Format(strings.ToLower(s))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", &UnknownFormatError{Value: s}
}

// Error implements the error interface.
func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("%v %q (want table, plain, json, yaml or toml)", ErrUnknownFormat, e.Value)
}

// Unwrap returns ErrUnknownFormat.
func (e *UnknownFormatError) Unwrap() error { return ErrUnknownFormat }

// NewPresenter returns a presenter writing f.
func NewPresenter(f Format) *Presenter {
	if f == "" {
		f = FormatTable
	}
	return &Presenter{format: f}
}

// Format returns the configured format.
func (p *Presenter) Format() Format { return p.format }

// List implements dispatch.Presenter.
func (p *Presenter) List(w io.Writer, v dispatch.View) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ToListing(v))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ToListing(v)); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return enc.Encode(ToListing(v))
	case FormatPlain:
		return dispatch.PlainPresenter{}.List(w, v)
	default:
		return p.table(w, v)
	}
}

// Notice implements dispatch.Presenter. Structured formats keep notices
// plain so stdout stays parseable.
func (p *Presenter) Notice(w io.Writer, n dispatch.Notice) {
	if p.format != FormatTable {
		fmt.Fprintln(w, n.Text)
		return
	}
	st := NewStyles(lipgloss.NewRenderer(w))
	style := st.Warning
	switch n.Kind {
	case dispatch.NoticeFailed, dispatch.NoticeLoadFailed, dispatch.NoticeDenied:
		style = st.Error
	case dispatch.NoticeUnknown:
		style = st.Muted
	}
	fmt.Fprintln(w, style.Render(n.Text))
}

func (p *Presenter) table(w io.Writer, v dispatch.View) error {
	st := NewStyles(lipgloss.NewRenderer(w))
	var b strings.Builder
	if v.Clear {
		b.WriteString(clearScreen)
	}

	header := strings.Join([]string{
		pad("GROUP", groupWidth),
		pad("COMMAND", commandWidth),
		pad("DESCRIPTION", dispatch.DescriptionWidth),
		pad("CATEGORY", categoryWidth),
		"ALIASES",
	}, " | ")
	rule := st.Muted.Render(strings.Repeat("─", lipgloss.Width(header)))

	b.WriteString(st.Title.Render(v.Title) + "\n")
	b.WriteString(st.Header.Render(header) + "\n")
	b.WriteString(rule + "\n")

	prev := ""
	for i, r := range v.Rows {
		group := strings.ToLower(r.Meta.Group)
		if v.Group == "" && i > 0 && group != prev {
			b.WriteString(rule + "\n")
		}
		prev = group
		b.WriteString(strings.Join([]string{
			st.Group.Render(pad(r.Meta.Group, groupWidth)),
			st.Command.Render(pad(r.Name, commandWidth)),
			st.Desc.Render(pad(dispatch.Truncate(r.Meta.Description, dispatch.DescriptionWidth), dispatch.DescriptionWidth)),
			st.Muted.Render(pad(r.Meta.Category, categoryWidth)),
			r.AliasText(),
		}, " | "))
		b.WriteString("\n")
	}
	b.WriteString(rule + "\n")
	b.WriteString(st.Muted.Render(dispatch.Footer(len(v.Rows))) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// ToListing converts a view to its structured form.
func ToListing(v dispatch.View) Listing {
	l := Listing{Title: v.Title, Group: v.Group, Commands: make([]Record, 0, len(v.Rows))}
	for _, r := range v.Rows {
		aliases := r.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		l.Commands = append(l.Commands, Record{
			Group:       r.Meta.Group,
			Command:     r.Name,
			Description: r.Meta.Description,
			Category:    r.Meta.Category,
			Author:      r.Meta.Author,
			Aliases:     aliases,
			Source:      r.Provenance.String(),
		})
	}
	return l
}

// pad left-aligns s in width cells, measuring display width.
func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
