// SPDX-License-Identifier: MPL-2.0

package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/pscli/pscli/internal/dispatch"
)

const (
	// HashTrigger is the trigger a bare "#" is rewritten to.
	HashTrigger = "menuallweb"
	// ChainSeparator splits one line into several commands.
	ChainSeparator = "&"
)

type (
	// LineReader reads one line after showing the current prompt.
	// *term.Terminal satisfies it.
	LineReader interface {
		ReadLine() (string, error)
		SetPrompt(prompt string)
	}

	// Loop is one interactive session.
	Loop struct {
		session *dispatch.Session
		lines   LineReader
		logger  *slog.Logger
	}

	// Option configures a Loop.
	Option func(*Loop)

	// promptReader is the LineReader for plain streams.
	promptReader struct {
		r      *bufio.Reader
		out    io.Writer
		prompt string
	}
)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(loop *Loop) { loop.logger = l }
}

// New returns a loop reading lines from lines and running them on s.
func New(s *dispatch.Session, lines LineReader, opts ...Option) *Loop {
	l := &Loop{session: s, lines: lines, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewPromptReader returns a LineReader that writes the prompt to out and
// reads lines from r.
func NewPromptReader(r *bufio.Reader, out io.Writer) LineReader {
	return &promptReader{r: r, out: out}
}

func (p *promptReader) SetPrompt(prompt string) { p.prompt = prompt }

func (p *promptReader) ReadLine() (string, error) {
	fmt.Fprint(p.out, p.prompt)
	line, err := p.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Run shows the start screen and reads lines until exit, quit, EOF or ctx
// is done. EOF and exit are not errors.
func (l *Loop) Run(ctx context.Context) error {
	l.Welcome()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.lines.SetPrompt(l.prompt())
		line, err := l.lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if l.Handle(ctx, line) {
			return nil
		}
	}
}

// Welcome shows the menu group when there is one, else the full list.
func (l *Loop) Welcome() {
	if st := l.session.Dispatcher().State(); st != nil && st.Registry.HasGroup(dispatch.MenuGroup) {
		l.session.ShowMenu()
		return
	}
	l.session.ShowAll()
}

// Handle runs every segment of line and reports whether the loop should
// end.
func (l *Loop) Handle(ctx context.Context, line string) (quit bool) {
	for _, segment := range Segments(line) {
		words := Words(segment)
		if len(words) == 0 {
			continue
		}
		trigger, args := Trigger(words[0]), words[1:]
		switch trigger {
		case "exit", "quit":
			return true
		case "menu":
			l.session.ShowMenu()
		case "modules", "mod":
			l.session.ShowModules()
		default:
			res := l.session.Execute(ctx, trigger, args...)
			l.logger.Debug("dispatched", "trigger", trigger, "outcome", res.Outcome.String())
		}
	}
	return false
}

func (l *Loop) prompt() string {
	st := l.session.Dispatcher().State()
	if st == nil || st.Settings == nil {
		return "> "
	}
	return st.Settings.Prompt(st.Paths.Root)
}

// Segments splits line on '&' and drops blank segments.
func Segments(line string) []string {
	var out []string
	for _, s := range strings.Split(line, ChainSeparator) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Words splits a segment with shell quoting. Input the shell parser
// rejects, such as an unbalanced quote, falls back to whitespace splitting,
// as does a segment starting with '#', which the parser reads as a comment.
func Words(segment string) []string {
	if strings.HasPrefix(segment, "#") {
		return strings.Fields(segment)
	}
	words, err := shell.Fields(segment, noExpand)
	if err != nil {
		return strings.Fields(segment)
	}
	return words
}

// Trigger normalises the first word of a segment.
func Trigger(word string) string {
	if word == "#" {
		return HashTrigger
	}
	return strings.ToLower(word)
}

// noExpand keeps $NAME references literal; commands get the text the user
// typed.
func noExpand(name string) string { return "$" + name }
