// SPDX-License-Identifier: MPL-2.0

package protect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordPrompt is the text shown before a masked password read.
const PasswordPrompt = "Password: "

type (
	// Prompter reads one password. Implementations must not echo input.
	Prompter interface {
		Password(ctx context.Context, prompt string) (string, error)
	}

	// PrompterFunc adapts a function to Prompter.
	PrompterFunc func(ctx context.Context, prompt string) (string, error)

	// TermPrompter reads from a terminal with echo disabled, or a plain
	// line when the input is not a terminal.
	TermPrompter struct {
		in  *os.File
		out io.Writer
		// lines is used when in is not a terminal.
		lines *bufio.Reader
	}

	// SessionPrompter reads masked input over an arbitrary stream, such as
	// an SSH channel, using a virtual terminal.
	SessionPrompter struct {
		t *term.Terminal
	}
)

// ErrNoInput is returned when the input stream ends before a line is read.
var ErrNoInput = errors.New("no password input")

// Password implements Prompter.
func (f PrompterFunc) Password(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewTermPrompter returns a prompter over in and out.
func NewTermPrompter(in *os.File, out io.Writer) *TermPrompter {
	return &TermPrompter{in: in, out: out, lines: bufio.NewReader(in)}
}

// WithLineReader makes a non-terminal prompter read from r, which must wrap
// the same input. A REPL reading commands from a pipe shares its reader so
// buffered lines are not lost.
func (p *TermPrompter) WithLineReader(r *bufio.Reader) *TermPrompter {
	c := *p
	c.lines = r
	return &c
}

// Password implements Prompter.
func (p *TermPrompter) Password(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, prompt)
	defer fmt.Fprintln(p.out)

	if fd := int(p.in.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := p.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// NewSessionPrompter returns a prompter over rw.
func NewSessionPrompter(rw io.ReadWriter) *SessionPrompter {
	return &SessionPrompter{t: term.NewTerminal(rw, "")}
}

// NewTerminalPrompter returns a prompter sharing t with a line editor, so
// the REPL and password prompts read from one terminal state.
func NewTerminalPrompter(t *term.Terminal) *SessionPrompter {
	return &SessionPrompter{t: t}
}

// Terminal returns the underlying virtual terminal.
func (p *SessionPrompter) Terminal() *term.Terminal { return p.t }

// Password implements Prompter.
func (p *SessionPrompter) Password(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := p.t.ReadPassword(prompt)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(s), nil
}
