// SPDX-License-Identifier: MPL-2.0

package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pscli/pscli/internal/protect"
)

// Terminal is a line editor over a local console. It reads both command
// lines and passwords, so typed-ahead input stays in one buffer. The
// console is in raw mode only while a read is in progress, and commands
// run with the normal terminal settings.
type Terminal struct {
	t       *term.Terminal
	makeRaw func() (restore func(), err error)
}

var (
	_ LineReader       = (*Terminal)(nil)
	_ protect.Prompter = (*Terminal)(nil)
)

// NewTerminal returns a Terminal reading from in and echoing to out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	fd := int(in.Fd())
	return newTerminal(in, out, func() (func(), error) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return nil, err
		}
		return func() { _ = term.Restore(fd, old) }, nil
	})
}

func newTerminal(in io.Reader, out io.Writer, makeRaw func() (func(), error)) *Terminal {
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	return &Terminal{t: term.NewTerminal(rw, ""), makeRaw: makeRaw}
}

// SetPrompt implements LineReader.
func (c *Terminal) SetPrompt(prompt string) { c.t.SetPrompt(prompt) }

// ReadLine implements LineReader. A bracketed paste is returned as typed.
func (c *Terminal) ReadLine() (string, error) {
	var line string
	err := c.raw(func() (err error) {
		line, err = c.t.ReadLine()
		return err
	})
	if errors.Is(err, term.ErrPasteIndicator) {
		err = nil
	}
	return line, err
}

// Password implements protect.Prompter.
func (c *Terminal) Password(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var s string
	err := c.raw(func() (err error) {
		s, err = c.t.ReadPassword(prompt)
		return err
	})
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", protect.ErrNoInput
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func (c *Terminal) raw(read func() error) error {
	restore, err := c.makeRaw()
	if err != nil {
		return fmt.Errorf("console raw mode: %w", err)
	}
	defer restore()
	return read()
}
