// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"golang.org/x/term"

	"github.com/pscli/pscli/internal/protect"
	"github.com/pscli/pscli/internal/repl"
)

// logMiddleware records the start and end of every session.
func (s *Server) logMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			start := time.Now()
			active := s.sessions.Add(1)
			s.logger.Info("session opened",
				"user", sess.User(),
				"remote", sess.RemoteAddr().String(),
				"command", sess.Command(),
				"active", active)
			defer func() {
				s.sessions.Add(-1)
				s.logger.Info("session closed", "user", sess.User(), "duration", time.Since(start).Round(time.Millisecond))
			}()
			next(sess)
		}
	}
}

// commandMiddleware runs `ssh host <trigger> [args...]` once and exits
// with the outcome's status. Sessions without a command fall through to
// the REPL.
func (s *Server) commandMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			cmd := sess.Command()
			if len(cmd) == 0 {
				next(sess)
				return
			}
			ds := s.d.NewSession(sess, sess, sess.Stderr(), protect.NewSessionPrompter(sess))
			res := ds.Execute(sess.Context(), cmd[0], cmd[1:]...)
			_ = sess.Exit(res.ExitCode()) //nolint:errcheck // Terminal operation; error non-critical
		}
	}
}

// replMiddleware serves an interactive loop on a virtual terminal shared
// by the line editor and the password prompter.
func (s *Server) replMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			t := term.NewTerminal(sess, "")
			if pty, winCh, ok := sess.Pty(); ok {
				_ = t.SetSize(pty.Window.Width, pty.Window.Height) //nolint:errcheck // Terminal operation; error non-critical
				go func() {
					for win := range winCh {
						_ = t.SetSize(win.Width, win.Height) //nolint:errcheck // Terminal operation; error non-critical
					}
				}()
			}

			ds := s.d.NewSession(sess, t, t, protect.NewTerminalPrompter(t))
			loop := repl.New(ds, t, repl.WithLogger(slog.New(s.logger).With("user", sess.User())))
			if err := loop.Run(sess.Context()); err != nil {
				_, _ = fmt.Fprintf(sess.Stderr(), "session error: %v\n", err)
				_ = sess.Exit(1) //nolint:errcheck // Terminal operation; error non-critical
				return
			}
			_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
		}
	}
}
