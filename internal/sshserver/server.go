// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"

	"github.com/pscli/pscli/internal/dispatch"
	"github.com/pscli/pscli/internal/protect"
)

type (
	// Server shares one dispatcher with remote users. Every connection gets
	// its own dispatch.Session and password prompter. A Server instance is
	// single-use: once stopped or failed, create a new instance.
	Server struct {
		cfg       Config
		d         *dispatch.Dispatcher
		passwords *protect.PasswordStore
		logger    *log.Logger

		state   atomic.Int32
		stateMu sync.Mutex
		lastErr error

		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error

		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		sessions atomic.Int64
	}

	// Option configures a Server.
	Option func(*Server)
)

// WithLogger replaces the default "serve" logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for d. Logins are checked against passwords, the
// same store that guards protected commands.
func New(cfg Config, d *dispatch.Dispatcher, passwords *protect.PasswordStore, opts ...Option) (*Server, error) {
	if d == nil {
		return nil, errors.New("sshserver: nil dispatcher")
	}
	if passwords == nil {
		return nil, errors.New("sshserver: nil password store")
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		d:         d,
		passwords: passwords,
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "serve"}),
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	s.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ActiveSessions returns the number of open sessions.
func (s *Server) ActiveSessions() int64 { return s.sessions.Load() }

// passwordHandler accepts the user password of the local installation.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	ok, err := s.passwords.Verify(password)
	if err != nil {
		s.logger.Error("password check failed", "user", ctx.User(), "error", err)
		return false
	}
	if !ok {
		s.logger.Warn("rejected login", "user", ctx.User(), "remote", ctx.RemoteAddr().String())
		return false
	}
	return true
}

// publicKeyHandler rejects all public key authentication.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}

// isClosedConnError checks for "use of closed network connection".
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err.Error() == "use of closed network connection"
	}
	return false
}

func (s *Server) transitionToFailed(err error) error {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
	s.state.Store(int32(StateFailed))
	if s.cancel != nil {
		s.cancel()
	}
	s.sendError(err)
	return err
}

func (s *Server) sendError(err error) {
	select {
	case s.errCh <- err:
	default:
		s.logger.Error("server error (channel full)", "error", err)
	}
}

// LastError returns the error that caused StateFailed, or nil.
func (s *Server) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}
