// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
)

// Start listens and blocks until either:
//   - The server is ready to accept connections (returns nil)
//   - The server fails to start (returns error)
//   - The context is cancelled or the startup timeout passes (returns error)
//
// After Start returns nil, use Err to monitor for runtime errors.
func (s *Server) Start(ctx context.Context) error {
	// A cancelled ctx must fail before the serve goroutine can report
	// StateRunning.
	if err := ctx.Err(); err != nil {
		return s.transitionToFailed(fmt.Errorf("context cancelled before start: %w", err))
	}
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", s.State())
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", s.cfg.Address)
	if err != nil {
		return s.transitionToFailed(fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err))
	}

	opts := []ssh.Option{
		wish.WithAddress(listener.Addr().String()),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		// Executed last to first: log, one-shot commands, pty check, REPL.
		wish.WithMiddleware(
			s.replMiddleware(),
			activeterm.Middleware(),
			s.commandMiddleware(),
			s.logMiddleware(),
		),
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	if s.cfg.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(s.cfg.IdleTimeout))
	}

	srv, err := wish.NewServer(opts...)
	if err != nil {
		_ = listener.Close() // Best-effort cleanup on error
		return s.transitionToFailed(fmt.Errorf("failed to create SSH server: %w", err))
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	s.wg.Add(1)
	go s.serve()

	select {
	case <-s.startedCh:
		s.logger.Info("SSH server started", "address", s.addr)
		return nil
	case err := <-s.errCh:
		return s.transitionToFailed(err)
	case <-startupCtx.Done():
		return s.transitionToFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
	}
}

// Stop gracefully stops the server. It blocks until every session has
// ended or the shutdown timeout passes. Safe to call multiple times.
func (s *Server) Stop() error {
	for {
		current := s.State()
		switch current {
		case StateStopped, StateFailed:
			return nil
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return nil
			}
		case StateStopping:
			s.wg.Wait()
			return nil
		case StateStarting, StateRunning:
			if s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				return s.doStop()
			}
		default:
			return fmt.Errorf("unknown server state: %d", current)
		}
	}
}

func (s *Server) doStop() error {
	if s.cancel != nil {
		s.cancel()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.srv != nil {
		shutdownErr = s.srv.Shutdown(shutdownCtx)
		if shutdownErr != nil && !isClosedConnError(shutdownErr) {
			s.logger.Error("shutdown error", "error", shutdownErr)
		} else {
			shutdownErr = nil
		}
	}
	if s.listener != nil {
		_ = s.listener.Close() //nolint:errcheck // Best-effort cleanup during shutdown
	}
	s.srvMu.Unlock()

	s.wg.Wait()
	s.state.Store(int32(StateStopped))
	close(s.errCh)
	s.logger.Info("SSH server stopped")
	return shutdownErr
}

func (s *Server) serve() {
	defer s.wg.Done()

	if s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(s.startedCh)
	}

	s.srvMu.Lock()
	srv, listener := s.srv, s.listener
	s.srvMu.Unlock()
	if srv == nil || listener == nil {
		return
	}

	if err := srv.Serve(listener); err != nil {
		if errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return
		}
		s.sendError(fmt.Errorf("serve error: %w", err))
	}
}

// Err returns a channel that receives fatal server errors. It is closed
// when the server stops.
func (s *Server) Err() <-chan error { return s.errCh }

// State returns the current server state.
func (s *Server) State() State { return State(s.state.Load()) }

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool { return s.State() == StateRunning }

// Address returns the bound host:port, or "" before Start succeeded.
func (s *Server) Address() string {
	select {
	case <-s.startedCh:
		s.srvMu.Lock()
		defer s.srvMu.Unlock()
		return s.addr
	default:
		return ""
	}
}

// Wait blocks until the server stops. It returns the failure cause when
// the server failed.
func (s *Server) Wait() error {
	s.wg.Wait()
	if s.State() == StateFailed {
		return s.LastError()
	}
	return nil
}
