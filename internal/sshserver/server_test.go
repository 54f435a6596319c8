// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
	gossh "golang.org/x/crypto/ssh"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/dispatch"
	"github.com/pscli/pscli/internal/protect"
	"github.com/pscli/pscli/internal/testutil"
)

func echoCommand() command.Descriptor {
	return command.Descriptor{
		Name: "echo",
		Handler: command.Native{Source: "builtin:echo", Func: func(_ context.Context, inv *command.Invocation) error {
			_, err := fmt.Fprintln(inv.Stdout, strings.Join(inv.Args, " "))
			return err
		}},
		Meta:       command.Metadata{Author: "test", Category: "test", Group: "system", Description: "echo"},
		Provenance: command.ProvenanceBuiltin,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	root := t.TempDir()
	settings := config.DefaultSettings()
	settings.Dispatcher.RootDir = root
	settings.UI.ClearOnMenu = false
	settings.History.Enabled = false
	paths, err := settings.ResolvePaths(filepath.Join(root, ".pscli"))
	if err != nil {
		t.Fatalf("ResolvePaths() error = %v", err)
	}
	passwords := protect.NewPasswordStore(paths.Password).WithCost(bcrypt.MinCost)

	d := dispatch.New(dispatch.Options{
		Settings: func(context.Context) (*config.Loaded, error) {
			return &config.Loaded{Settings: settings, Paths: paths}, nil
		},
		Builtins:     []command.Descriptor{echoCommand()},
		Passwords:    passwords,
		Getenv:       func(string) string { return "" },
		ModuleOutput: io.Discard,
		Logger:       slog.New(slog.DiscardHandler),
	})
	t.Cleanup(d.Close)
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	srv, err := New(DefaultConfig(), d, passwords, WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func startTestServer(t *testing.T) *Server {
	t.Helper()
	srv := newTestServer(t)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { testutil.MustStop(t, srv) })
	return srv
}

func dial(t *testing.T, srv *Server, password string) (*gossh.Client, error) {
	t.Helper()
	return gossh.Dial("tcp", srv.Address(), &gossh.ClientConfig{
		User:            "tester",
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(), //nolint:gosec // test server with ephemeral key
		Timeout:         5 * time.Second,
	})
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.Options{Logger: slog.New(slog.DiscardHandler)})
	pw := protect.NewPasswordStore(filepath.Join(t.TempDir(), "pw"))

	if _, err := New(DefaultConfig(), nil, pw); err == nil {
		t.Error("New() with nil dispatcher should fail")
	}
	if _, err := New(DefaultConfig(), d, nil); err == nil {
		t.Error("New() with nil password store should fail")
	}
	_, err := New(Config{Address: "no-port"}, d, pw)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() with bad address = %v, want ErrInvalidConfig", err)
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if srv.State() != StateCreated {
		t.Fatalf("State() = %s, want created", srv.State())
	}
	if srv.Address() != "" {
		t.Error("Address() before Start should be empty")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !srv.IsRunning() {
		t.Fatalf("State() = %s, want running", srv.State())
	}
	if !strings.HasPrefix(srv.Address(), "127.0.0.1:") || strings.HasSuffix(srv.Address(), ":0") {
		t.Errorf("Address() = %q, want a bound loopback port", srv.Address())
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", srv.State())
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestServerStartCancelled(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() = %v, want context.Canceled", err)
	}
	if srv.State() != StateFailed {
		t.Errorf("State() = %s, want failed", srv.State())
	}
	if srv.LastError() == nil {
		t.Error("LastError() should hold the cause")
	}
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", srv.State())
	}
}

func TestPasswordAuth(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)

	if _, err := dial(t, srv, "wrong"); err == nil {
		t.Fatal("login with a wrong password should fail")
	}
	client, err := dial(t, srv, protect.DefaultPassword)
	if err != nil {
		t.Fatalf("login with the default password: %v", err)
	}
	_ = client.Close()
}

func TestOneShotCommand(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	client, err := dial(t, srv, protect.DefaultPassword)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	var out bytes.Buffer
	sess.Stdout = &out
	if err := sess.Run("echo hello world"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello world" {
		t.Errorf("output = %q, want %q", got, "hello world")
	}

	sess, err = client.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sess.Stdout = io.Discard
	err = sess.Run("nosuchcommand")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 127 {
		t.Errorf("unknown command Run() = %v, want exit status 127", err)
	}
}

func TestInteractiveRequiresPty(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	client, err := dial(t, srv, protect.DefaultPassword)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sess.Stdout = io.Discard
	sess.Stderr = io.Discard
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell() error = %v", err)
	}
	if err := sess.Wait(); err == nil {
		t.Error("shell without a pty should exit non-zero")
	}
}

func TestInteractiveSession(t *testing.T) {
	t.Parallel()

	srv := startTestServer(t)
	client, err := dial(t, srv, protect.DefaultPassword)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := sess.RequestPty("xterm", 40, 120, gossh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty: %v", err)
	}
	var out bytes.Buffer
	sess.Stdout = &out
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("StdinPipe: %v", err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell() error = %v", err)
	}

	if _, err := io.WriteString(stdin, "echo from remote\rexit\r"); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("interactive session did not exit")
	}
	// Once echoed as typed, once as the command's output.
	if strings.Count(out.String(), "from remote") < 2 {
		t.Errorf("output missing command result:\n%s", out.String())
	}
}
