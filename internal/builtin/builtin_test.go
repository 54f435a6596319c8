// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/pscli/pscli/internal/command"
	"github.com/pscli/pscli/internal/history"
	"github.com/pscli/pscli/internal/protect"
	"github.com/pscli/pscli/internal/testutil"

	"golang.org/x/crypto/bcrypt"
)

type (
	fixture struct {
		deps   Deps
		cmds   map[string]command.Descriptor
		runner command.ModuleRunner
	}

	staticHistory []history.Entry

	recordingRunner struct {
		modules []string
		args    [][]string
	}
)

func (r *recordingRunner) RunModule(_ context.Context, module string, inv *command.Invocation) error {
	r.modules = append(r.modules, module)
	r.args = append(r.args, inv.Args)
	fmt.Fprintf(inv.Stdout, "ran %s\n", module)
	return nil
}

func (h staticHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	if limit > len(h) {
		limit = len(h)
	}
	return h[:limit], nil
}

func newFixture(t *testing.T, hist HistoryReader) *fixture {
	t.Helper()
	dir := t.TempDir()
	deps := Deps{
		Protected: protect.NewProtectedStore(filepath.Join(dir, "protected.json")),
		Passwords: protect.NewPasswordStore(filepath.Join(dir, "haslo.txt")).WithCost(bcrypt.MinCost),
		History:   hist,
		Location:  time.UTC,
	}
	f := &fixture{deps: deps, cmds: map[string]command.Descriptor{}}
	for _, d := range Commands(deps) {
		f.cmds[d.Name] = d
	}
	return f
}

// run calls a builtin with an optional prompter and returns its output.
func (f *fixture) run(t *testing.T, name string, p protect.Prompter, args ...string) (string, error) {
	t.Helper()
	d, ok := f.cmds[name]
	if !ok {
		t.Fatalf("builtin %q not registered", name)
	}
	var out bytes.Buffer
	ctx := protect.WithPrompter(context.Background(), p)
	if f.runner != nil {
		ctx = command.WithModuleRunner(ctx, f.runner)
	}
	err := d.Handler.(command.Native).Func(ctx, &command.Invocation{Args: args, Stdout: &out, Stderr: &out})
	return out.String(), err
}

func TestCommands_Metadata(t *testing.T) {
	t.Parallel()

	f := newFixture(t, staticHistory{})
	pw, ok := f.cmds["passwd"]
	if !ok {
		t.Fatal("passwd missing")
	}
	if pw.Meta.Group != "system" || pw.Meta.Category != "security" || pw.Meta.Author != Author {
		t.Errorf("passwd meta = %+v", pw.Meta)
	}
	if !slices.Equal(pw.Meta.Aliases, []string{"password", "pass"}) {
		t.Errorf("passwd aliases = %v", pw.Meta.Aliases)
	}
	if pw.Provenance != command.ProvenanceBuiltin {
		t.Errorf("provenance = %v", pw.Provenance)
	}
	if _, ok := f.cmds["history"]; !ok {
		t.Error("history missing")
	}

	if got := Commands(Deps{}); len(got) != 0 {
		t.Errorf("Commands() without deps = %v", got)
	}
}

func TestPasswd_ProtectListUnprotect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if _, err := f.run(t, "passwd", nil, "LINK", "Calc", "net"); err != nil {
		t.Fatalf("protect: %v", err)
	}
	out, err := f.run(t, "passwd", nil, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "- calc") || !strings.Contains(out, "- net") || !strings.Contains(out, "(none)") {
		t.Errorf("list output:\n%s", out)
	}

	if _, err := f.run(t, "passwd", nil, "unprotect", "calc"); !errors.Is(err, ErrNoPrompter) {
		t.Errorf("unprotect without a prompter = %v", err)
	}
	if _, err := f.run(t, "passwd", testutil.NewFakePrompter("wrong"), "unprotect", "calc"); !errors.Is(err, protect.ErrAuthFailed) {
		t.Errorf("unprotect with a wrong password = %v", err)
	}
	if _, err := f.run(t, "passwd", testutil.NewFakePrompter(protect.DefaultPassword), "unlink", "calc"); err != nil {
		t.Fatalf("unprotect: %v", err)
	}
	got, _ := f.deps.Protected.Commands()
	if !slices.Equal(got, []string{"net"}) {
		t.Errorf("protected = %v", got)
	}

	if _, err := f.run(t, "passwd", testutil.NewFakePrompter(protect.DefaultPassword), "clear"); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.deps.Protected.Commands(); len(got) != 0 {
		t.Errorf("after clear = %v", got)
	}
}

func TestPasswd_ProtectModules(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if _, err := f.run(t, "passwd", nil, "protect-mod", "Games", "calc"); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.deps.Protected.Modules(); !slices.Equal(got, []string{"calc", "games"}) {
		t.Fatalf("modules = %v", got)
	}
	if cmds, _ := f.deps.Protected.Commands(); len(cmds) != 0 {
		t.Errorf("protect-mod touched the command set: %v", cmds)
	}

	if _, err := f.run(t, "passwd", testutil.NewFakePrompter("wrong"), "unprotect-mod", "games"); !errors.Is(err, protect.ErrAuthFailed) {
		t.Errorf("unprotect-mod with a wrong password = %v", err)
	}
	out, err := f.run(t, "passwd", testutil.NewFakePrompter(protect.DefaultPassword), "unprotect-mod", "games")
	if err != nil || !strings.Contains(out, "Unprotected modules: games") {
		t.Fatalf("unprotect-mod = %v, output %q", err, out)
	}
	if got, _ := f.deps.Protected.Modules(); !slices.Equal(got, []string{"calc"}) {
		t.Errorf("modules after unprotect-mod = %v", got)
	}
}

func TestPasswd_RunModule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		protected bool
		replies   []string
		wantErr   error
		wantRun   bool
		wantCalls int
	}{
		{"unprotected runs without a prompt", false, nil, nil, true, 0},
		{"protected with the right password", true, []string{protect.DefaultPassword}, nil, true, 1},
		{"protected with a wrong password", true, []string{"wrong", protect.DefaultPassword}, protect.ErrAuthFailed, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			runner := &recordingRunner{}
			f.runner = runner
			if tt.protected {
				if err := f.deps.Protected.ProtectModule("calc"); err != nil {
					t.Fatal(err)
				}
			}
			p := testutil.NewFakePrompter(tt.replies...)
			out, err := f.run(t, "passwd", p, "mod", "Calc", "1", "+", "2")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("mod error = %v, want %v", err, tt.wantErr)
			}
			if p.Calls() != tt.wantCalls {
				t.Errorf("prompted %d times, want %d", p.Calls(), tt.wantCalls)
			}
			if !strings.Contains(out, "=== RUN MODULE: calc ===") {
				t.Errorf("output missing header: %q", out)
			}
			if ran := len(runner.modules) == 1; ran != tt.wantRun {
				t.Fatalf("module ran = %v, want %v", ran, tt.wantRun)
			}
			if tt.wantRun && !slices.Equal(runner.args[0], []string{"1", "+", "2"}) {
				t.Errorf("module args = %v", runner.args[0])
			}
			var authErr *protect.AuthError
			if errors.As(err, &authErr) && authErr.Name != "calc" {
				t.Errorf("AuthError.Name = %q", authErr.Name)
			}
		})
	}
}

func TestPasswd_RunModuleOutsideDispatcher(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if _, err := f.run(t, "passwd", nil, "mod", "calc"); !errors.Is(err, ErrNoModuleRunner) {
		t.Errorf("mod without a runner = %v", err)
	}
	if _, err := f.run(t, "passwd", nil, "mod"); !errors.Is(err, ErrUsage) {
		t.Errorf("mod without a name = %v", err)
	}
}

func TestPasswd_Change(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		replies []string
		wantErr error
		newPass string
	}{
		{"success after a miss", []string{"bad", protect.DefaultPassword, "s3cret", "s3cret"}, nil, "s3cret"},
		{"mismatch", []string{protect.DefaultPassword, "a", "b"}, ErrPasswordMismatch, protect.DefaultPassword},
		{"blocked", []string{"x", "y", "z"}, ErrAccessDenied, protect.DefaultPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			_, err := f.run(t, "passwd", testutil.NewFakePrompter(tt.replies...), "change")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("change error = %v, want %v", err, tt.wantErr)
			}
			if ok, _ := f.deps.Passwords.Verify(tt.newPass); !ok {
				t.Errorf("password %q not in effect", tt.newPass)
			}
		})
	}
}

func TestPasswd_ResetAndLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if err := f.deps.Passwords.Set("other"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.run(t, "passwd", testutil.NewFakePrompter("other"), "reset"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ok, _ := f.deps.Passwords.Verify(protect.DefaultPassword); !ok {
		t.Error("reset did not restore the default")
	}

	p := testutil.NewFakePrompter("a", "b", "c")
	if _, err := f.run(t, "passwd", p); !errors.Is(err, ErrAccessDenied) || p.Calls() != 3 {
		t.Errorf("login = %v after %d prompts", err, p.Calls())
	}
	out, err := f.run(t, "passwd", testutil.NewFakePrompter("x", protect.DefaultPassword))
	if err != nil || !strings.Contains(out, "Access granted.") || !strings.Contains(out, "2 tries left") {
		t.Errorf("login = %v, output %q", err, out)
	}
}

func TestPasswd_Usage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for _, args := range [][]string{{"protect"}, {"frobnicate"}} {
		if _, err := f.run(t, "passwd", nil, args...); !errors.Is(err, ErrUsage) {
			t.Errorf("passwd %v = %v, want ErrUsage", args, err)
		}
	}
	out, err := f.run(t, "passwd", nil, "?")
	if err != nil || !strings.Contains(out, "protect | link") {
		t.Errorf("help = %v, %q", err, out)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, staticHistory{
		{Trigger: "calc", Name: "run_calculator", Args: []string{"2", "3"}, Outcome: "ran", StartedAt: at},
		{Trigger: "nope", Outcome: "unknown", StartedAt: at.Add(-time.Minute)},
	})

	out, err := f.run(t, "history", nil, "1")
	if err != nil {
		t.Fatal(err)
	}
	if want := "2026-10-19 12:00:00  ran      calc (run_calculator) 2 3\n"; out != want {
		t.Errorf("history 1 = %q, want %q", out, want)
	}
	if _, err := f.run(t, "history", nil, "zero"); !errors.Is(err, ErrUsage) {
		t.Errorf("bad count = %v", err)
	}

	empty := newFixture(t, staticHistory{})
	if out, _ := empty.run(t, "history", nil); !strings.Contains(out, "No history yet.") {
		t.Errorf("empty history = %q", out)
	}
}
