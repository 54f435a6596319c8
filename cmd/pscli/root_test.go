// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/testutil"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{}))
	for _, name := range []string{"list", "run", "protect", "history", "serve", "config", "issue"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
	for _, flag := range []string{"verbose", "config", "watch", "strict", "output"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
	if got := root.PersistentFlags().Lookup("output").DefValue; got != "table" {
		t.Errorf("--output default = %q, want table", got)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{"code only", &ExitError{Code: 3}, "exit status 3"},
		{"wrapped", &ExitError{Code: 1, Err: inner}, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
	if !errors.Is(&ExitError{Code: 1, Err: inner}, inner) {
		t.Error("ExitError does not unwrap to its cause")
	}
}

// cliEnv points pscli at empty temporary home and root directories.
func cliEnv(t *testing.T) (home string) {
	t.Helper()
	home = t.TempDir()
	root := t.TempDir()
	testutil.MustMkdirAll(t, filepath.Join(root, config.DefaultPluginsFolder), 0o755)
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvRoot, root)
	return home
}

func runCLI(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(Dependencies{Stdout: &out, Stderr: &errOut})
	root := NewRootCommand(app)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(app.routeArgs(t.Context(), root, args))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRunUnknownCommandExitCode(t *testing.T) {
	cliEnv(t)

	_, err := runCLI(t, "run", "definitely-not-a-command")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.Code != 127 {
		t.Errorf("exit code = %d, want 127", exitErr.Code)
	}
}

func TestBareUnknownCommandIsLenient(t *testing.T) {
	cliEnv(t)

	if _, err := runCLI(t, "definitely-not-a-command"); err != nil {
		t.Fatalf("bare form without --strict returned %v", err)
	}
	_, err := runCLI(t, "--strict", "definitely-not-a-command")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 127 {
		t.Fatalf("--strict err = %v, want exit 127", err)
	}
}

func TestBareFormReachesPluginNamedLikeSubcommand(t *testing.T) {
	cliEnv(t)
	plugins := filepath.Join(os.Getenv(config.EnvRoot), config.DefaultPluginsFolder)
	testutil.MustWriteFile(t, filepath.Join(plugins, "list.lua"),
		`command{ name = "list", run = function(...) print("plugin list:", ...) end }`)

	out, err := runCLI(t, "list", "games")
	if err != nil {
		t.Fatalf("bare list: %v", err)
	}
	if !strings.Contains(out, "plugin list:") || !strings.Contains(out, "games") {
		t.Errorf("bare list did not reach the plugin:\n%s", out)
	}

	// history is a built-in and a subcommand; the subcommand keeps it.
	app := NewApp(Dependencies{})
	root := NewRootCommand(app)
	if got := app.routeArgs(t.Context(), root, []string{"history"}); !slices.Equal(got, []string{"history"}) {
		t.Errorf("routeArgs(history) = %q", got)
	}
	if got := app.routeArgs(t.Context(), root, []string{"-o", "plain", "list", "x"}); !slices.Equal(got, []string{"-o", "plain", "--", "list", "x"}) {
		t.Errorf("routeArgs(-o plain list x) = %q", got)
	}
	if got := app.routeArgs(t.Context(), root, []string{"--", "list"}); !slices.Equal(got, []string{"--", "list"}) {
		t.Errorf("explicit -- rewritten: %q", got)
	}
}

func TestListCommand(t *testing.T) {
	cliEnv(t)

	out, err := runCLI(t, "-o", "plain", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "passwd") {
		t.Errorf("list output missing passwd builtin:\n%s", out)
	}

	if _, err := runCLI(t, "list", "no-such-group"); err == nil {
		t.Error("list of an unknown group succeeded")
	}
}

func TestConfigPathAndInit(t *testing.T) {
	home := cliEnv(t)
	want := filepath.Join(home, "settings", config.SettingsFileName)

	out, err := runCLI(t, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), want)
	}

	if _, err := runCLI(t, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	out, err = runCLI(t, "config", "init")
	if err != nil {
		t.Fatalf("second config init: %v", err)
	}
	if !strings.Contains(out, "already exist") {
		t.Errorf("second init output = %q, want already-exists notice", out)
	}
}

func TestConfigShowMasksMaintePassword(t *testing.T) {
	home := cliEnv(t)
	path := filepath.Join(home, "settings", config.SettingsFileName)
	testutil.MustWriteFile(t, path, `{"security":{"mainte_password":"hunter2"}}`)

	out, err := runCLI(t, "-o", "json", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Errorf("config show leaked the maintenance password:\n%s", out)
	}
}

func TestIssueCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := newIssueCommand(NewApp(Dependencies{Stdout: &out}))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.Contains(out.String(), "incorrect-password") {
		t.Errorf("issue list missing incorrect-password:\n%s", out.String())
	}

	cmd = newIssueCommand(NewApp(Dependencies{Stdout: &out}))
	cmd.SetArgs([]string{"nope"})
	if err := cmd.Execute(); err == nil {
		t.Error("unknown issue slug succeeded")
	}
}
