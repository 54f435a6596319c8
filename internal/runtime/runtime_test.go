// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"
	"testing"

	"github.com/pscli/pscli/internal/command"
)

func fakeLookPath(available ...string) LookPathFunc {
	return func(file string) (string, error) {
		if slices.Contains(available, file) {
			return file, nil
		}
		return "", exec.ErrNotFound
	}
}

func TestArgv(t *testing.T) {
	t.Parallel()

	all := fakeLookPath("powershell", "pwsh", "cscript", "cmd", "python3", "python", "sh")
	tests := []struct {
		name     string
		ext      string
		lookPath LookPathFunc
		want     []string
		wantErr  bool
	}{
		{"powershell", ".ps1", all, []string{"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", "p", "a", "-b"}, false},
		{"pwsh fallback", ".ps1", fakeLookPath("pwsh"), []string{"pwsh", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", "p", "a", "-b"}, false},
		{"vbs", ".vbs", all, []string{"cscript", "//nologo", "p", "a", "-b"}, false},
		{"batch", ".bat", all, []string{"cmd", "/c", "p", "a", "-b"}, false},
		{"cmd", ".CMD", all, []string{"cmd", "/c", "p", "a", "-b"}, false},
		{"python fallback", ".py", fakeLookPath("python"), []string{"python", "p", "a", "-b"}, false},
		{"exe direct", ".exe", fakeLookPath(), []string{"p", "a", "-b"}, false},
		{"missing interpreter", ".py", fakeLookPath(), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Argv("p", tt.ext, []string{"a", "-b"}, tt.lookPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Argv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInterpreterNotFound) {
					t.Errorf("error %v does not wrap ErrInterpreterNotFound", err)
				}
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Argv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistrySelect(t *testing.T) {
	t.Parallel()

	plain := BuildRegistry(BuildRegistryOptions{LookPath: fakeLookPath()}).Registry
	virtual := BuildRegistry(BuildRegistryOptions{VirtualShell: true, LookPath: fakeLookPath()}).Registry

	tests := []struct {
		name    string
		reg     *Registry
		handler command.Handler
		want    RuntimeType
	}{
		{"native", plain, command.Native{Func: func(context.Context, *command.Invocation) error { return nil }}, RuntimeTypeNative},
		{"external", plain, command.External{Path: "x.exe", Ext: ".exe"}, RuntimeTypeProcess},
		{"sh without virtual", plain, command.External{Path: "x.sh", Ext: ".sh"}, RuntimeTypeProcess},
		{"sh with virtual", virtual, command.External{Path: "x.sh", Ext: ".sh"}, RuntimeTypeVirtual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.reg.Select(&ExecutionContext{Name: "x", Handler: tt.handler})
			if err != nil || got != tt.want {
				t.Errorf("Select() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}

	if _, err := plain.Select(&ExecutionContext{Name: "x"}); err == nil {
		t.Error("Select() with nil handler should fail")
	}
}

func TestBuildRegistryDiagnostics(t *testing.T) {
	t.Parallel()

	res := BuildRegistry(BuildRegistryOptions{LookPath: fakeLookPath("cmd", "sh")})
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != CodeInterpreterMissing {
		t.Fatalf("Diagnostics = %+v", res.Diagnostics)
	}
	if !strings.Contains(res.Diagnostics[0].Message, ".ps1") || strings.Contains(res.Diagnostics[0].Message, ".bat") {
		t.Errorf("Message = %q", res.Diagnostics[0].Message)
	}
	if err := InitDiagnosticCode("bogus").Validate(); !errors.Is(err, ErrInvalidInitDiagnosticCode) {
		t.Errorf("Validate(bogus) = %v", err)
	}
}

func TestNativeRuntime(t *testing.T) {
	t.Parallel()

	reg := BuildRegistry(BuildRegistryOptions{LookPath: fakeLookPath()}).Registry

	var got []string
	ok := command.Native{Func: func(_ context.Context, inv *command.Invocation) error {
		got = inv.Args
		_, err := inv.Stdout.Write([]byte("hi"))
		return err
	}}
	var out bytes.Buffer
	ectx := &ExecutionContext{Context: context.Background(), Name: "ok", Handler: ok, Args: []string{"1", "two"}, Stdout: &out}
	if err := reg.Run(ectx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !slices.Equal(got, []string{"1", "two"}) || out.String() != "hi" {
		t.Errorf("args = %v, out = %q", got, out.String())
	}

	boom := command.Native{Func: func(context.Context, *command.Invocation) error { panic("kaboom") }}
	err := reg.Run(&ExecutionContext{Context: context.Background(), Name: "boom", Handler: boom})
	if !errors.Is(err, ErrNativePanic) || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("panic Run() = %v", err)
	}

	failing := command.Native{Func: func(context.Context, *command.Invocation) error { return errors.New("bad input") }}
	if err := reg.Run(&ExecutionContext{Context: context.Background(), Name: "f", Handler: failing}); err == nil || err.Error() != "bad input" {
		t.Errorf("failing Run() = %v", err)
	}

	if err := reg.Run(&ExecutionContext{Context: context.Background(), Name: "nil", Handler: command.Native{}}); err == nil {
		t.Error("native handler without a function should fail validation")
	}
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVirtualRuntime(t *testing.T) {
	t.Parallel()

	reg := BuildRegistry(BuildRegistryOptions{VirtualShell: true}).Registry
	script := writeScript(t, "greet.sh", "echo \"hello $1 $#\"\nexit 3\n")

	var out bytes.Buffer
	ectx := &ExecutionContext{
		Context: context.Background(),
		Name:    "greet",
		Handler: command.External{Path: script, Ext: ".sh"},
		Args:    []string{"-v", "x"},
		Stdout:  &out,
		Stderr:  &bytes.Buffer{},
	}
	err := reg.Run(ectx)
	var ece *ExitCodeError
	if !errors.As(err, &ece) || ece.Code != 3 {
		t.Fatalf("Run() = %v, want exit 3", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello -v 2" {
		t.Errorf("output = %q", got)
	}

	bad := writeScript(t, "bad.sh", "if then fi (\n")
	ectx.Handler = command.External{Path: bad, Ext: ".sh"}
	if err := reg.Run(ectx); err == nil || !strings.Contains(err.Error(), "syntax") {
		t.Errorf("syntax error Run() = %v", err)
	}
}

func TestProcessRuntime_WaitAndDetached(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	t.Parallel()

	reg := BuildRegistry(BuildRegistryOptions{}).Registry
	script := writeScript(t, "x.sh", "echo \"$@\"\n")

	var out bytes.Buffer
	ectx := &ExecutionContext{
		Context: context.Background(),
		Name:    "x",
		Handler: command.External{Path: script, Ext: ".sh"},
		Launch:  command.LaunchWait,
		Args:    []string{"a b", "c"},
		Stdout:  &out,
		Stderr:  &bytes.Buffer{},
	}
	if err := reg.Run(ectx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "a b c" {
		t.Errorf("output = %q", got)
	}

	dir := t.TempDir()
	detached := &ExecutionContext{
		Context: context.Background(),
		Name:    "x",
		Handler: command.External{Path: script, Ext: ".sh"},
		Launch:  command.LaunchDetached,
		Dir:     dir,
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}
	res := reg.Execute(detached)
	if !res.Success() || res.PID == 0 {
		t.Fatalf("detached Execute() = %+v", res)
	}
}

func TestFilterEnv(t *testing.T) {
	t.Parallel()

	got := FilterEnv([]string{"PATH=/bin", "PSCLI_MAINTE_PASS=s3cret", "HOME=/h", "MALFORMED"})
	if !slices.Equal(got, []string{"PATH=/bin", "HOME=/h", "MALFORMED"}) {
		t.Errorf("FilterEnv() = %v", got)
	}
}
