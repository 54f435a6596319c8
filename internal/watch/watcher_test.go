// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pscli/pscli/internal/config"
)

type collector struct {
	mu      sync.Mutex
	calls   int
	changed []string
	fired   chan struct{}
}

func newCollector() *collector {
	return &collector{fired: make(chan struct{}, 16)}
}

func (c *collector) onChange(_ context.Context, changed []string) error {
	c.mu.Lock()
	c.calls++
	c.changed = append(c.changed, changed...)
	c.mu.Unlock()
	c.fired <- struct{}{}
	return nil
}

func (c *collector) snapshot() (int, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, slices.Clone(c.changed)
}

func startWatcher(t *testing.T, cfg Config) (cancel func()) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	return func() {
		stop()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	}
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCollector()
	stop := startWatcher(t, Config{
		Dirs:     []string{dir},
		Patterns: SourcePatterns(),
		Debounce: 100 * time.Millisecond,
		OnChange: c.onChange,
	})
	defer stop()

	for _, name := range []string{"a.lua", "b.bat", "c.json"} {
		write(t, filepath.Join(dir, name))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-c.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(200 * time.Millisecond)

	calls, changed := c.snapshot()
	if calls != 1 {
		t.Errorf("expected 1 debounced callback, got %d", calls)
	}
	for _, name := range []string{"a.lua", "b.bat", "c.json"} {
		if !slices.Contains(changed, filepath.Join(dir, name)) {
			t.Errorf("expected %q in changed files, got %v", name, changed)
		}
	}
}

func TestWatcherFiltersPatternsAndIgnores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := newCollector()
	stop := startWatcher(t, Config{
		Dirs:     []string{dir},
		Patterns: SourcePatterns(),
		Debounce: 50 * time.Millisecond,
		OnChange: c.onChange,
	})
	defer stop()

	write(t, filepath.Join(dir, "notes.txt"))
	write(t, filepath.Join(dir, "__init__.lua"))
	write(t, filepath.Join(dir, "calc.lua.swp"))

	select {
	case <-c.fired:
		_, changed := c.snapshot()
		t.Fatalf("callback fired for filtered files: %v", changed)
	case <-time.After(400 * time.Millisecond):
	}

	write(t, filepath.Join(dir, "calc.lua"))
	select {
	case <-c.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	if _, changed := c.snapshot(); !slices.Equal(changed, []string{filepath.Join(dir, "calc.lua")}) {
		t.Errorf("changed = %v", changed)
	}
}

func TestWatcherNotRecursive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	c := newCollector()
	stop := startWatcher(t, Config{
		Dirs:     []string{dir},
		Patterns: SourcePatterns(),
		Debounce: 50 * time.Millisecond,
		OnChange: c.onChange,
	})
	defer stop()

	write(t, filepath.Join(sub, "deep.lua"))
	select {
	case <-c.fired:
		_, changed := c.snapshot()
		t.Fatalf("callback fired for nested file: %v", changed)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherPicksUpCreatedFolder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	plugins := filepath.Join(root, "plugins")
	w, err := New(Config{
		Dirs:     []string{root, plugins},
		Patterns: SourcePatterns(),
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := w.Watched(); !slices.Equal(got, []string{root}) {
		t.Fatalf("Watched() = %v, want only the existing root", got)
	}

	c := newCollector()
	w.cfg.OnChange = c.onChange
	w.debounce = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	}()

	if err := os.Mkdir(plugins, 0o755); err != nil {
		t.Fatal(err)
	}
	select {
	case <-c.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for folder creation callback")
	}

	write(t, filepath.Join(plugins, "calc.lua"))
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-c.fired:
			if _, changed := c.snapshot(); slices.Contains(changed, filepath.Join(plugins, "calc.lua")) {
				return
			}
		case <-deadline:
			_, changed := c.snapshot()
			t.Fatalf("new folder not watched; changed = %v", changed)
		}
	}
}

func TestWatcherContextCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dirs: []string{t.TempDir()}, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcherRunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dirs: []string{t.TempDir()}, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	// Give the first Run a moment to claim the watcher.
	time.Sleep(20 * time.Millisecond)

	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	<-done
}

func TestWatcherInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Patterns: []string{"[unclosed"}}); err == nil {
		t.Error("New() with invalid watch pattern should fail")
	}
	if _, err := New(Config{Ignore: []string{"{a,b"}}); err == nil {
		t.Error("New() with invalid ignore pattern should fail")
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	w := &Watcher{ignores: DefaultIgnores()}
	tests := map[string]bool{
		"__init__.lua": true,
		"calc.lua.swp": true,
		"calc.lua~":    true,
		".DS_Store":    true,
		"calc.lua":     false,
		"backup.ps1":   false,
	}
	for name, want := range tests {
		if got := w.isIgnored(name); got != want {
			t.Errorf("isIgnored(%q) = %v, want %v", name, got, want)
		}
	}

	got := DefaultIgnores()
	got[0] = "mutated"
	if defaultIgnores[0] == "mutated" {
		t.Error("DefaultIgnores() must return a copy")
	}
}

func TestTargets(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/r")
	p := config.Paths{
		Root:     root,
		Plugins:  filepath.Join(root, "plugins"),
		Metadata: filepath.Join(root, "metadata"),
		Settings: filepath.Join(root, "settings", "terminal.json"),
	}
	got := Targets(p)
	for _, want := range []string{
		root,
		filepath.Join(root, "plugins"),
		filepath.Join(root, "games"),
		filepath.Join(root, "install"),
		filepath.Join(root, "metadata"),
		filepath.Join(root, "settings"),
	} {
		if !slices.Contains(got, want) {
			t.Errorf("Targets() missing %q: %v", want, got)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("Targets() not sorted: %v", got)
	}
}
