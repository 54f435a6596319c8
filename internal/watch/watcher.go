// SPDX-License-Identifier: MPL-2.0

// Package watch reloads the dispatcher when scanned folders change.
//
// Each folder is watched without recursion, matching how discovery reads
// them. Events within the debounce window are coalesced so the callback
// fires once with the full set of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/pscli/pscli/internal/config"
	"github.com/pscli/pscli/internal/discovery"
)

// defaultDebounce is the delay before firing OnChange after the last event.
const defaultDebounce = 500 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores are matched against base names and always apply.
var defaultIgnores = []string{
	discovery.ReservedPrefix + "*",
	"*.swp",
	"*.swo",
	"*~",
	".DS_Store",
	"*.tmp",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dirs are watched non-recursively. Folders that do not exist yet
		// are picked up once they are created inside a watched folder.
		Dirs []string

		// Patterns are doublestar globs matched against the base name of a
		// changed file. An empty slice accepts every non-ignored file.
		Patterns []string

		// Ignore are extra base-name globs merged with the defaults.
		Ignore []string

		// Debounce is the quiet period before OnChange fires. Zero or
		// negative values fall back to defaultDebounce.
		Debounce time.Duration

		// OnChange receives the deduplicated absolute paths that changed.
		OnChange func(ctx context.Context, changed []string) error

		Logger *slog.Logger
	}

	// Watcher fires a debounced callback when files in its folders change.
	// Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		logger   *slog.Logger
		debounce time.Duration
		started  atomic.Bool

		dirMu   sync.Mutex
		dirs    map[string]struct{}
		missing map[string]struct{}
	}
)

// SourcePatterns returns the globs for every scanned extension plus the
// metadata and settings JSON files.
func SourcePatterns() []string {
	return []string{"*.{lua,bat,cmd,ps1,exe,vbs,sh,py,json}"}
}

// Targets lists the folders a reload depends on: every scanned folder, the
// metadata folder and the settings folder.
func Targets(p config.Paths) []string {
	dirs := discovery.NewScanner(p.Root, p.Plugins).Dirs()
	dirs = append(dirs, p.Metadata)
	if p.Settings != "" {
		dirs = append(dirs, filepath.Dir(p.Settings))
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}

// New creates a Watcher and registers every existing folder of cfg.Dirs.
func New(cfg Config) (*Watcher, error) {
	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		logger:   logger,
		debounce: debounce,
		dirs:     make(map[string]struct{}, len(cfg.Dirs)),
		missing:  make(map[string]struct{}),
	}

	for _, dir := range cfg.Dirs {
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			fsw.Close() //nolint:errcheck // best-effort cleanup
			return nil, fmt.Errorf("watch: resolve %q: %w", dir, absErr)
		}
		w.dirs[abs] = struct{}{}
		if addErr := w.add(abs); addErr != nil {
			fsw.Close() //nolint:errcheck // best-effort cleanup
			return nil, addErr
		}
	}
	return w, nil
}

// Watched returns the folders currently registered with fsnotify.
func (w *Watcher) Watched() []string {
	list := w.fsw.WatchList()
	slices.Sort(list)
	return list
}

// Run blocks until ctx is cancelled, processing events and dispatching
// debounced callbacks. It returns nil on cancellation and an error when the
// underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after ctx is done because it is scheduled by AfterFunc.
	// Only one callback runs at a time; a busy fire reschedules itself.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("reload still running, retrying later")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		w.logger.Debug("change detected", "files", len(changed))
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("reload after change failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify", "error", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if !w.relevant(evt) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if watcherExhausted(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// relevant reports whether evt should schedule the callback. A configured
// folder appearing or disappearing always counts; files are filtered by
// the ignore and watch patterns.
func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
		return false
	}
	if w.isConfigured(evt.Name) {
		if evt.Has(fsnotify.Create) {
			w.retryMissing()
		} else if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
			w.markMissing(evt.Name)
		}
		return true
	}
	if evt.Has(fsnotify.Create) {
		w.retryMissing()
	}

	base := filepath.Base(evt.Name)
	if w.isIgnored(base) {
		return false
	}
	return w.matchesPatterns(base)
}

// add registers dir, or remembers it as missing when it does not exist.
func (w *Watcher) add(dir string) error {
	w.dirMu.Lock()
	defer w.dirMu.Unlock()

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("watch folder unreadable", "path", dir, "error", err)
		}
		w.missing[dir] = struct{}{}
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		if watcherExhausted(err) {
			return fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
		w.logger.Warn("cannot watch folder", "path", dir, "error", err)
		w.missing[dir] = struct{}{}
		return nil
	}
	delete(w.missing, dir)
	return nil
}

func (w *Watcher) retryMissing() {
	w.dirMu.Lock()
	dirs := slices.Collect(maps.Keys(w.missing))
	w.dirMu.Unlock()
	for _, dir := range dirs {
		if err := w.add(dir); err != nil {
			w.logger.Warn("cannot watch new folder", "path", dir, "error", err)
		}
	}
}

func (w *Watcher) markMissing(dir string) {
	w.dirMu.Lock()
	w.missing[dir] = struct{}{}
	w.dirMu.Unlock()
}

func (w *Watcher) isConfigured(path string) bool {
	_, ok := w.dirs[path]
	return ok
}

func (w *Watcher) isIgnored(base string) bool {
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, base); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matchesPatterns(base string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	for _, pat := range w.cfg.Patterns {
		if matched, err := doublestar.Match(pat, base); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
