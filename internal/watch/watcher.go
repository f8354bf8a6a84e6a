// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when Python sources change.
//
// Every directory below the root is monitored. Events on *.py files that
// are not excluded are collected, and once no event arrived for the
// debounce period the callback fires once with the whole set.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/raincoat-go/raincoat/internal/comment"
)

// defaultDebounce lets an editor's write-then-rename settle into one run.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are never watched, whatever the exclude patterns say.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.venv/**",
	"**/__pycache__/**",
	"**/.tox/**",
	"**/*.swp",
	"**/*~",
}

// ErrAlreadyRunning is returned when Run is called a second time.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the directory watched. Empty means the working directory.
		Root string
		// Exclude holds doublestar patterns matched the way the check
		// walker matches them.
		Exclude []string
		// Debounce is the quiet period after the last event before the
		// callback fires. Zero or negative values fall back to 500ms.
		Debounce time.Duration
		// OnChange receives the sorted paths, relative to Root, changed
		// since the previous call. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error
		Logger   *log.Logger
	}

	// Watcher monitors a source tree. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		root     string
		started  atomic.Bool
	}
)

// New creates a Watcher and registers every directory below the root that
// is not ignored.
func New(cfg Config) (*Watcher, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	if err := comment.ValidatePatterns(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Clone(defaultIgnores),
		logger:   logger,
		debounce: debounce,
		root:     absRoot,
	}
	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("closing watcher after init failure", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is canceled. It returns nil on
// cancellation and an error when the watcher breaks down.
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

	// fire runs at most one callback at a time. A busy callback pushes the
	// pending set to the next debounce period instead of dropping it.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, postponing")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}

		w.logger.Debug("sources changed", "files", changed)
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("re-run failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			rel, ok := w.relevant(evt.Name)
			if !ok {
				continue
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// relevant reports whether an event on path concerns a watched Python
// file, and returns its path relative to the root.
func (w *Watcher) relevant(path string) (string, bool) {
	if !strings.HasSuffix(path, ".py") {
		return "", false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.isIgnored(rel, path) {
		return "", false
	}
	return rel, true
}

// addDirectories registers the root and every directory below it that is
// not ignored. Unreadable directories are skipped with a warning.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("not watching inaccessible path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.isIgnoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || w.isIgnoredDir(path) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("not watching new directory", "path", path, "err", err)
	}
}

func (w *Watcher) isIgnoredDir(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return w.isIgnored(rel, path) || w.isIgnored(rel+"/", path)
}

func (w *Watcher) isIgnored(rel, path string) bool {
	full := filepath.ToSlash(filepath.Clean(path))
	for _, pat := range w.ignores {
		for _, candidate := range []string{rel, full} {
			if matched, err := doublestar.Match(pat, candidate); err == nil && matched {
				return true
			}
		}
	}
	return comment.Excluded(w.cfg.Exclude, w.root, path)
}
