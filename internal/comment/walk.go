// SPDX-License-Identifier: MPL-2.0

package comment

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

// defaultIgnores lists directories that never hold code to scan.
var defaultIgnores = []string{
	"**/.git",
	"**/__pycache__",
}

type (
	// File is one source file read by the walker.
	File struct {
		Path string
		Text string
	}

	// Walker lists the Python files below a root, honoring exclude globs.
	Walker struct {
		exclude []string
		logger  *log.Logger
	}
)

// NewWalker creates a Walker. Exclude patterns are doublestar globs
// matched against the slash-separated path and against every trailing
// part of it, so "*ignored*" excludes app/ignored.py and "app/*.py"
// excludes root/app/main.py.
func NewWalker(exclude []string, logger *log.Logger) (*Walker, error) {
	if err := ValidatePatterns(exclude); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	patterns := make([]string, 0, len(defaultIgnores)+len(exclude))
	patterns = append(patterns, defaultIgnores...)
	for _, p := range exclude {
		patterns = append(patterns, strings.TrimSuffix(filepath.ToSlash(filepath.Clean(p)), "/"))
	}
	return &Walker{exclude: patterns, logger: logger}, nil
}

// ValidatePatterns checks that every exclude pattern is a valid glob.
func ValidatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pat)) {
			return fmt.Errorf("invalid exclude pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// Walk yields every *.py file below root in lexical order. A root that is
// a file is yielded as is. Files that are not valid UTF-8 are skipped
// with a warning. An I/O error is yielded and the walk goes on.
func (w *Walker) Walk(root string) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			yield(File{}, fmt.Errorf("reading %s: %w", root, err))
			return
		}
		if !info.IsDir() {
			if f, ok, err := w.read(root); err != nil || ok {
				yield(f, err)
			}
			return
		}

		stopped := false
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(File{}, err) {
					stopped = true
					return filepath.SkipAll
				}
				return nil
			}
			if path != root && w.isExcluded(root, path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".py") {
				return nil
			}

			f, ok, readErr := w.read(path)
			if readErr == nil && !ok {
				return nil
			}
			if !yield(f, readErr) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil && !stopped {
			yield(File{}, walkErr)
		}
	}
}

// read loads one file. ok is false when the file was skipped.
func (w *Walker) read(path string) (File, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return File{}, false, nil
		}
		return File{}, false, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		w.logger.Warn("unable to read non-utf-8 file", "file", path)
		return File{}, false, nil
	}
	return File{Path: filepath.Clean(path), Text: string(data)}, true, nil
}

func (w *Walker) isExcluded(root, path string) bool {
	return Excluded(w.exclude, root, path)
}

// Excluded reports whether any of patterns matches path, or a trailing
// part of it, or path relative to root.
func Excluded(patterns []string, root, path string) bool {
	candidates := suffixes(filepath.ToSlash(filepath.Clean(path)))
	if rel, err := filepath.Rel(root, path); err == nil {
		candidates = append(candidates, filepath.ToSlash(rel))
	}

	for _, pat := range patterns {
		pat = strings.TrimSuffix(filepath.ToSlash(pat), "/")
		for _, candidate := range candidates {
			if matched, matchErr := doublestar.Match(pat, candidate); matchErr == nil && matched {
				return true
			}
		}
	}
	return false
}

// suffixes returns p and every part of p following a slash.
func suffixes(p string) []string {
	out := []string{p}
	for i := range len(p) {
		if p[i] == '/' && i+1 < len(p) {
			out = append(out, p[i+1:])
		}
	}
	return out
}
