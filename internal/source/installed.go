// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// SitePackages reads files of distributions installed in local
// site-packages directories. Directories are searched in order and the
// first one holding the distribution wins.
type SitePackages struct {
	dirs []string
}

// NewSitePackages creates a reader over the given site-packages directories.
func NewSitePackages(dirs ...string) *SitePackages {
	return &SitePackages{dirs: dirs}
}

// NormalizeName applies PEP 503 normalization to a distribution name.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}

// Version returns the installed version of pkg.
func (s *SitePackages) Version(pkg string) (string, error) {
	_, version, err := s.locate(pkg)
	return version, err
}

// Read returns the requested paths, relative to the site-packages
// directory where pkg is installed.
func (s *SitePackages) Read(pkg string, paths []string) (map[string]Text, error) {
	root, _, err := s.locate(pkg)
	if err != nil {
		return nil, err
	}

	out := notFoundFor(paths)
	for _, p := range uniquePaths(paths) {
		data, readErr := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		switch {
		case readErr == nil:
			out[p] = Found(string(data))
		case errors.Is(readErr, fs.ErrNotExist):
			continue
		default:
			return nil, fmt.Errorf("reading installed file %s: %w", p, readErr)
		}
	}
	return out, nil
}

// locate finds the site-packages directory holding pkg and the installed version.
func (s *SitePackages) locate(pkg string) (dir, version string, err error) {
	want := NormalizeName(pkg)
	for _, dir := range s.dirs {
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			if errors.Is(readErr, fs.ErrNotExist) {
				continue
			}
			return "", "", fmt.Errorf("listing %s: %w", dir, readErr)
		}
		for _, e := range entries {
			base, ok := strings.CutSuffix(e.Name(), ".dist-info")
			if !ok || !e.IsDir() {
				continue
			}
			name, ver, ok := strings.Cut(base, "-")
			if ok && NormalizeName(name) == want {
				return dir, ver, nil
			}
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotInstalled, pkg)
}
