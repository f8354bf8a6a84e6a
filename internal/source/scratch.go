// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Cleaner tracks scratch directories and removes all of them on
// Close. Use it with defer right after construction so removal happens on
// every exit path:
//
//	cleaner := source.NewCleaner()
//	defer func() { _ = cleaner.Close() }()
//	dir, err := cleaner.MkdirTemp("raincoat-*")
type Cleaner struct {
	mu   sync.Mutex
	dirs []string
}

// NewCleaner creates an empty Cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// MkdirTemp creates a new scratch directory and registers it for removal.
func (c *Cleaner) MkdirTemp(pattern string) (string, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	c.mu.Lock()
	c.dirs = append(c.dirs, dir)
	c.mu.Unlock()
	return dir, nil
}

// Close removes every registered directory. It attempts all removals and
// returns the joined errors.
func (c *Cleaner) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, d := range c.dirs {
		if err := os.RemoveAll(d); err != nil {
			errs = append(errs, err)
		}
	}
	c.dirs = nil
	return errors.Join(errs...)
}
