// SPDX-License-Identifier: MPL-2.0

package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleaner_RemovesEverything(t *testing.T) {
	t.Parallel()

	c := NewCleaner()
	var dirs []string
	for range 2 {
		dir, err := c.MkdirTemp("raincoat-test-*")
		if err != nil {
			t.Fatalf("MkdirTemp: %v", err)
		}
		writeFile(t, filepath.Join(dir, "inner.txt"), []byte("x"))
		dirs = append(dirs, dir)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, p := range dirs {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists after Close (stat err: %v)", p, err)
		}
	}
}

func TestCleaner_CloseToleratesRemovedDirectories(t *testing.T) {
	t.Parallel()

	c := NewCleaner()
	dir, err := c.MkdirTemp("raincoat-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
