// SPDX-License-Identifier: MPL-2.0

package source

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerifyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := []byte("raincoat")
	path := writeFile(t, filepath.Join(dir, "artifact.whl"), data)

	sum := sha256.Sum256(data)
	good := hex.EncodeToString(sum[:])

	tests := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{"matching digest", good, false},
		{"matching digest uppercase", strings.ToUpper(good), false},
		{"empty digest skips verification", "", false},
		{"mismatch", strings.Repeat("0", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := VerifyFile(path, tt.expected)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			if !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("expected ErrChecksumMismatch, got %v", err)
			}
			var ce *ChecksumError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ChecksumError, got %T", err)
			}
			if ce.Got != good {
				t.Errorf("Got = %q, want %q", ce.Got, good)
			}
		})
	}
}

func TestVerifyFile_MissingFile(t *testing.T) {
	t.Parallel()

	err := VerifyFile(filepath.Join(t.TempDir(), "absent"), strings.Repeat("a", 64))
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
	if errors.Is(err, ErrChecksumMismatch) {
		t.Error("a missing file is not a checksum mismatch")
	}
}
