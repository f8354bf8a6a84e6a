// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func makeInstall(t *testing.T, root, distInfo string, files map[string]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Join(root, distInfo), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		writeFile(t, p, []byte(content))
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Django", "django"},
		{"zope.interface", "zope-interface"},
		{"my__package", "my-package"},
		{"Foo-._Bar", "foo-bar"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSitePackages_VersionAndRead(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	makeInstall(t, second, "My_Package-1.4.2.dist-info", map[string]string{
		"my_package/core.py": "def f():\n    pass\n",
	})

	sp := NewSitePackages(filepath.Join(first, "missing"), first, second)

	version, err := sp.Version("my-package")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != "1.4.2" {
		t.Errorf("Version = %q, want %q", version, "1.4.2")
	}

	got, err := sp.Read("my.package", []string{"my_package/core.py", "my_package/gone.py"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got["my_package/core.py"].Equal(Found("def f():\n    pass\n")) {
		t.Errorf("core.py = %+v", got["my_package/core.py"])
	}
	if got["my_package/gone.py"].Found {
		t.Error("gone.py should be FileNotFound")
	}
}

func TestSitePackages_NotInstalled(t *testing.T) {
	t.Parallel()

	sp := NewSitePackages(t.TempDir())
	if _, err := sp.Version("umbrella"); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
	if _, err := sp.Read("umbrella", []string{"a.py"}); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}
