// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raincoat-go/raincoat/internal/config"
	"github.com/raincoat-go/raincoat/internal/testutil"
	"github.com/raincoat-go/raincoat/pkg/types"
)

const (
	umbrellaV1 = "def main():\n    print(\"Screen too small\")\n"
	umbrellaV2 = "def main():\n    print(\"Screen is too small\")\n"
	helpersV1  = "def helper():\n    return 1\n"
	helpersV2  = "def helper():\n    return 2\n"
)

type staticProvider struct {
	cfg *config.Config
	err error
}

func (p *staticProvider) Load(context.Context, config.LoadOptions) (*config.Config, string, error) {
	if p.err != nil {
		return nil, "", p.err
	}
	cfg := *p.cfg
	return &cfg, "", nil
}

type harness struct {
	root   string
	stdout bytes.Buffer
	stderr bytes.Buffer
	app    *App
}

func newHarness(t *testing.T, project string) *harness {
	t.Helper()

	idx := testutil.NewPackageIndex(t)
	idx.AddWheel("umbrella", "1.0.0", map[string]string{"umbrella/__init__.py": umbrellaV1, "umbrella/helpers.py": helpersV1})
	idx.AddWheel("umbrella", "2.0.0", map[string]string{"umbrella/__init__.py": umbrellaV2, "umbrella/helpers.py": helpersV2})

	h := &harness{root: t.TempDir()}
	testutil.MustWriteFile(t, filepath.Join(h.root, "app.py"), project)

	cfg := config.DefaultConfig()
	cfg.Path = h.root
	cfg.Color = config.ColorNever
	cfg.PyPI.IndexURL = idx.URL()
	h.app = NewApp(Dependencies{
		Config: &staticProvider{cfg: cfg},
		Stdout: &h.stdout,
		Stderr: &h.stderr,
	})
	return h
}

func (h *harness) execute(args ...string) error {
	cmd := NewRootCommand(h.app)
	cmd.SetArgs(args)
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)
	return cmd.ExecuteContext(context.Background())
}

func TestCheck_ReportsFindings(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "# Raincoat: pypi package: umbrella==1.0.0 path: umbrella/__init__.py element: main\n")
	err := h.execute()

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitReported {
		t.Fatalf("err = %v, want exit status 1", err)
	}

	out := h.stdout.String()
	wantHeader := "umbrella == 1.0.0 vs 2.0.0 @ umbrella/__init__.py:main (from " + filepath.Join(h.root, "app.py") + ":1)"
	if !strings.HasPrefix(out, wantHeader+"\n") {
		t.Errorf("output should start with the match header, got:\n%s", out)
	}
	for _, want := range []string{`-    print("Screen too small")`, `+    print("Screen is too small")`} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("color never must not emit escape sequences:\n%q", out)
	}
}

func TestCheck_CleanRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "# Raincoat: pypi package: umbrella==2.0.0 path: umbrella/__init__.py element: main\n")
	if err := h.execute(); err != nil {
		t.Fatalf("err = %v, want a clean run", err)
	}
	if h.stdout.Len() != 0 {
		t.Errorf("unexpected output:\n%s", h.stdout.String())
	}
}

func TestCheck_ExcludeAndExplicitPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "# Raincoat: pypi package: umbrella==1.0.0 path: umbrella/__init__.py element: main\n")
	if err := h.execute("--exclude", "app.py", h.root); err != nil {
		t.Fatalf("err = %v, want nothing checked", err)
	}
}

func TestCheck_SeveralRootsAtOneVersion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "# Raincoat: pypi package: umbrella==1.0.0 path: umbrella/__init__.py element: main\n")
	other := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(other, "lib.py"),
		"# Raincoat: pypi package: umbrella==1.0.0 path: umbrella/helpers.py element: helper\n")

	err := h.execute(h.root, other)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want an ExitError", err)
	}
	if h.stderr.Len() != 0 {
		t.Errorf("unexpected errors:\n%s", h.stderr.String())
	}
	out := h.stdout.String()
	if strings.Contains(out, "does not exist") {
		t.Errorf("the second root must see umbrella/helpers.py:\n%s", out)
	}
	for _, want := range []string{`+    print("Screen is too small")`, "+    return 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestCheck_ErrorsAreReported(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "# Raincoat: pypi package: umbrella==1.0.0 path: umbrella/__init__.py element: main\n")
	err := h.execute(filepath.Join(h.root, "missing"))

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want an ExitError", err)
	}
	if !strings.Contains(h.stderr.String(), "Error: ") {
		t.Errorf("stderr should report the walk error, got:\n%s", h.stderr.String())
	}
}

func TestCheck_UnknownKind(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	err := h.execute("--kind", "npm")
	if err == nil || !strings.Contains(err.Error(), "npm") {
		t.Errorf("err = %v, want an unknown kind error", err)
	}
}

func TestCheck_InvalidColorFlag(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if err := h.execute("--color", "sometimes"); !errors.Is(err, config.ErrInvalidColorMode) {
		t.Errorf("err = %v, want ErrInvalidColorMode", err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `# Raincoat: pypi package: umbrella==1.0.0 path: umbrella/__init__.py element: main
# Raincoat: django ticket: #26976
`)
	if err := h.execute("list"); err != nil {
		t.Fatalf("list: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), h.stdout.String())
	}
	if !strings.Contains(lines[0], "app.py:1 pypi umbrella == 1.0.0") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "app.py:2 django Django ticket #26976") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.app.Config.(*staticProvider).cfg.GitHub.Token = "ghp_secret"
	if err := h.execute("config", "show"); err != nil {
		t.Fatalf("config show: %v", err)
	}

	out := h.stdout.String()
	if strings.Contains(out, "ghp_secret") {
		t.Errorf("token must be redacted:\n%s", out)
	}
	for _, want := range []string{"(using defaults)", "index_url", "timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestConfigLoadError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.app.Config = &staticProvider{err: config.ErrInvalidConfig}
	if err := h.execute(); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("err = %v, want the load error", err)
	}
}

func TestWatch_InitialRunThenStops(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "# Raincoat: pypi package: umbrella==2.0.0 path: umbrella/__init__.py element: main\n")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand(h.app)
	cmd.SetArgs([]string{"watch", "--debounce", "50ms"})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "nothing to report") {
		t.Errorf("initial run should report a clean tree, got:\n%s", h.stdout.String())
	}
}
