// SPDX-License-Identifier: MPL-2.0

package kinds

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/source"
	"github.com/raincoat-go/raincoat/internal/testutil"
)

const umbrellaV1 = `class Umbrella:
    def open(self):
        return "open"

    def close(self):
        return "closed"
`

const umbrellaV2 = `class Umbrella:
    def open(self):
        return "opened"

    def close(self):
        return "closed"
`

func TestPyPI_Check(t *testing.T) {
	t.Parallel()

	idx := testutil.NewPackageIndex(t)
	idx.AddWheel("umbrella", "1.0", map[string]string{
		"umbrella/__init__.py": umbrellaV1,
		"umbrella/gone.py":     "x = 1\n",
	})
	idx.AddWheel("umbrella", "1.1", map[string]string{"umbrella/__init__.py": umbrellaV2})

	kind := pypiKind(Deps{PyPI: source.NewPyPIClient(source.WithPyPIBaseURL(idx.URL()))})
	changed := mustParse(t, kind, 1, match.Args{"package": "umbrella==1.0", "path": "umbrella/__init__.py", "element": "Umbrella.open"})
	same := mustParse(t, kind, 2, match.Args{"package": "umbrella==1.0", "path": "umbrella/__init__.py", "element": "Umbrella.close"})
	gone := mustParse(t, kind, 3, match.Args{"package": "umbrella==1.0", "path": "umbrella/gone.py"})

	findings, errs := collect(t, kind.NewChecker(newEnv(t)), changed, same, gone)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2: %+v", len(findings), findings)
	}

	byMatch := map[match.Match]string{}
	for _, f := range findings {
		byMatch[f.Match] = f.Message
	}
	diff := byMatch[changed]
	if !strings.HasPrefix(diff, "Code is different:\n") ||
		!strings.Contains(diff, `-        return "open"`) ||
		!strings.Contains(diff, `+        return "opened"`) {
		t.Errorf("diff message = %q", diff)
	}
	if got := byMatch[gone]; got != "File umbrella/gone.py disappeared" {
		t.Errorf("gone message = %q", got)
	}
	if !strings.Contains(changed.String(), "umbrella == 1.0 vs 1.1 @") {
		t.Errorf("String() = %q, want the current version", changed.String())
	}
	if n := idx.Downloads(); n != 2 {
		t.Errorf("downloads = %d, want one per version", n)
	}
}

func TestPyPI_SameVersionSkipsDownloads(t *testing.T) {
	t.Parallel()

	idx := testutil.NewPackageIndex(t)
	idx.AddWheel("umbrella", "1.0", map[string]string{"umbrella/__init__.py": umbrellaV1})

	kind := pypiKind(Deps{PyPI: source.NewPyPIClient(source.WithPyPIBaseURL(idx.URL()))})
	m := mustParse(t, kind, 1, match.Args{"package": "umbrella==1.0", "path": "umbrella/__init__.py", "element": "Nope"})

	findings, errs := collect(t, kind.NewChecker(newEnv(t)), m)
	if len(findings) != 0 || len(errs) != 0 {
		t.Fatalf("findings = %+v, errs = %v; want none", findings, errs)
	}
	if n := idx.Downloads(); n != 0 {
		t.Errorf("downloads = %d, want 0", n)
	}
}

func TestPyPI_PrefersInstalledVersion(t *testing.T) {
	t.Parallel()

	site := t.TempDir()
	testutil.MustMkdirAll(t, filepath.Join(site, "Umbrella-2.0.dist-info"), 0o755)
	testutil.MustWriteFile(t, filepath.Join(site, "umbrella", "__init__.py"), umbrellaV2)

	idx := testutil.NewPackageIndex(t)
	idx.AddWheel("umbrella", "1.0", map[string]string{"umbrella/__init__.py": umbrellaV1})

	kind := pypiKind(Deps{
		PyPI:      source.NewPyPIClient(source.WithPyPIBaseURL(idx.URL())),
		Installed: source.NewSitePackages(site),
	})
	m := mustParse(t, kind, 1, match.Args{"package": "umbrella==1.0", "path": "umbrella/__init__.py", "element": "Umbrella.open"})

	findings, errs := collect(t, kind.NewChecker(newEnv(t)), m)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(findings) != 1 || !strings.HasPrefix(findings[0].Message, "Code is different:") {
		t.Fatalf("findings = %+v, want one diff", findings)
	}
	if !strings.Contains(m.String(), "vs 2.0") {
		t.Errorf("String() = %q, want the installed version", m.String())
	}
	if n := idx.Downloads(); n != 1 {
		t.Errorf("downloads = %d, want only the pinned version", n)
	}
}

func TestPyPI_UnknownPackageIsAnError(t *testing.T) {
	t.Parallel()

	idx := testutil.NewPackageIndex(t)
	kind := pypiKind(Deps{PyPI: source.NewPyPIClient(source.WithPyPIBaseURL(idx.URL()))})
	m := mustParse(t, kind, 1, match.Args{"package": "nothing==1.0", "path": "n.py"})

	findings, errs := collect(t, kind.NewChecker(newEnv(t)), m)
	if len(findings) != 0 || len(errs) != 1 {
		t.Fatalf("findings = %+v, errs = %v; want one error", findings, errs)
	}
}
