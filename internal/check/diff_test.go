// SPDX-License-Identifier: MPL-2.0

package check

import (
	"context"
	"strings"
	"testing"

	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/parse"
	"github.com/raincoat-go/raincoat/internal/runcache"
)

func TestUnifiedDiff(t *testing.T) {
	t.Parallel()

	got := UnifiedDiff("path1.py", []string{"element1 in apath1.py"}, []string{"element1 in bpath1.py"})
	want := "--- path1.py\n+++ path1.py\n@@ -1 +1 @@\n-element1 in apath1.py\n+element1 in bpath1.py"
	if got != want {
		t.Errorf("UnifiedDiff =\n%q\nwant\n%q", got, want)
	}
}

func TestDifferFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		strategy string
		want     Differ
	}{
		{"", LineDiffer{}},
		{DiffDefault, LineDiffer{}},
		{DiffPython, SyntaxDiffer{}},
		{"unknown", LineDiffer{}},
	}
	for _, tt := range tests {
		if got := DifferFor(tt.strategy); got != tt.want {
			t.Errorf("DifferFor(%q) = %T, want %T", tt.strategy, got, tt.want)
		}
	}
}

func TestSyntaxDiffer(t *testing.T) {
	t.Parallel()

	pinned := []string{"def main():", `    return "a"`}
	tests := []struct {
		name     string
		current  []string
		wantDiff bool
	}{
		{"reformatted", []string{"def main( ):", "    # unchanged", "    return 'a'"}, false},
		{"changed", []string{"def main():", `    return "b"`}, true},
		{"unparsable", []string{"def main(:", `    return "a"`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			diff, err := SyntaxDiffer{}.Diff(context.Background(), "a.py", pinned, tt.current)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (diff != "") != tt.wantDiff {
				t.Errorf("diff = %q, want a diff: %v", diff, tt.wantDiff)
			}
			if tt.wantDiff && !strings.HasPrefix(diff, "--- a.py\n+++ a.py\n") {
				t.Errorf("diff should be a unified diff of the lines, got %q", diff)
			}
		})
	}
}

func TestCheck_PythonDiffIgnoresFormatting(t *testing.T) {
	t.Parallel()

	b := &fakeBinding{
		current: map[string]string{"umbrella": "2.0"},
		files: map[string]map[string]string{
			"1.0": {"a.py": "def main():\n    return \"a\"\n\n\ndef other():\n    return 1\n"},
			"2.0": {"a.py": "def main():\n    # reworded\n    return 'a'\n\n\ndef other():\n    return 2\n"},
		},
	}
	e := New(b, match.Env{Cache: runcache.New(), Locator: newLocator(t), Diff: DiffPython})

	findings, errs := collect(e,
		&codeMatch{origin: "umbrella", pinned: "1.0", path: "a.py", element: "main", line: 1},
		&codeMatch{origin: "umbrella", pinned: "1.0", path: "a.py", element: "other", line: 2},
	)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(findings) != 1 || !strings.Contains(findings[0].Message, "+    return 2") {
		t.Errorf("findings = %+v, want only the change of other", findings)
	}
}

func newLocator(t *testing.T) *parse.Locator {
	t.Helper()
	l, err := parse.NewLocator(parse.DefaultCacheSize)
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	return l
}

type silentDiffer struct{}

func (silentDiffer) Diff(context.Context, string, []string, []string) (string, error) {
	return "", nil
}

func TestCheck_WithDiffer(t *testing.T) {
	t.Parallel()

	b := &fakeBinding{
		current: map[string]string{"umbrella": "2.0"},
		files: map[string]map[string]string{
			"1.0": {"a.py": mainV1},
			"2.0": {"a.py": mainV2},
		},
	}
	e := New(b, match.Env{Cache: runcache.New(), Locator: newLocator(t)}, WithDiffer(silentDiffer{}))

	findings, errs := collect(e, &codeMatch{origin: "umbrella", pinned: "1.0", path: "a.py", element: "main", line: 1})
	if len(findings) != 0 || len(errs) != 0 {
		t.Errorf("got %+v / %v, want the differ to suppress the change", findings, errs)
	}
}
