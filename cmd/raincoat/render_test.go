// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/raincoat-go/raincoat/internal/config"
	"github.com/raincoat-go/raincoat/internal/issue"
	"github.com/raincoat-go/raincoat/internal/match"
)

type headerMatch struct{}

func (headerMatch) Kind() string             { return "fake" }
func (headerMatch) Location() match.Location { return match.Location{File: "app.py", Line: 3} }
func (headerMatch) String() string           { return "pkg == 1.0 vs 2.0 @ mod.py:f (from app.py:3)" }

func TestRenderFinding(t *testing.T) {
	t.Parallel()

	f := match.Finding{
		Match: headerMatch{},
		Message: `
  Code is different:

--- mod.py:f (pinned)
+++ mod.py:f (current)
@@ -1 +1 @@
-old
+new
`,
	}

	got := renderFinding(newStyles(&bytes.Buffer{}, config.ColorNever), f)
	want := `pkg == 1.0 vs 2.0 @ mod.py:f (from app.py:3)
Code is different:
--- mod.py:f (pinned)
+++ mod.py:f (current)
@@ -1 +1 @@
-old
+new
`
	if got != want {
		t.Errorf("renderFinding() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderFinding_Colored(t *testing.T) {
	t.Parallel()

	f := match.Finding{Match: headerMatch{}, Message: "Code is different\n+new"}
	got := renderFinding(newStyles(&bytes.Buffer{}, config.ColorAlways), f)
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("color always should emit escape sequences, got %q", got)
	}
	if !strings.Contains(got, "+new") {
		t.Errorf("added line lost, got %q", got)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	if got := formatErrorForDisplay(plain, false); got != "boom" {
		t.Errorf("plain error = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource("raincoat.toml").
		WithSuggestion("Check the file").
		Wrap(plain).
		BuildError()
	got := formatErrorForDisplay(ae, false)
	if !strings.Contains(got, "load configuration") || !strings.Contains(got, "Check the file") {
		t.Errorf("actionable error = %q", got)
	}
}

func TestIssueGuide(t *testing.T) {
	t.Parallel()

	if got := issueGuide(errors.New("unrelated")); got != "" {
		t.Errorf("unrelated error should have no guide, got %q", got)
	}
	mis := &match.MisconfigurationError{Path: "mod.py", Pinned: "1.0", Current: "2.0"}
	if got := issueGuide(mis); got == "" {
		t.Error("misconfiguration should have a guide")
	}
}
