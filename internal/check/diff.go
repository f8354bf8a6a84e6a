// SPDX-License-Identifier: MPL-2.0

package check

import (
	"context"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/raincoat-go/raincoat/internal/parse"
)

// Diff strategy names accepted by DifferFor.
const (
	DiffDefault = "default"
	DiffPython  = "python"
)

type (
	// Differ compares the pinned and current lines of one element whose
	// text differs. An empty diff means the change does not count.
	Differ interface {
		Diff(ctx context.Context, path string, pinned, current []string) (string, error)
	}

	// LineDiffer reports every textual change as a unified diff.
	LineDiffer struct{}

	// SyntaxDiffer reports a change only when the syntax trees differ, so
	// reformatting and comment edits are not findings. Code that does not
	// parse on its own is compared line by line.
	SyntaxDiffer struct{}
)

// DifferFor returns the Differ named by strategy. Unknown and empty names
// give LineDiffer.
func DifferFor(strategy string) Differ {
	if strategy == DiffPython {
		return SyntaxDiffer{}
	}
	return LineDiffer{}
}

func (LineDiffer) Diff(_ context.Context, path string, pinned, current []string) (string, error) {
	return UnifiedDiff(path, pinned, current), nil
}

func (SyntaxDiffer) Diff(ctx context.Context, path string, pinned, current []string) (string, error) {
	a, errA := parse.Normalize(ctx, pinned)
	b, errB := parse.Normalize(ctx, current)
	if errA == nil && errB == nil && slices.Equal(a, b) {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return UnifiedDiff(path, pinned, current), nil
}

// UnifiedDiff renders a unified diff of two line slices, both labeled
// with path, without a trailing newline.
func UnifiedDiff(path string, a, b []string) string {
	diff := difflib.UnifiedDiff{
		A:        withNewlines(a),
		B:        withNewlines(b),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		// Writes go to an in-memory buffer and cannot fail.
		return ""
	}
	return strings.TrimSuffix(text, "\n")
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
