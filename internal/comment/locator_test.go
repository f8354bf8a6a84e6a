// SPDX-License-Identifier: MPL-2.0

package comment

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/raincoat-go/raincoat/internal/match"
)

type pinMatch struct {
	loc                         match.Location
	pkg, version, path, element string
}

func (m *pinMatch) Kind() string             { return "pypi" }
func (m *pinMatch) Location() match.Location { return m.loc }
func (m *pinMatch) String() string           { return fmt.Sprintf("%s==%s", m.pkg, m.version) }

func pinKind() match.Kind {
	return match.Kind{
		Name: "pypi",
		Parse: func(loc match.Location, args match.Args) (match.Match, error) {
			pkg, err := args.Require("package")
			if err != nil {
				return nil, err
			}
			path, err := args.Require("path")
			if err != nil {
				return nil, err
			}
			name, version, ok := strings.Cut(pkg, "==")
			if !ok {
				return nil, fmt.Errorf("%w: package must be name==version", match.ErrNotMatching)
			}
			return &pinMatch{loc: loc, pkg: name, version: version, path: path, element: args["element"]}, nil
		},
	}
}

func newTestLocator(buf *bytes.Buffer) *Locator {
	logger := log.New(buf)
	return NewLocator(match.NewRegistry(logger, pinKind()), logger, "")
}

func TestLocate_WellFormed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want pinMatch
	}{
		{
			name: "element",
			text: "\n        # Raincoat: pypi package: BLA==1.2.3 path: yo/yeah.py element: foo\n    ",
			want: pinMatch{pkg: "BLA", version: "1.2.3", path: "yo/yeah.py", element: "foo", loc: match.Location{File: "foo/bar", Line: 2}},
		},
		{
			name: "whole module",
			text: "\n        # Raincoat: pypi package: BLA==1.2.3 path: yo/yeah.py\n    ",
			want: pinMatch{pkg: "BLA", version: "1.2.3", path: "yo/yeah.py", loc: match.Location{File: "foo/bar", Line: 2}},
		},
		{
			name: "trailing noqa",
			text: "x = 1\ny = 2\n# Raincoat: pypi package: BLA==1.2.3 path: yo/yeah.py element: foo # noqa\n",
			want: pinMatch{pkg: "BLA", version: "1.2.3", path: "yo/yeah.py", element: "foo", loc: match.Location{File: "foo/bar", Line: 3}},
		},
		{
			name: "unknown keys ignored",
			text: "# Raincoat: pypi colour: blue package: BLA==1.2.3 path: yo/yeah.py",
			want: pinMatch{pkg: "BLA", version: "1.2.3", path: "yo/yeah.py", loc: match.Location{File: "foo/bar", Line: 1}},
		},
		{
			name: "key glued to value",
			text: "# Raincoat: pypi package:BLA==1.2.3 path:yo/yeah.py",
			want: pinMatch{pkg: "BLA", version: "1.2.3", path: "yo/yeah.py", loc: match.Location{File: "foo/bar", Line: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			got := slices.Collect(newTestLocator(&buf).Locate(tt.text, "foo/bar"))
			if len(got) != 1 {
				t.Fatalf("got %d matches, want 1 (log: %s)", len(got), buf.String())
			}
			m := got[0].(*pinMatch)
			if *m != tt.want {
				t.Errorf("match = %+v, want %+v", *m, tt.want)
			}
		})
	}
}

func TestLocate_Unrecognized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"other operator", "# Raincoat: pypi package: BLA>=1.2.3 path: yo/yeah.py: foo"},
		{"missing path", "# Raincoat: pypi package: BLA==1.2.3"},
		{"unknown kind", "# Raincoat: cvs module: foo path: a.py"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			got := slices.Collect(newTestLocator(&buf).Locate(tt.text, "foo/bar"))
			if len(got) != 0 {
				t.Fatalf("got %d matches, want 0", len(got))
			}
			if c := strings.Count(buf.String(), "unrecognized Raincoat comment"); c != 1 {
				t.Errorf("got %d warnings, want 1: %s", c, buf.String())
			}
		})
	}
}

func TestLocate_EmptyAndIdempotent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newTestLocator(&buf)
	if got := slices.Collect(l.Locate("", "")); len(got) != 0 {
		t.Errorf("empty text gave %d matches", len(got))
	}

	text := "# Raincoat: pypi package: a==1 path: a.py\n\n# Raincoat: pypi package: b==2 path: b.py element: X.y\n"
	seq := l.Locate(text, "src.py")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("got %d then %d matches, want 2 each time", len(first), len(second))
	}
	for i := range first {
		if *first[i].(*pinMatch) != *second[i].(*pinMatch) {
			t.Errorf("match %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[1].Location().Line != 3 {
		t.Errorf("second match line = %d, want 3", first[1].Location().Line)
	}
}

func TestLocate_CustomMarker(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.New(&buf)
	l := NewLocator(match.NewRegistry(logger, pinKind()), logger, "Drift")

	text := "# Raincoat: pypi package: a==1 path: a.py\n# Drift: pypi package: b==2 path: b.py\n"
	got := slices.Collect(l.Locate(text, "src.py"))
	if len(got) != 1 || got[0].(*pinMatch).pkg != "b" {
		t.Errorf("matches = %+v, want only the Drift marker", got)
	}
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want match.Args
	}{
		{"ticket: #25981", match.Args{"ticket": "#25981"}},
		{"repo: a/b@abc path: x.py branch: main # noqa", match.Args{"repo": "a/b@abc", "path": "x.py", "branch": "main"}},
		{"path: x.py trailing words", match.Args{"path": "x.py"}},
		{"url: https://example.com/r.git@v1 path: x.py", match.Args{"url": "https://example.com/r.git@v1", "path": "x.py"}},
		{"element:", match.Args{"element": ""}},
		{"", match.Args{}},
	}
	for _, tt := range tests {
		got := ParseArgs(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("ParseArgs(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("ParseArgs(%q)[%s] = %q, want %q", tt.in, k, got[k], v)
			}
		}
	}
}
