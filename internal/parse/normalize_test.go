// SPDX-License-Identifier: MPL-2.0

package parse

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	base := []string{"def f(a, b):", `    return a + "b"`}

	tests := []struct {
		name  string
		other []string
		equal bool
	}{
		{"same text", base, true},
		{"spacing and quotes", []string{"def f(a,b):", "    return a+'b'"}, true},
		{"comments and blank lines", []string{"def f(a, b):  # add", "", "    # done", `    return a + "b"`}, true},
		{"line breaks inside brackets", []string{"def f(", "    a,", "    b):", `    return a + "b"`}, true},
		{"method indentation", []string{"    def f(a, b):", `        return a + "b"`}, true},
		{"parenthesized", []string{"def f(a, b):", `    return (a + "b")`}, false},
		{"different operator", []string{"def f(a, b):", `    return a - "b"`}, false},
		{"different nesting", []string{"def f(a, b):", "    if a:", "        pass", `    return a + "b"`}, false},
		{"bytes literal", []string{"def f(a, b):", `    return a + b"b"`}, false},
	}

	want, err := Normalize(context.Background(), base)
	if err != nil {
		t.Fatalf("Normalize(base): %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(context.Background(), tt.other)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if eq := slices.Equal(got, want); eq != tt.equal {
				t.Errorf("equal = %v, want %v\n%q\n%q", eq, tt.equal, got, want)
			}
		})
	}
}

func TestNormalize_SyntaxError(t *testing.T) {
	t.Parallel()

	if _, err := Normalize(context.Background(), []string{"def f(:"}); !errors.Is(err, ErrSyntax) {
		t.Errorf("err = %v, want ErrSyntax", err)
	}
}

func TestDedent(t *testing.T) {
	t.Parallel()

	got := dedent([]string{"    def f():", "", "        pass", "  "})
	want := []string{"def f():", "", "    pass", ""}
	if !slices.Equal(got, want) {
		t.Errorf("dedent = %q, want %q", got, want)
	}
}
