// SPDX-License-Identifier: MPL-2.0

// Package match defines the records produced from marker comments, the
// findings reported about them, and the registry of match kinds.
package match

import (
	"context"
	"fmt"
	"iter"

	"github.com/charmbracelet/log"

	"github.com/raincoat-go/raincoat/internal/parse"
	"github.com/raincoat-go/raincoat/internal/runcache"
)

type (
	// Location is the place of a marker comment: the file holding it and
	// its 1-based line number.
	Location struct {
		File string
		Line int
	}

	// Match is one parsed marker comment. Concrete kinds add their own
	// fields; every kind can name itself and format itself for output.
	Match interface {
		Kind() string
		Location() Location
		String() string
	}

	// Finding is one reported discrepancy and the match that produced it.
	Finding struct {
		Message string
		Match   Match
	}

	// Checker checks every match of one kind. Findings and errors are
	// yielded as they are produced; an error never stops the sequence,
	// later groups are still checked.
	Checker interface {
		Check(ctx context.Context, matches []Match) iter.Seq2[Finding, error]
	}

	// Args holds the key/value arguments of a marker comment.
	Args map[string]string

	// Kind describes one match kind: how to build a Match from comment
	// arguments and how to check a batch of them.
	Kind struct {
		Name       string
		Parse      func(loc Location, args Args) (Match, error)
		NewChecker func(env Env) Checker
	}

	// Env carries the collaborators shared by every checker of one run.
	Env struct {
		Logger      *log.Logger
		Cache       *runcache.Cache
		Locator     *parse.Locator
		Concurrency int
		// Diff names the comparison strategy: "default" or "python".
		// Empty means default.
		Diff string
	}
)

// String renders the location as file:line.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Require returns the value of key, or ErrNotMatching when it is absent or empty.
func (a Args) Require(key string) (string, error) {
	v := a[key]
	if v == "" {
		return "", fmt.Errorf("%w: missing %q", ErrNotMatching, key)
	}
	return v, nil
}
