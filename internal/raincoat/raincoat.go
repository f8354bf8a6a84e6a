// SPDX-License-Identifier: MPL-2.0

// Package raincoat wires a run together: it walks a source tree, locates
// the marker comments in every Python file, groups the resulting matches
// by kind and hands each group to the checker of its kind.
package raincoat

import (
	"context"
	"io"
	"iter"

	"github.com/charmbracelet/log"

	"github.com/raincoat-go/raincoat/internal/comment"
	"github.com/raincoat-go/raincoat/internal/match"
)

type (
	// Options configures a Runner.
	Options struct {
		// Exclude holds glob patterns of paths that are never read.
		Exclude []string
		// Marker is the word introducing marker comments.
		Marker string
		// Kinds restricts checking to the named kinds. Empty means all.
		Kinds []string
	}

	// Runner runs checks over source trees. A Runner is used for one run:
	// the environment's cache lives as long as it does.
	Runner struct {
		registry *match.Registry
		walker   *comment.Walker
		locator  *comment.Locator
		env      match.Env
		kinds    []string
		logger   *log.Logger
	}
)

// New creates a Runner checking matches of the kinds in registry.
func New(registry *match.Registry, env match.Env, opts Options) (*Runner, error) {
	logger := env.Logger
	if logger == nil {
		logger = log.New(io.Discard)
		env.Logger = logger
	}

	walker, err := comment.NewWalker(opts.Exclude, logger)
	if err != nil {
		return nil, err
	}

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = registry.Names()
	}
	for _, name := range kinds {
		if _, ok := registry.Lookup(name); !ok {
			return nil, &UnknownKindError{Name: name, Known: registry.Names()}
		}
	}

	return &Runner{
		registry: registry,
		walker:   walker,
		locator:  comment.NewLocator(registry, logger, opts.Marker),
		env:      env,
		kinds:    kinds,
		logger:   logger,
	}, nil
}

// Matches yields every match found below root, file by file in lexical
// order. No network access happens. Read errors are yielded and the walk
// goes on.
func (r *Runner) Matches(root string) iter.Seq2[match.Match, error] {
	return func(yield func(match.Match, error) bool) {
		for f, err := range r.walker.Walk(root) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			for m := range r.locator.Locate(f.Text, f.Path) {
				if !yield(m, nil) {
					return
				}
			}
		}
	}
}

// Check yields the findings for every match below root. Kinds are checked
// one after the other in name order; within a kind, findings come grouped
// by origin and pinned version. Errors never stop the run.
func (r *Runner) Check(ctx context.Context, root string) iter.Seq2[match.Finding, error] {
	return func(yield func(match.Finding, error) bool) {
		byKind := make(map[string][]match.Match)
		for m, err := range r.Matches(root) {
			if err != nil {
				if !yield(match.Finding{}, err) {
					return
				}
				continue
			}
			byKind[m.Kind()] = append(byKind[m.Kind()], m)
		}

		for _, name := range r.kinds {
			matches := byKind[name]
			if len(matches) == 0 {
				continue
			}
			kind, _ := r.registry.Lookup(name)
			r.logger.Debug("checking matches", "kind", name, "count", len(matches))
			for f, err := range kind.NewChecker(r.env).Check(ctx, matches) {
				if !yield(f, err) {
					return
				}
			}
		}
	}
}
