// SPDX-License-Identifier: MPL-2.0

// Package check compares code pinned in marker comments with the code
// currently published at the same origin.
//
// An Engine is generic over a Binding that knows how to name and fetch
// versions of one kind of origin. Matches are grouped by origin and
// pinned version; the current version of each origin is resolved once,
// every fetch key is read once with the union of the paths its groups
// need, and only files whose text differs are parsed.
package check

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/parse"
	"github.com/raincoat-go/raincoat/internal/runcache"
	"github.com/raincoat-go/raincoat/internal/source"
)

// DefaultConcurrency bounds parallel version lookups and fetches.
const DefaultConcurrency = 4

type (
	// CodeMatch is a match that points at code: a file, and optionally an
	// element in it, at a pinned version of an origin.
	CodeMatch interface {
		match.Match
		// Origin identifies what the current version is resolved for,
		// including any branch.
		Origin() string
		Pinned() string
		Path() string
		// Element is the dotted element name, or parse.WholeFile.
		Element() string
		// SetCurrent records the resolved current version for display.
		SetCurrent(version string)
	}

	// Binding supplies the source side of one match kind.
	Binding interface {
		// Name namespaces cached version lookups.
		Name() string
		PinnedKey(m CodeMatch) source.FetchKey
		CurrentKey(ctx context.Context, m CodeMatch) (source.FetchKey, error)
		Fetch(ctx context.Context, key source.FetchKey, paths []string) (map[string]source.Text, error)
	}

	// ElementLocator finds named elements in source text.
	ElementLocator interface {
		Locate(ctx context.Context, text string, names []string) (map[string]parse.Block, error)
	}

	// Engine checks code matches of one kind.
	Engine struct {
		binding     Binding
		cache       *runcache.Cache
		locator     ElementLocator
		differ      Differ
		logger      *log.Logger
		concurrency int
	}

	// Option configures an Engine.
	Option func(*Engine)

	// group is every match sharing one origin and one pinned version.
	group struct {
		matches    []CodeMatch
		pinned     source.FetchKey
		current    source.FetchKey
		resolveErr error
	}
)

// WithLocator replaces the element locator taken from the environment.
func WithLocator(l ElementLocator) Option {
	return func(e *Engine) {
		e.locator = l
	}
}

// WithDiffer replaces the comparison strategy named by the environment.
func WithDiffer(d Differ) Option {
	return func(e *Engine) {
		e.differ = d
	}
}

// New creates an Engine for binding using the shared run environment.
func New(binding Binding, env match.Env, opts ...Option) *Engine {
	e := &Engine{
		binding:     binding,
		cache:       env.Cache,
		differ:      DifferFor(env.Diff),
		logger:      env.Logger,
		concurrency: env.Concurrency,
	}
	if env.Locator != nil {
		e.locator = env.Locator
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = runcache.New()
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.concurrency < 1 {
		e.concurrency = DefaultConcurrency
	}
	return e
}

// Check implements match.Checker.
func (e *Engine) Check(ctx context.Context, matches []match.Match) iter.Seq2[match.Finding, error] {
	return func(yield func(match.Finding, error) bool) {
		groups, err := e.groupMatches(matches)
		if err != nil {
			yield(match.Finding{}, err)
			return
		}

		e.resolveCurrent(ctx, groups)
		e.prefetch(ctx, groups)

		for _, g := range groups {
			if !e.checkGroup(ctx, g, yield) {
				return
			}
		}
	}
}

func (e *Engine) groupMatches(matches []match.Match) ([]*group, error) {
	type groupKey struct{ origin, pinned string }

	index := make(map[groupKey]*group)
	var groups []*group
	for _, m := range matches {
		cm, ok := m.(CodeMatch)
		if !ok {
			return nil, fmt.Errorf("%s: %s match does not point at code", m.Location(), m.Kind())
		}
		k := groupKey{cm.Origin(), cm.Pinned()}
		g, ok := index[k]
		if !ok {
			g = &group{pinned: e.binding.PinnedKey(cm)}
			index[k] = g
			groups = append(groups, g)
		}
		g.matches = append(g.matches, cm)
	}
	return groups, nil
}

// resolveCurrent resolves the current version of every group. Lookups are
// memoized per origin, so groups sharing an origin trigger one lookup.
func (e *Engine) resolveCurrent(ctx context.Context, groups []*group) {
	var eg errgroup.Group
	eg.SetLimit(e.concurrency)
	for _, g := range groups {
		eg.Go(func() error {
			first := g.matches[0]
			cacheKey := e.binding.Name() + ":" + first.Origin()
			g.current, g.resolveErr = e.cache.Versions.Get(ctx, cacheKey, func(ctx context.Context) (source.FetchKey, error) {
				key, err := e.binding.CurrentKey(ctx, first)
				if err != nil {
					return source.FetchKey{}, fmt.Errorf("resolving current version of %s: %w", first.Origin(), err)
				}
				e.logger.Debug("resolved current version", "origin", first.Origin(), "version", key.Version)
				return key, nil
			})
			return nil
		})
	}
	_ = eg.Wait() // per-group errors are kept on the group
}

// prefetch fetches every distinct key once, with every path any group
// needs at that key. Failures are cached and surface when the group is
// checked.
func (e *Engine) prefetch(ctx context.Context, groups []*group) {
	paths := make(map[source.FetchKey][]string)
	var keys []source.FetchKey
	add := func(key source.FetchKey, p string) {
		if _, ok := paths[key]; !ok {
			keys = append(keys, key)
		}
		if !slices.Contains(paths[key], p) {
			paths[key] = append(paths[key], p)
		}
	}
	for _, g := range groups {
		if g.resolveErr != nil || sameVersion(g) {
			continue
		}
		for _, m := range g.matches {
			add(g.pinned, m.Path())
			add(g.current, m.Path())
		}
	}

	var eg errgroup.Group
	eg.SetLimit(e.concurrency)
	for _, key := range keys {
		eg.Go(func() error {
			_, _ = e.fetch(ctx, key, paths[key])
			return nil
		})
	}
	_ = eg.Wait()
}

// fetch returns the files at key for paths. Files are cached one by one,
// so a later request for more paths at the same key only fetches the
// paths not read yet. A fetch failure is recorded for every path it was
// meant to read.
func (e *Engine) fetch(ctx context.Context, key source.FetchKey, paths []string) (map[string]source.Text, error) {
	var missing []string
	for _, p := range paths {
		if _, ok, _ := e.cache.Files.Cached(runcache.FileKey{Key: key, Path: p}); !ok {
			missing = append(missing, p)
		}
	}

	if len(missing) > 0 {
		batch, err := e.cache.Fetches.Get(ctx, runcache.BatchKey(key, missing), func(ctx context.Context) (map[string]source.Text, error) {
			e.logger.Debug("fetching sources", "key", key.String(), "files", len(missing))
			files, err := e.binding.Fetch(ctx, key, missing)
			if err != nil {
				return nil, fmt.Errorf("fetching %s: %w", key, err)
			}
			return files, nil
		})
		for _, p := range missing {
			_, _ = e.cache.Files.Get(ctx, runcache.FileKey{Key: key, Path: p}, func(context.Context) (source.Text, error) {
				// A path absent from the batch does not exist at key.
				return batch[p], err
			})
		}
	}

	out := make(map[string]source.Text, len(paths))
	for _, p := range paths {
		text, _, err := e.cache.Files.Cached(runcache.FileKey{Key: key, Path: p})
		if err != nil {
			return nil, err
		}
		out[p] = text
	}
	return out, nil
}

func sameVersion(g *group) bool {
	return g.pinned.Version == g.current.Version
}

// checkGroup compares one group and yields its findings. It returns false
// when the consumer stopped iterating.
func (e *Engine) checkGroup(ctx context.Context, g *group, yield func(match.Finding, error) bool) bool {
	if g.resolveErr != nil {
		return yield(match.Finding{}, g.resolveErr)
	}
	for _, m := range g.matches {
		m.SetCurrent(g.current.Version)
	}
	if sameVersion(g) {
		return true
	}

	var paths []string
	byPath := make(map[string][]CodeMatch)
	for _, m := range g.matches {
		if _, ok := byPath[m.Path()]; !ok {
			paths = append(paths, m.Path())
		}
		byPath[m.Path()] = append(byPath[m.Path()], m)
	}

	// Sources were prefetched; these calls only fetch what a previous
	// Check on the same cache did not need.
	pinned, err := e.fetch(ctx, g.pinned, paths)
	if err != nil {
		return yield(match.Finding{}, err)
	}
	current, err := e.fetch(ctx, g.current, paths)
	if err != nil {
		return yield(match.Finding{}, err)
	}

	c := comparison{engine: e, group: g, yield: yield}
	for _, p := range paths {
		if !c.file(ctx, p, pinned[p], current[p], byPath[p]) {
			return c.keepGoing
		}
	}
	return true
}

// comparison carries the state of one group's comparison.
type comparison struct {
	engine    *Engine
	group     *group
	yield     func(match.Finding, error) bool
	keepGoing bool
}

// file compares one path. It returns false when the group must stop,
// either on misconfiguration or because the consumer stopped; keepGoing
// tells the two apart.
func (c *comparison) file(ctx context.Context, p string, pinned, current source.Text, ms []CodeMatch) bool {
	switch {
	case !pinned.Found && !current.Found:
		return c.report(ms, fmt.Sprintf("Invalid Raincoat comment: %s does not exist", p))
	case !pinned.Found:
		return c.misconfigured(p, parse.WholeFile, ms)
	case !current.Found:
		return c.report(ms, fmt.Sprintf("File %s disappeared", p))
	case pinned.Equal(current):
		return true
	}

	var names []string
	byElement := make(map[string][]CodeMatch)
	for _, m := range ms {
		if _, ok := byElement[m.Element()]; !ok {
			names = append(names, m.Element())
		}
		byElement[m.Element()] = append(byElement[m.Element()], m)
	}

	// A parse failure only ends this file's comparison.
	pinnedBlocks, err := c.engine.locator.Locate(ctx, pinned.Content, names)
	if err != nil {
		return c.skipFile(fmt.Errorf("parsing %s at %s: %w", p, c.group.pinned, err))
	}
	currentBlocks, err := c.engine.locator.Locate(ctx, current.Content, names)
	if err != nil {
		return c.skipFile(fmt.Errorf("parsing %s at %s: %w", p, c.group.current, err))
	}

	for _, name := range names {
		if !c.element(ctx, p, name, pinnedBlocks[name], currentBlocks[name], byElement[name]) {
			return false
		}
	}
	return true
}

func (c *comparison) element(ctx context.Context, p, name string, pinned, current parse.Block, ms []CodeMatch) bool {
	switch {
	case !pinned.Found && !current.Found:
		return c.report(ms, fmt.Sprintf("Invalid Raincoat comment: %s does not exist in %s", name, p))
	case !pinned.Found:
		return c.misconfigured(p, name, ms)
	case !current.Found:
		return c.report(ms, fmt.Sprintf("Element %s disappeared from %s", name, p))
	case pinned.Equal(current):
		return true
	}
	diff, err := c.engine.differ.Diff(ctx, p, pinned.Lines, current.Lines)
	if err != nil {
		return c.skipFile(fmt.Errorf("comparing %s in %s: %w", name, p, err))
	}
	if diff == "" {
		return true
	}
	return c.report(ms, "Code is different:\n"+diff)
}

// report yields one finding per match.
func (c *comparison) report(ms []CodeMatch, message string) bool {
	for _, m := range ms {
		if !c.yield(match.Finding{Message: message, Match: m}, nil) {
			c.keepGoing = false
			return false
		}
	}
	c.keepGoing = true
	return true
}

// skipFile yields err and moves on to the next file.
func (c *comparison) skipFile(err error) bool {
	c.keepGoing = c.yield(match.Finding{}, err)
	return c.keepGoing
}

// misconfigured yields the error and stops the group.
func (c *comparison) misconfigured(p, element string, ms []CodeMatch) bool {
	implicated := make([]match.Match, 0, len(ms))
	for _, m := range ms {
		implicated = append(implicated, m)
	}

	c.keepGoing = c.yield(match.Finding{}, &match.MisconfigurationError{
		Path:    p,
		Element: element,
		Pinned:  c.group.pinned.String(),
		Current: c.group.current.String(),
		Matches: implicated,
	})
	return false
}
