// SPDX-License-Identifier: MPL-2.0

package kinds

import (
	"context"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/runcache"
	"github.com/raincoat-go/raincoat/internal/source"
)

const compareDiverged = "diverged"

var (
	ticketPattern = regexp.MustCompile(`^#?([0-9]+)$`)
	// mergeCommentPattern finds the commit a maintainer reported a fix in.
	mergeCommentPattern = regexp.MustCompile(`(?:merged|fixed) in \b([0-9a-f]{6,40})\b`)
)

type (
	// DjangoMatch marks a workaround that can be removed once a Django
	// ticket is fixed in the installed (or latest) Django version.
	//
	//	# Raincoat: django ticket: #26976
	DjangoMatch struct {
		loc    match.Location
		Ticket int
	}

	djangoChecker struct {
		tracker IssueTracker
		github  *source.GitHubClient
		pypi    *pypiBinding
		cache   *runcache.Cache
		logger  *log.Logger
	}
)

func djangoKind(deps Deps) match.Kind {
	return match.Kind{
		Name:  KindDjango,
		Parse: parseDjango,
		NewChecker: func(env match.Env) match.Checker {
			c := &djangoChecker{
				tracker: deps.IssueTracker,
				github:  deps.GitHub,
				pypi:    &pypiBinding{index: deps.PyPI, installed: deps.Installed},
				cache:   env.Cache,
				logger:  env.Logger,
			}
			if c.cache == nil {
				c.cache = runcache.New()
			}
			if c.logger == nil {
				c.logger = log.New(io.Discard)
			}
			return c
		},
	}
}

func parseDjango(loc match.Location, args match.Args) (match.Match, error) {
	ticket, err := args.Require("ticket")
	if err != nil {
		return nil, err
	}
	sub := ticketPattern.FindStringSubmatch(strings.TrimSpace(ticket))
	if sub == nil {
		return nil, fmt.Errorf("%w: ticket %q is not a number", match.ErrNotMatching, ticket)
	}
	n, err := strconv.Atoi(sub[1])
	if err != nil {
		return nil, fmt.Errorf("%w: ticket %q: %v", match.ErrNotMatching, ticket, err)
	}
	return &DjangoMatch{loc: loc, Ticket: n}, nil
}

// Kind implements match.Match.
func (m *DjangoMatch) Kind() string { return KindDjango }

// Location implements match.Match.
func (m *DjangoMatch) Location() match.Location { return m.loc }

func (m *DjangoMatch) String() string {
	return fmt.Sprintf("Django ticket #%d (from %s)", m.Ticket, m.loc)
}

// Check reports every ticket fixed by a commit contained in the current
// Django version. Each ticket is looked up once, however many comments
// reference it.
func (c *djangoChecker) Check(ctx context.Context, matches []match.Match) iter.Seq2[match.Finding, error] {
	return func(yield func(match.Finding, error) bool) {
		var tickets []int
		byTicket := make(map[int][]match.Match)
		for _, m := range matches {
			dm, ok := m.(*DjangoMatch)
			if !ok {
				if !yield(match.Finding{}, fmt.Errorf("%s: %s match is not a ticket", m.Location(), m.Kind())) {
					return
				}
				continue
			}
			if _, seen := byTicket[dm.Ticket]; !seen {
				tickets = append(tickets, dm.Ticket)
			}
			byTicket[dm.Ticket] = append(byTicket[dm.Ticket], m)
		}
		if len(tickets) == 0 {
			return
		}

		pkg := c.tracker.Package
		current, err := c.cache.Versions.Get(ctx, KindPyPI+":"+pkg, func(ctx context.Context) (source.FetchKey, error) {
			key, err := c.pypi.current(ctx, pkg)
			if err != nil {
				return source.FetchKey{}, fmt.Errorf("resolving current version of %s: %w", pkg, err)
			}
			return key, nil
		})
		if err != nil {
			yield(match.Finding{}, err)
			return
		}

		for _, ticket := range tickets {
			merged, err := c.mergedIn(ctx, ticket, current.Version)
			if err != nil {
				if !yield(match.Finding{}, fmt.Errorf("ticket #%d: %w", ticket, err)) {
					return
				}
				continue
			}
			if !merged {
				continue
			}
			message := fmt.Sprintf("Ticket #%d has been merged in Django %s", ticket, current.Version)
			for _, m := range byTicket[ticket] {
				if !yield(match.Finding{Message: message, Match: m}, nil) {
					return
				}
			}
		}
	}
}

// mergedIn reports whether the fix for ticket is contained in version.
func (c *djangoChecker) mergedIn(ctx context.Context, ticket int, version string) (bool, error) {
	sha, err := c.cache.Values.Get(ctx, fmt.Sprintf("%s:merge:%d", c.tracker.Repo, ticket), func(ctx context.Context) (string, error) {
		return c.mergeCommit(ctx, ticket)
	})
	if err != nil || sha == "" {
		return false, err
	}

	status, err := c.cache.Values.Get(ctx, fmt.Sprintf("%s:compare:%s...%s", c.tracker.Repo, sha, version), func(ctx context.Context) (string, error) {
		return c.github.CompareStatus(ctx, c.tracker.Repo, sha, version)
	})
	if err != nil {
		return false, err
	}
	c.logger.Debug("compared ticket fix", "ticket", ticket, "commit", sha, "version", version, "status", status)
	return status != compareDiverged, nil
}

// mergeCommit finds the commit fixing ticket, or "" when none is known.
// Candidate pull requests are those whose title mentions the ticket; a
// merged one gives its merge commit, otherwise its comments are searched
// for a maintainer's "merged in <sha>" note.
func (c *djangoChecker) mergeCommit(ctx context.Context, ticket int) (string, error) {
	ref := "#" + strconv.Itoa(ticket)
	issues, err := c.github.SearchIssues(ctx, []string{
		"repo:" + c.tracker.Repo,
		"state:closed",
		"in:title",
		"type:pr",
		ref + " ",
		ref + ",",
		ref + ":",
		ref + ")",
	})
	if err != nil {
		return "", err
	}

	for _, issue := range issues {
		// A pull request numbered like the ticket is unrelated.
		if issue.Number == ticket {
			continue
		}
		merged, err := c.github.PullMerged(ctx, c.tracker.Repo, issue.Number)
		if err != nil {
			return "", err
		}
		if merged {
			return c.github.PullMergeCommit(ctx, c.tracker.Repo, issue.Number)
		}

		comments, err := c.github.IssueComments(ctx, c.tracker.Repo, issue.Number)
		if err != nil {
			return "", err
		}
		for _, body := range comments {
			if sub := mergeCommentPattern.FindStringSubmatch(body); sub != nil {
				return sub[1], nil
			}
		}
	}
	return "", nil
}
