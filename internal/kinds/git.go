// SPDX-License-Identifier: MPL-2.0

package kinds

import (
	"context"
	"fmt"
	"strings"

	"github.com/raincoat-go/raincoat/internal/check"
	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/source"
)

type (
	// GitMatch points at code in any git remote at a revision. The URL is
	// split from the revision at the last "@".
	//
	//	# Raincoat: git url: https://git.example.com/umbrella.git@v1.2 path: umbrella.py branch: main
	GitMatch struct {
		codeLocation
		URL      string
		Revision string
		Branch   string
	}

	gitBinding struct {
		reader *source.GitReader
	}
)

func gitKind(deps Deps) match.Kind {
	b := &gitBinding{reader: deps.Git}
	return match.Kind{
		Name:  KindGit,
		Parse: parseGit,
		NewChecker: func(env match.Env) match.Checker {
			return check.New(b, env)
		},
	}
}

func parseGit(loc match.Location, args match.Args) (match.Match, error) {
	urlArg, err := args.Require("url")
	if err != nil {
		return nil, err
	}
	url, rev, err := splitPin(urlArg, "@")
	if err != nil {
		return nil, err
	}
	if strings.ContainsAny(rev, "/:") {
		return nil, fmt.Errorf("%w: %q has no revision after the URL", match.ErrNotMatching, urlArg)
	}
	cl, err := newCodeLocation(loc, args)
	if err != nil {
		return nil, err
	}
	return &GitMatch{codeLocation: cl, URL: url, Revision: rev, Branch: strings.TrimSpace(args["branch"])}, nil
}

// Kind implements match.Match.
func (m *GitMatch) Kind() string { return KindGit }

// Origin implements check.CodeMatch.
func (m *GitMatch) Origin() string { return m.URL + "#" + m.Branch }

// Pinned implements check.CodeMatch.
func (m *GitMatch) Pinned() string { return m.Revision }

func (m *GitMatch) String() string {
	branch := m.Branch
	if branch == "" {
		branch = "HEAD"
	}
	head := ""
	if m.current != "" {
		head = fmt.Sprintf(" (%s)", shortSHA(m.current))
	}
	return fmt.Sprintf("%s@%s vs %s%s at %s (from %s)", m.URL, m.Revision, branch, head, m.target(), m.loc)
}

func (b *gitBinding) Name() string { return KindGit }

func (b *gitBinding) PinnedKey(m check.CodeMatch) source.FetchKey {
	return source.FetchKey{Origin: m.(*GitMatch).URL, Version: m.Pinned()}
}

func (b *gitBinding) CurrentKey(ctx context.Context, m check.CodeMatch) (source.FetchKey, error) {
	gm := m.(*GitMatch)
	sha, err := b.reader.BranchHead(ctx, gm.URL, gm.Branch)
	if err != nil {
		return source.FetchKey{}, err
	}
	return source.FetchKey{Origin: gm.URL, Version: sha}, nil
}

func (b *gitBinding) Fetch(ctx context.Context, key source.FetchKey, paths []string) (map[string]source.Text, error) {
	return b.reader.ReadFiles(ctx, key.Origin, key.Version, paths)
}
