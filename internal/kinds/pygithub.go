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
	// PyGitHubMatch points at code in a GitHub repository at a commit. The
	// current version is the head of Branch, or of the default branch.
	//
	//	# Raincoat: pygithub repo: owner/name@3f2a1c9 path: pkg/mod.py element: func branch: main
	PyGitHubMatch struct {
		codeLocation
		Repo   string
		Commit string
		Branch string
	}

	pygithubBinding struct {
		client *source.GitHubClient
	}
)

func pygithubKind(deps Deps) match.Kind {
	b := &pygithubBinding{client: deps.GitHub}
	return match.Kind{
		Name:  KindPyGitHub,
		Parse: parsePyGitHub,
		NewChecker: func(env match.Env) match.Checker {
			return check.New(b, env)
		},
	}
}

func parsePyGitHub(loc match.Location, args match.Args) (match.Match, error) {
	repoArg, err := args.Require("repo")
	if err != nil {
		return nil, err
	}
	repo, commit, err := splitPin(repoArg, "@")
	if err != nil {
		return nil, err
	}
	if strings.Count(repo, "/") != 1 {
		return nil, fmt.Errorf("%w: repo %q is not of the form owner/name", match.ErrNotMatching, repo)
	}
	cl, err := newCodeLocation(loc, args)
	if err != nil {
		return nil, err
	}
	return &PyGitHubMatch{codeLocation: cl, Repo: repo, Commit: commit, Branch: strings.TrimSpace(args["branch"])}, nil
}

// Kind implements match.Match.
func (m *PyGitHubMatch) Kind() string { return KindPyGitHub }

// Origin implements check.CodeMatch. Matches tracking different branches
// of one repository resolve their current version separately.
func (m *PyGitHubMatch) Origin() string { return m.Repo + "#" + m.Branch }

// Pinned implements check.CodeMatch.
func (m *PyGitHubMatch) Pinned() string { return m.Commit }

func (m *PyGitHubMatch) String() string {
	branch := m.Branch
	if branch == "" {
		branch = "default"
	}
	head := ""
	if m.current != "" {
		head = fmt.Sprintf(" (%s)", shortSHA(m.current))
	}
	return fmt.Sprintf("%s@%s vs %s branch%s at %s (from %s)", m.Repo, m.Commit, branch, head, m.target(), m.loc)
}

func (b *pygithubBinding) Name() string { return KindPyGitHub }

func (b *pygithubBinding) PinnedKey(m check.CodeMatch) source.FetchKey {
	return source.FetchKey{Origin: m.(*PyGitHubMatch).Repo, Version: m.Pinned()}
}

func (b *pygithubBinding) CurrentKey(ctx context.Context, m check.CodeMatch) (source.FetchKey, error) {
	gm := m.(*PyGitHubMatch)
	branch := gm.Branch
	if branch == "" {
		var err error
		if branch, err = b.client.DefaultBranch(ctx, gm.Repo); err != nil {
			return source.FetchKey{}, err
		}
	}
	sha, err := b.client.BranchCommit(ctx, gm.Repo, branch)
	if err != nil {
		return source.FetchKey{}, err
	}
	return source.FetchKey{Origin: gm.Repo, Version: sha}, nil
}

func (b *pygithubBinding) Fetch(ctx context.Context, key source.FetchKey, paths []string) (map[string]source.Text, error) {
	return b.client.ReadFiles(ctx, key.Origin, key.Version, paths)
}
