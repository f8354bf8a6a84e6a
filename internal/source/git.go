// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"golang.org/x/sync/singleflight"
)

var abbreviatedHash = regexp.MustCompile(`^[0-9a-fA-F]{4,39}$`)

type (
	// GitReader reads files from arbitrary git remotes. Each remote is
	// cloned at most once, into memory, and reused for every revision.
	GitReader struct {
		open   RepositoryOpener
		list   RefLister
		logger *log.Logger

		mu    sync.Mutex
		repos map[string]*git.Repository
		group singleflight.Group
	}

	// RepositoryOpener produces a repository for a remote URL.
	RepositoryOpener func(ctx context.Context, url string) (*git.Repository, error)

	// RefLister lists the refs advertised by a remote URL.
	RefLister func(ctx context.Context, url string) ([]*plumbing.Reference, error)

	// GitOption configures a GitReader during construction.
	GitOption func(*GitReader)
)

// WithRepositoryOpener replaces the in-memory clone, primarily for tests.
func WithRepositoryOpener(open RepositoryOpener) GitOption {
	return func(r *GitReader) {
		r.open = open
	}
}

// WithRefLister replaces the remote ref listing, primarily for tests.
func WithRefLister(list RefLister) GitOption {
	return func(r *GitReader) {
		r.list = list
	}
}

// WithGitLogger sets the logger used for debug output.
func WithGitLogger(l *log.Logger) GitOption {
	return func(r *GitReader) {
		r.logger = l
	}
}

// NewGitReader creates a GitReader that clones remotes into memory.
func NewGitReader(opts ...GitOption) *GitReader {
	r := &GitReader{
		open:   cloneInMemory,
		list:   listRemote,
		logger: log.New(io.Discard),
		repos:  make(map[string]*git.Repository),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BranchHead returns the commit at the head of branch on the remote, or
// the commit HEAD points to when branch is empty. Only refs are listed;
// nothing is cloned.
func (r *GitReader) BranchHead(ctx context.Context, url, branch string) (string, error) {
	refs, err := r.list(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to list remote refs of %s: %w", url, err)
	}

	want := plumbing.HEAD
	if branch != "" {
		want = plumbing.NewBranchReferenceName(branch)
	}

	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, ref := range refs {
		byName[ref.Name()] = ref
	}

	// HEAD is usually symbolic; follow at most one hop.
	ref, ok := byName[want]
	if ok && ref.Type() == plumbing.SymbolicReference {
		ref, ok = byName[ref.Target()]
	}
	if !ok {
		return "", fmt.Errorf("ref %s not found on %s", want, url)
	}
	return ref.Hash().String(), nil
}

// ReadFiles returns the requested paths at rev, which may be a full or
// abbreviated commit, a tag or a branch of the remote.
func (r *GitReader) ReadFiles(ctx context.Context, url, rev string, paths []string) (map[string]Text, error) {
	repo, err := r.repository(ctx, url)
	if err != nil {
		return nil, err
	}

	commit, err := resolveCommit(repo, rev)
	if err != nil {
		return nil, fmt.Errorf("resolving %s in %s: %w", rev, url, err)
	}

	out := notFoundFor(paths)
	for _, p := range uniquePaths(paths) {
		file, fileErr := commit.File(p)
		if errors.Is(fileErr, object.ErrFileNotFound) {
			continue
		}
		if fileErr != nil {
			return nil, fmt.Errorf("reading %s at %s: %w", p, rev, fileErr)
		}
		content, contentErr := file.Contents()
		if contentErr != nil {
			return nil, fmt.Errorf("reading %s at %s: %w", p, rev, contentErr)
		}
		out[p] = Found(content)
	}
	return out, nil
}

func listRemote(ctx context.Context, url string) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	return remote.ListContext(ctx, &git.ListOptions{})
}

// repository returns the memoized repository for url, opening it once.
func (r *GitReader) repository(ctx context.Context, url string) (*git.Repository, error) {
	r.mu.Lock()
	repo, ok := r.repos[url]
	r.mu.Unlock()
	if ok {
		return repo, nil
	}

	v, err, _ := r.group.Do(url, func() (any, error) {
		r.logger.Debug("cloning repository", "url", url)
		repo, err := r.open(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s: %w", url, err)
		}
		r.mu.Lock()
		r.repos[url] = repo
		r.mu.Unlock()
		return repo, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*git.Repository), nil
}

func resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	candidates := []plumbing.Revision{
		plumbing.Revision(rev),
		plumbing.Revision(plumbing.NewRemoteReferenceName("origin", rev)),
	}

	var firstErr error
	for _, c := range candidates {
		hash, err := repo.ResolveRevision(c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return repo.CommitObject(*hash)
	}

	if abbreviatedHash.MatchString(rev) {
		if commit, err := commitByPrefix(repo, strings.ToLower(rev)); err == nil {
			return commit, nil
		}
	}
	return nil, firstErr
}

// commitByPrefix scans every commit for a unique abbreviated hash match.
func commitByPrefix(repo *git.Repository, prefix string) (*object.Commit, error) {
	iter, err := repo.CommitObjects()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var found *object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if !strings.HasPrefix(c.Hash.String(), prefix) {
			return nil
		}
		if found != nil && found.Hash != c.Hash {
			return fmt.Errorf("abbreviated hash %s is ambiguous", prefix)
		}
		found = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, plumbing.ErrObjectNotFound
	}
	return found, nil
}

func cloneInMemory(ctx context.Context, url string) (*git.Repository, error) {
	return git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:  url,
		Tags: git.AllTags,
	})
}
