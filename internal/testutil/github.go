// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// GitHub is an in-process stand-in for the GitHub API and raw content
// host. Repositories, branches and files are registered up front; the
// Mux can take extra handlers for anything else a test needs.
type GitHub struct {
	Mux    *http.ServeMux
	server *httptest.Server

	mu       sync.Mutex
	defaults map[string]string            // repo -> default branch
	branches map[string]string            // repo#branch -> sha
	files    map[string]map[string]string // repo@ref -> path -> content
}

// NewGitHub starts a GitHub fake that is shut down when the test ends.
func NewGitHub(t testing.TB) *GitHub {
	t.Helper()

	g := &GitHub{
		Mux:      http.NewServeMux(),
		defaults: make(map[string]string),
		branches: make(map[string]string),
		files:    make(map[string]map[string]string),
	}
	g.Mux.HandleFunc("GET /repos/{owner}/{name}", g.serveRepo)
	g.Mux.HandleFunc("GET /repos/{owner}/{name}/branches/{branch}", g.serveBranch)
	g.Mux.HandleFunc("GET /raw/{owner}/{name}/{ref}/{path...}", g.serveRaw)
	g.server = httptest.NewServer(g.Mux)
	t.Cleanup(g.server.Close)
	return g
}

// URL returns the API base URL.
func (g *GitHub) URL() string { return g.server.URL }

// RawURL returns the raw content base URL.
func (g *GitHub) RawURL() string { return g.server.URL + "/raw" }

// SetBranch points branch of repo at sha. The first branch set for a
// repository becomes its default branch.
func (g *GitHub) SetBranch(repo, branch, sha string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.defaults[repo]; !ok {
		g.defaults[repo] = branch
	}
	g.branches[repo+"#"+branch] = sha
}

// AddFiles publishes files in repo at ref.
func (g *GitHub) AddFiles(repo, ref string, files map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := repo + "@" + ref
	if g.files[key] == nil {
		g.files[key] = make(map[string]string)
	}
	for p, content := range files {
		g.files[key][p] = content
	}
}

func (g *GitHub) serveRepo(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	branch, ok := g.defaults[repoOf(r)]
	g.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, `{"default_branch": %q}`, branch)
}

func (g *GitHub) serveBranch(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	sha, ok := g.branches[repoOf(r)+"#"+r.PathValue("branch")]
	g.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, `{"commit": {"sha": %q}}`, sha)
}

func (g *GitHub) serveRaw(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	content, ok := g.files[repoOf(r)+"@"+r.PathValue("ref")][strings.TrimPrefix(r.PathValue("path"), "/")]
	g.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, content)
}

func repoOf(r *http.Request) string {
	return r.PathValue("owner") + "/" + r.PathValue("name")
}
