// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// rawFetchConcurrency bounds parallel raw file downloads for one commit.
const rawFetchConcurrency = 4

type (
	// GitHubClient queries the GitHub REST API and the raw content host.
	GitHubClient struct {
		httpClient *http.Client
		baseURL    string // API base URL (default: "https://api.github.com", overridable for tests)
		rawURL     string // Raw content base URL (default: "https://raw.githubusercontent.com")
		token      string // Optional token; "user:token" selects basic auth
		userAgent  string
		logger     *log.Logger
	}

	// ClientOption configures a GitHubClient during construction.
	ClientOption func(*GitHubClient)

	// Issue is one search result from the issues search API.
	Issue struct {
		Number int
		Title  string
	}

	githubBranch struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}

	githubRepo struct {
		DefaultBranch string `json:"default_branch"`
	}

	githubSearch struct {
		Items []struct {
			Number int    `json:"number"`
			Title  string `json:"title"`
		} `json:"items"`
	}

	githubPull struct {
		MergeCommitSHA string `json:"merge_commit_sha"`
	}

	githubComment struct {
		Body string `json:"body"`
	}

	githubCompare struct {
		Status string `json:"status"`
	}
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the GitHub API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithRawURL overrides the raw content base URL.
func WithRawURL(raw string) ClientOption {
	return func(g *GitHubClient) {
		g.rawURL = strings.TrimRight(raw, "/")
	}
}

// WithToken sets a GitHub token for authenticated requests.
// Authenticated requests have a higher rate limit (5000/hour vs 60/hour).
// A "user:token" value is sent as basic auth, anything else as a bearer token.
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) {
		g.userAgent = ua
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) ClientOption {
	return func(g *GitHubClient) {
		g.logger = l
	}
}

// NewGitHubClient creates a GitHubClient with sensible defaults.
func NewGitHubClient(opts ...ClientOption) *GitHubClient {
	c := &GitHubClient{
		httpClient: http.DefaultClient,
		baseURL:    "https://api.github.com",
		rawURL:     "https://raw.githubusercontent.com",
		userAgent:  defaultUserAgent,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BranchCommit returns the SHA of the head commit of branch in repo ("owner/name").
func (c *GitHubClient) BranchCommit(ctx context.Context, repo, branch string) (string, error) {
	var b githubBranch
	if err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s/branches/%s", c.baseURL, repo, url.PathEscape(branch)), &b); err != nil {
		return "", fmt.Errorf("getting branch %s of %s: %w", branch, repo, err)
	}
	if b.Commit.SHA == "" {
		return "", fmt.Errorf("getting branch %s of %s: empty commit SHA", branch, repo)
	}
	return b.Commit.SHA, nil
}

// DefaultBranch returns the name of the default branch of repo.
func (c *GitHubClient) DefaultBranch(ctx context.Context, repo string) (string, error) {
	var r githubRepo
	if err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s", c.baseURL, repo), &r); err != nil {
		return "", fmt.Errorf("getting repository %s: %w", repo, err)
	}
	if r.DefaultBranch == "" {
		return "", fmt.Errorf("getting repository %s: no default branch", repo)
	}
	return r.DefaultBranch, nil
}

// ReadFiles downloads the given paths of repo at ref from the raw content
// host. A 404 maps to FileNotFound.
func (c *GitHubClient) ReadFiles(ctx context.Context, repo, ref string, paths []string) (map[string]Text, error) {
	unique := uniquePaths(paths)
	texts := make([]Text, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rawFetchConcurrency)
	for i, p := range unique {
		g.Go(func() error {
			t, err := c.readRaw(gctx, repo, ref, p)
			if err != nil {
				return err
			}
			texts[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := notFoundFor(paths)
	for i, p := range unique {
		out[p] = texts[i]
	}
	return out, nil
}

// SearchIssues runs an issue search. Each term is escaped on its own and
// the terms are joined with "+", the search API's AND separator.
func (c *GitHubClient) SearchIssues(ctx context.Context, terms []string) ([]Issue, error) {
	escaped := make([]string, len(terms))
	for i, term := range terms {
		escaped[i] = url.QueryEscape(term)
	}

	var res githubSearch
	if err := c.getJSON(ctx, c.baseURL+"/search/issues?q="+strings.Join(escaped, "+"), &res); err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}

	issues := make([]Issue, 0, len(res.Items))
	for _, it := range res.Items {
		issues = append(issues, Issue{Number: it.Number, Title: it.Title})
	}
	return issues, nil
}

// PullMerged reports whether pull request number of repo has been merged.
func (c *GitHubClient) PullMerged(ctx context.Context, repo string, number int) (bool, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/pulls/%d/merge", c.baseURL, repo, number)
	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return false, fmt.Errorf("checking merge of #%d: %w", number, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return false, err
	}
	switch resp.StatusCode {
	case http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &StatusError{URL: redactURL(reqURL), StatusCode: resp.StatusCode}
	}
}

// PullMergeCommit returns the merge commit SHA of pull request number.
func (c *GitHubClient) PullMergeCommit(ctx context.Context, repo string, number int) (string, error) {
	var p githubPull
	if err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s/pulls/%d", c.baseURL, repo, number), &p); err != nil {
		return "", fmt.Errorf("getting pull request #%d: %w", number, err)
	}
	return p.MergeCommitSHA, nil
}

// IssueComments returns the bodies of the comments on issue number.
func (c *GitHubClient) IssueComments(ctx context.Context, repo string, number int) ([]string, error) {
	var comments []githubComment
	if err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s/issues/%d/comments", c.baseURL, repo, number), &comments); err != nil {
		return nil, fmt.Errorf("listing comments of #%d: %w", number, err)
	}

	bodies := make([]string, 0, len(comments))
	for _, cm := range comments {
		bodies = append(bodies, cm.Body)
	}
	return bodies, nil
}

// CompareStatus returns the status of base...head ("ahead", "behind",
// "identical" or "diverged").
func (c *GitHubClient) CompareStatus(ctx context.Context, repo, base, head string) (string, error) {
	var cmp githubCompare
	reqURL := fmt.Sprintf("%s/repos/%s/compare/%s...%s", c.baseURL, repo, url.PathEscape(base), url.PathEscape(head))
	if err := c.getJSON(ctx, reqURL, &cmp); err != nil {
		return "", fmt.Errorf("comparing %s...%s: %w", base, head, err)
	}
	return cmp.Status, nil
}

func (c *GitHubClient) readRaw(ctx context.Context, repo, ref, p string) (Text, error) {
	reqURL := fmt.Sprintf("%s/%s/%s/%s", c.rawURL, repo, url.PathEscape(ref), p)
	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return Text{}, fmt.Errorf("downloading %s: %w", p, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		c.logger.Debug("raw file not found", "repo", repo, "ref", ref, "path", p)
		return FileNotFound, nil
	default:
		return Text{}, &StatusError{URL: redactURL(reqURL), StatusCode: resp.StatusCode}
	}

	content, err := readMember(resp.Body, p)
	if err != nil {
		return Text{}, fmt.Errorf("reading %s: %w", p, err)
	}
	return Found(content), nil
}

func (c *GitHubClient) getJSON(ctx context.Context, reqURL string, v any) error {
	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: redactURL(reqURL), StatusCode: resp.StatusCode}
	}
	return decodeJSON(resp.Body, v)
}

// doRequest creates and executes a GET request with common GitHub API headers.
func (c *GitHubClient) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := newGetRequest(ctx, reqURL, http.Header{
		"Accept":               {"application/vnd.github+json"},
		"X-GitHub-Api-Version": {"2022-11-28"},
		"User-Agent":           {c.userAgent},
	})
	if err != nil {
		return nil, err
	}

	if c.token != "" && c.isGitHubHost(req.URL) {
		if user, pass, ok := strings.Cut(c.token, ":"); ok {
			req.SetBasicAuth(user, pass)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// isGitHubHost reports whether reqURL targets the configured API or raw host,
// so the token is never sent anywhere else.
func (c *GitHubClient) isGitHubHost(reqURL *url.URL) bool {
	for _, base := range []string{c.baseURL, c.rawURL} {
		u, err := url.Parse(base)
		if err == nil && strings.EqualFold(reqURL.Host, u.Host) {
			return true
		}
	}
	return false
}

// checkRateLimit returns a RateLimitError for a 403 or 429 response whose
// X-RateLimit-Remaining header is zero. A successful response spending the
// last unit of quota is not an error.
func checkRateLimit(resp *http.Response) error {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}
