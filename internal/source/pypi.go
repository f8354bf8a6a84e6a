// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"
)

const (
	// PackageTypeWheel is the index package type of a wheel.
	PackageTypeWheel = "bdist_wheel"
	// PackageTypeSdist is the index package type of a source distribution.
	PackageTypeSdist = "sdist"
)

type (
	// Distribution is one downloadable artifact of a release.
	Distribution struct {
		Filename    string
		URL         string
		PackageType string
		SHA256      string
	}

	// PyPIClient queries a Python package index JSON API for release
	// information and downloads distributions.
	PyPIClient struct {
		httpClient  *http.Client
		baseURL     string // Index base URL (default: "https://pypi.org")
		userAgent   string
		wheelGlob   string // Glob a wheel filename must match (default: "*")
		preferSdist bool
		logger      *log.Logger
	}

	// PyPIOption configures a PyPIClient during construction.
	PyPIOption func(*PyPIClient)

	// pypiFile is the JSON wire format of one release file.
	pypiFile struct {
		Filename    string            `json:"filename"`
		URL         string            `json:"url"`
		PackageType string            `json:"packagetype"`
		Digests     map[string]string `json:"digests"`
		Yanked      bool              `json:"yanked"`
	}

	// pypiProject is the JSON wire format of /pypi/<name>/json.
	pypiProject struct {
		Releases map[string][]pypiFile `json:"releases"`
	}

	// pypiRelease is the JSON wire format of /pypi/<name>/<version>/json.
	pypiRelease struct {
		URLs []pypiFile `json:"urls"`
	}
)

// WithPyPIBaseURL overrides the package index base URL, primarily for test servers.
func WithPyPIBaseURL(base string) PyPIOption {
	return func(c *PyPIClient) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithPyPIHTTPClient sets a custom HTTP client.
func WithPyPIHTTPClient(hc *http.Client) PyPIOption {
	return func(c *PyPIClient) {
		c.httpClient = hc
	}
}

// WithPyPIUserAgent sets the User-Agent header sent with every request.
func WithPyPIUserAgent(ua string) PyPIOption {
	return func(c *PyPIClient) {
		c.userAgent = ua
	}
}

// WithWheelGlob restricts the wheels considered for download to filenames
// matching pattern (e.g., "*py3-none-any.whl").
func WithWheelGlob(pattern string) PyPIOption {
	return func(c *PyPIClient) {
		if pattern != "" {
			c.wheelGlob = pattern
		}
	}
}

// WithPreferSdist makes the client download the source distribution even
// when a wheel is available.
func WithPreferSdist(prefer bool) PyPIOption {
	return func(c *PyPIClient) {
		c.preferSdist = prefer
	}
}

// WithPyPILogger sets the logger used for debug output.
func WithPyPILogger(l *log.Logger) PyPIOption {
	return func(c *PyPIClient) {
		c.logger = l
	}
}

// NewPyPIClient creates a PyPIClient with sensible defaults.
func NewPyPIClient(opts ...PyPIOption) *PyPIClient {
	c := &PyPIClient{
		httpClient: http.DefaultClient,
		baseURL:    "https://pypi.org",
		userAgent:  defaultUserAgent,
		wheelGlob:  "*",
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestVersion returns the highest stable version published for pkg.
// Version strings that are not valid semantic versions are skipped, as
// are prereleases.
func (c *PyPIClient) LatestVersion(ctx context.Context, pkg string) (string, error) {
	var project pypiProject
	if err := c.getJSON(ctx, fmt.Sprintf("%s/pypi/%s/json", c.baseURL, url.PathEscape(pkg)), &project); err != nil {
		return "", fmt.Errorf("listing versions of %s: %w", pkg, err)
	}

	versions := make([]string, 0, len(project.Releases))
	for v := range project.Releases {
		versions = append(versions, v)
	}

	latest, err := SelectLatest(versions)
	if err != nil {
		return "", fmt.Errorf("selecting latest version of %s: %w", pkg, err)
	}
	c.logger.Debug("resolved latest version", "package", pkg, "version", latest)
	return latest, nil
}

// Release lists the distributions published for pkg at version.
func (c *PyPIClient) Release(ctx context.Context, pkg, version string) ([]Distribution, error) {
	var release pypiRelease
	reqURL := fmt.Sprintf("%s/pypi/%s/%s/json", c.baseURL, url.PathEscape(pkg), url.PathEscape(version))
	if err := c.getJSON(ctx, reqURL, &release); err != nil {
		return nil, fmt.Errorf("getting release %s==%s: %w", pkg, version, err)
	}

	dists := make([]Distribution, 0, len(release.URLs))
	for _, f := range release.URLs {
		if f.Yanked {
			continue
		}
		dists = append(dists, Distribution{
			Filename:    f.Filename,
			URL:         f.URL,
			PackageType: f.PackageType,
			SHA256:      f.Digests["sha256"],
		})
	}
	return dists, nil
}

// Download picks a distribution of pkg==version, downloads it into dir
// and verifies its digest. It returns the path of the downloaded archive.
func (c *PyPIClient) Download(ctx context.Context, pkg, version, dir string) (string, error) {
	dists, err := c.Release(ctx, pkg, version)
	if err != nil {
		return "", err
	}

	dist, err := c.pickDistribution(dists)
	if err != nil {
		return "", fmt.Errorf("%s==%s: %w", pkg, version, err)
	}

	target := filepath.Join(dir, filepath.Base(dist.Filename))
	if err := c.downloadTo(ctx, dist.URL, target); err != nil {
		return "", err
	}
	if err := VerifyFile(target, dist.SHA256); err != nil {
		return "", err
	}

	c.logger.Debug("downloaded distribution", "package", pkg, "version", version, "file", dist.Filename)
	return target, nil
}

// Fetch downloads pkg==version into a scratch directory and reads the
// requested paths from it. The scratch directory is removed before Fetch
// returns, whatever the outcome.
func (c *PyPIClient) Fetch(ctx context.Context, pkg, version string, paths []string) (_ map[string]Text, err error) {
	cleaner := NewCleaner()
	defer func() {
		if cleanErr := cleaner.Close(); cleanErr != nil && err == nil {
			err = fmt.Errorf("removing scratch directory: %w", cleanErr)
		}
	}()

	dir, err := cleaner.MkdirTemp("raincoat-pypi-*")
	if err != nil {
		return nil, err
	}

	archive, err := c.Download(ctx, pkg, version, dir)
	if err != nil {
		return nil, err
	}
	return OpenArchive(archive, paths)
}

// pickDistribution selects the wheel matching the configured glob, or the
// sdist, honoring the sdist preference. Each kind falls back to the other.
func (c *PyPIClient) pickDistribution(dists []Distribution) (Distribution, error) {
	var wheel, sdist *Distribution
	for i := range dists {
		d := &dists[i]
		switch d.PackageType {
		case PackageTypeWheel:
			if wheel != nil {
				continue
			}
			if ok, _ := doublestar.Match(c.wheelGlob, d.Filename); ok {
				wheel = d
			}
		case PackageTypeSdist:
			if sdist == nil {
				sdist = d
			}
		}
	}

	order := []*Distribution{wheel, sdist}
	if c.preferSdist {
		order = []*Distribution{sdist, wheel}
	}
	for _, d := range order {
		if d != nil {
			return *d, nil
		}
	}
	return Distribution{}, ErrNoDistribution
}

func (c *PyPIClient) getJSON(ctx context.Context, reqURL string, v any) error {
	req, err := newGetRequest(ctx, reqURL, http.Header{
		"Accept":     {"application/json"},
		"User-Agent": {c.userAgent},
	})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: redactURL(reqURL), StatusCode: resp.StatusCode}
	}
	return decodeJSON(resp.Body, v)
}

// downloadTo streams the body at reqURL into target.
func (c *PyPIClient) downloadTo(ctx context.Context, reqURL, target string) (err error) {
	req, err := newGetRequest(ctx, reqURL, http.Header{"User-Agent": {c.userAgent}})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", redactURL(reqURL), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: redactURL(reqURL), StatusCode: resp.StatusCode}
	}

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}

// SelectLatest returns the highest stable semantic version among versions.
// A leading "v" is optional. Invalid strings and prereleases are skipped.
// Two strings that denote the same highest version are reported as
// ErrAmbiguousVersion.
func SelectLatest(versions []string) (string, error) {
	sorted := slices.Clone(versions)
	slices.Sort(sorted)

	best, bestCanon := "", ""
	spellings := make(map[string][]string)
	for _, v := range sorted {
		canon := canonicalVersion(v)
		if canon == "" || semver.Prerelease(canon) != "" {
			continue
		}
		spellings[canon] = append(spellings[canon], v)
		if best == "" || semver.Compare(canon, bestCanon) > 0 {
			best, bestCanon = v, canon
		}
	}

	if best == "" {
		return "", ErrNoVersion
	}
	if s := spellings[bestCanon]; len(s) > 1 {
		return "", fmt.Errorf("%w: %s", ErrAmbiguousVersion, strings.Join(s, ", "))
	}
	return best, nil
}

// canonicalVersion normalizes v to the "vMAJOR.MINOR.PATCH[-pre]" form
// used by the semver package, or "" when v is not a semantic version.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
