// SPDX-License-Identifier: MPL-2.0

// Package kinds provides the built-in match kinds:
//
//   - pypi: code copied from a distribution published on a package index
//   - pygithub: code copied from a GitHub repository
//   - git: code copied from any git remote
//   - django: a workaround waiting for a Django ticket to be merged
package kinds

import (
	"fmt"
	"strings"

	"github.com/raincoat-go/raincoat/internal/match"
	"github.com/raincoat-go/raincoat/internal/parse"
	"github.com/raincoat-go/raincoat/internal/source"
)

const (
	// KindPyPI is the name of the package index kind.
	KindPyPI = "pypi"
	// KindPyGitHub is the name of the GitHub repository kind.
	KindPyGitHub = "pygithub"
	// KindGit is the name of the git remote kind.
	KindGit = "git"
	// KindDjango is the name of the Django ticket kind.
	KindDjango = "django"
)

type (
	// Deps are the source clients the built-in kinds read from. A nil
	// Installed reader makes the pypi kind always compare against the
	// latest published version.
	Deps struct {
		PyPI         *source.PyPIClient
		Installed    *source.SitePackages
		GitHub       *source.GitHubClient
		Git          *source.GitReader
		IssueTracker IssueTracker
	}

	// IssueTracker names the repository searched for ticket fixes and the
	// distribution whose current version is checked for them.
	IssueTracker struct {
		Repo    string
		Package string
	}

	// codeLocation holds the fields shared by every kind that points at code.
	codeLocation struct {
		loc     match.Location
		path    string
		element string
		current string
	}
)

// Builtin returns the descriptors of every built-in kind.
func Builtin(deps Deps) []match.Kind {
	if deps.IssueTracker.Repo == "" {
		deps.IssueTracker.Repo = "django/django"
	}
	if deps.IssueTracker.Package == "" {
		deps.IssueTracker.Package = "django"
	}
	return []match.Kind{
		pypiKind(deps),
		pygithubKind(deps),
		gitKind(deps),
		djangoKind(deps),
	}
}

func newCodeLocation(loc match.Location, args match.Args) (codeLocation, error) {
	path, err := args.Require("path")
	if err != nil {
		return codeLocation{}, err
	}
	return codeLocation{loc: loc, path: strings.TrimSpace(path), element: strings.TrimSpace(args["element"])}, nil
}

// Location implements match.Match.
func (c *codeLocation) Location() match.Location { return c.loc }

// Path returns the file path inside the origin.
func (c *codeLocation) Path() string { return c.path }

// Element returns the dotted element name, or parse.WholeFile.
func (c *codeLocation) Element() string { return c.element }

// SetCurrent records the resolved current version.
func (c *codeLocation) SetCurrent(version string) { c.current = version }

// target renders "path:element", naming the whole module when no element is set.
func (c *codeLocation) target() string {
	element := c.element
	if element == parse.WholeFile {
		element = "whole module"
	}
	return fmt.Sprintf("%s:%s", c.path, element)
}

// splitPin splits "origin<sep>version" at the last sep.
func splitPin(value, sep string) (origin, version string, err error) {
	i := strings.LastIndex(value, sep)
	if i <= 0 || i+len(sep) >= len(value) {
		return "", "", fmt.Errorf("%w: %q is not of the form origin%sversion", match.ErrNotMatching, value, sep)
	}
	return strings.TrimSpace(value[:i]), strings.TrimSpace(value[i+len(sep):]), nil
}

// shortSHA abbreviates a commit hash for display.
func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
