// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	// MisconfiguredCommentID is raised when a comment names code that does
	// not exist at its pinned version.
	MisconfiguredCommentID ID = iota + 1
	// RateLimitedID is raised when GitHub refuses requests.
	RateLimitedID
	// UnsupportedArchiveID is raised when a distribution cannot be opened.
	UnsupportedArchiveID
	// ConfigLoadFailedID is raised when the configuration cannot be read.
	ConfigLoadFailedID
	// SyntaxErrorID is raised when fetched code cannot be parsed.
	SyntaxErrorID
)

type (
	// ID identifies an issue.
	ID int

	// MarkdownMsg is Markdown text rendered for the terminal.
	MarkdownMsg string

	// HTTPLink is a link to further documentation.
	HTTPLink string

	// Issue is a troubleshooting guide for one failure class.
	Issue struct {
		id       ID
		mdMsg    MarkdownMsg
		docLinks []HTTPLink
		matches  []error // sentinels whose presence in an error chain selects this issue
	}
)

var (
	render = glamour.Render

	// Errors selecting each issue are attached at startup with Register.
	issues = map[ID]*Issue{
		MisconfiguredCommentID: {
			id: MisconfiguredCommentID,
			mdMsg: `
# A Raincoat comment points at nothing

The comment names a file or element that does not exist at the **pinned**
version, although it exists at the current one.

## Things you can try
- Check the path and element name for typos
- Update the pinned version to the one you actually copied from
- Remove the comment if the copied code is gone from your project`,
		},
		RateLimitedID: {
			id: RateLimitedID,
			mdMsg: `
# GitHub is rate limiting requests

Anonymous requests are limited to 60 per hour.

## Things you can try
- Set a token:
~~~
$ export GITHUB_TOKEN=ghp_...
~~~
- Wait for the reset time shown in the error and retry`,
			docLinks: []HTTPLink{"https://docs.github.com/rest/using-the-rest-api/rate-limits-for-the-rest-api"},
		},
		UnsupportedArchiveID: {
			id: UnsupportedArchiveID,
			mdMsg: `
# The distribution could not be opened

Only wheels (` + "`.whl`" + `) and gzipped source tarballs (` + "`.tar.gz`" + `) are read.

## Things you can try
- Prefer the other distribution type:
~~~toml
[pypi]
prefer_sdist = true
~~~
- Narrow the wheels considered with ` + "`pypi.match_wheel`",
		},
		ConfigLoadFailedID: {
			id: ConfigLoadFailedID,
			mdMsg: `
# The configuration could not be loaded

Raincoat reads ` + "`raincoat.toml`" + `, then the ` + "`[tool.raincoat]`" + ` table of
` + "`pyproject.toml`" + `, then ` + "`RAINCOAT_*`" + ` environment variables.

## Things you can try
- Show the effective configuration:
~~~
$ raincoat config show
~~~
- Check the TOML syntax of the file named in the error`,
		},
		SyntaxErrorID: {
			id: SyntaxErrorID,
			mdMsg: `
# Fetched code could not be parsed

An element was requested from a file that is not valid Python at one of
the compared versions. Other files are still checked.

## Things you can try
- Drop the ` + "`element`" + ` argument to compare the whole file
- Pin a version where the file parses`,
		},
	}
)

// Register makes err select the issue id when it appears in an error chain.
func Register(id ID, err error) {
	if i, ok := issues[id]; ok && !slices.Contains(i.matches, err) {
		i.matches = append(i.matches, err)
	}
}

// ID returns the issue identifier.
func (i *Issue) ID() ID {
	return i.id
}

// MarkdownMsg returns the unrendered guide.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns links to further documentation.
func (i *Issue) DocLinks() []HTTPLink {
	return slices.Clone(i.docLinks)
}

// Render renders the guide for the terminal using the glamour style at
// stylePath, or a standard style name such as "dark" or "notty".
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

// Values returns every issue ordered by ID.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

// Get returns the issue id, or nil.
func Get(id ID) *Issue {
	return issues[id]
}

// For returns the issue whose registered errors appear in err's chain,
// or nil when none does.
func For(err error) *Issue {
	for _, i := range Values() {
		for _, target := range i.matches {
			if errors.Is(err, target) {
				return i
			}
		}
	}
	return nil
}
