// SPDX-License-Identifier: MPL-2.0

package source

import (
	"fmt"
	"slices"
)

type (
	// FetchKey identifies one version of one origin. It is used as a cache
	// key, so two matches resolving to the same key share a single fetch.
	FetchKey struct {
		// Origin is the package name or repository identifier.
		Origin string
		// Version is a release version, a commit or a branch name.
		Version string
		// Installed is true when the files are read from a local installation.
		Installed bool
	}

	// Text is the content of one file at one FetchKey.
	// The zero value is FileNotFound.
	Text struct {
		Content string
		Found   bool
	}
)

// FileNotFound marks a requested file that does not exist at the fetched version.
var FileNotFound = Text{}

// Found wraps file content that was successfully read.
func Found(content string) Text {
	return Text{Content: content, Found: true}
}

// String renders the key as origin==version, with an "(installed)" suffix
// for local installations.
func (k FetchKey) String() string {
	if k.Installed {
		return fmt.Sprintf("%s==%s (installed)", k.Origin, k.Version)
	}
	return fmt.Sprintf("%s==%s", k.Origin, k.Version)
}

// Equal reports whether both texts are found with identical content, or
// both are missing.
func (t Text) Equal(other Text) bool {
	return t.Found == other.Found && t.Content == other.Content
}

// notFoundFor returns a result map with every path set to FileNotFound.
func notFoundFor(paths []string) map[string]Text {
	out := make(map[string]Text, len(paths))
	for _, p := range paths {
		out[p] = FileNotFound
	}
	return out
}

// uniquePaths returns the requested paths sorted and without duplicates.
func uniquePaths(paths []string) []string {
	out := slices.Clone(paths)
	slices.Sort(out)
	return slices.Compact(out)
}
