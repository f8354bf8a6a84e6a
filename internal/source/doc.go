// SPDX-License-Identifier: MPL-2.0

// Package source fetches the raw text of files from the places code is
// copied from: Python distributions published on a package index,
// distributions installed in a local site-packages directory, GitHub
// repositories and arbitrary git remotes.
//
// The package is organized by concern:
//   - source.go: FetchKey and the Text value with its FileNotFound sentinel
//   - pypi.go: JSON API client for a Python package index
//   - archive.go: wheel (zip) and sdist (tar.gz) member extraction
//   - checksum.go: SHA256 verification of downloaded artifacts
//   - installed.go: reader for installed distributions
//   - github.go: REST and raw-content client for GitHub
//   - git.go: go-git based reader for any git remote
//   - scratch.go: scratch directories with guaranteed removal
//
// A file that does not exist at a given version is not an error: fetchers
// return FileNotFound for it so callers can report that the file
// disappeared.
package source
