// SPDX-License-Identifier: MPL-2.0

package source

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedArchive is returned when a downloaded artifact has an
	// extension that no archive reader handles.
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	// ErrNoDistribution is returned when a release publishes no artifact
	// that can be downloaded (no matching wheel and no sdist).
	ErrNoDistribution = errors.New("no usable distribution")

	// ErrNoVersion is returned when a package has no stable release.
	ErrNoVersion = errors.New("no stable version found")

	// ErrAmbiguousVersion is returned when two published version strings
	// denote the same semantic version.
	ErrAmbiguousVersion = errors.New("ambiguous version")

	// ErrNotInstalled is returned by the installed-distribution reader when
	// a package is not present in any site-packages directory.
	ErrNotInstalled = errors.New("distribution not installed")

	// ErrRateLimited is wrapped by RateLimitError.
	ErrRateLimited = errors.New("rate limited")

	// ErrMemberTooLarge is wrapped by MemberTooLargeError.
	ErrMemberTooLarge = errors.New("file too large")
)

type (
	// UnsupportedArchiveError names the archive whose format is not handled.
	// It wraps ErrUnsupportedArchive for errors.Is() compatibility.
	UnsupportedArchiveError struct {
		Name string
	}

	// StatusError is returned when a remote answers with an unexpected HTTP status.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// MemberTooLargeError is returned when a file read from an archive or
	// a raw download exceeds the size limit.
	MemberTooLargeError struct {
		Name  string
		Limit int
	}

	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}
)

// Error implements the error interface.
func (e *UnsupportedArchiveError) Error() string {
	return fmt.Sprintf("unsupported archive format: %s", e.Name)
}

// Unwrap returns ErrUnsupportedArchive so callers can use errors.Is for programmatic detection.
func (e *UnsupportedArchiveError) Unwrap() error { return ErrUnsupportedArchive }

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// Unwrap returns ErrRateLimited so callers can use errors.Is for programmatic detection.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

func (e *MemberTooLargeError) Error() string {
	return fmt.Sprintf("%s exceeds %d bytes", e.Name, e.Limit)
}

// Unwrap returns ErrMemberTooLarge.
func (e *MemberTooLargeError) Unwrap() error { return ErrMemberTooLarge }
