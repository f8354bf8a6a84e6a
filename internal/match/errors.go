// SPDX-License-Identifier: MPL-2.0

package match

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotMatching is returned by a kind's Parse when the comment
	// arguments do not form a valid match. The comment is skipped with a
	// warning.
	ErrNotMatching = errors.New("comment does not match")

	// ErrUnknownKind is returned when no kind is registered for a name.
	ErrUnknownKind = errors.New("unknown match kind")

	// ErrMisconfigured is returned when a comment refers to a file or an
	// element that does not exist at its pinned version although it does
	// exist at the current one.
	ErrMisconfigured = errors.New("invalid Raincoat comment")
)

// MisconfigurationError names the offending path and element and every
// match that refers to it. It wraps ErrMisconfigured for errors.Is()
// compatibility.
type MisconfigurationError struct {
	Path    string
	Element string // empty when the whole file is missing
	Pinned  string
	Current string
	Matches []Match
}

// Error implements the error interface.
func (e *MisconfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid Raincoat comment: ")
	if e.Element != "" {
		fmt.Fprintf(&b, "%s does not exist in %s", e.Element, e.Path)
	} else {
		fmt.Fprintf(&b, "%s does not exist", e.Path)
	}
	fmt.Fprintf(&b, " at %s but exists at %s", e.Pinned, e.Current)

	locs := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		locs = append(locs, m.Location().String())
	}
	if len(locs) > 0 {
		fmt.Fprintf(&b, " (referenced from %s)", strings.Join(locs, ", "))
	}
	return b.String()
}

// Unwrap returns ErrMisconfigured so callers can use errors.Is for programmatic detection.
func (e *MisconfigurationError) Unwrap() error { return ErrMisconfigured }
