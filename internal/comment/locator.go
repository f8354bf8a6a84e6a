// SPDX-License-Identifier: MPL-2.0

// Package comment finds marker comments in source text and turns them
// into matches, and walks a directory tree for the files to scan.
//
// A marker comment looks like
//
//	# Raincoat: pypi package: umbrella==1.0 path: umbrella/__init__.py element: Umbrella.open
//
// The word after the marker selects the match kind; the rest is a list
// of "key: value" pairs separated by whitespace. Parsing stops at the
// first token that is not a key, so a trailing "# noqa" is ignored.
package comment

import (
	"errors"
	"io"
	"iter"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/raincoat-go/raincoat/internal/match"
)

// DefaultMarker is the word that introduces a marker comment.
const DefaultMarker = "Raincoat"

// Locator extracts matches from text using a registry of kinds.
type Locator struct {
	registry *match.Registry
	logger   *log.Logger
	pattern  *regexp.Regexp
}

// NewLocator creates a Locator for comments introduced by marker.
func NewLocator(registry *match.Registry, logger *log.Logger, marker string) *Locator {
	if marker == "" {
		marker = DefaultMarker
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Locator{
		registry: registry,
		logger:   logger,
		pattern:  regexp.MustCompile(`# ` + regexp.QuoteMeta(marker) + `: ([a-z]+) ([^\r\n]*)`),
	}
}

// Locate yields the matches found in text, in order of appearance.
// Unrecognized comments are logged as warnings and skipped. The sequence
// is a pure function of its input and may be iterated several times.
func (l *Locator) Locate(text, file string) iter.Seq[match.Match] {
	return func(yield func(match.Match) bool) {
		for _, loc := range l.pattern.FindAllStringSubmatchIndex(text, -1) {
			line := strings.Count(text[:loc[0]], "\n") + 1
			kind := text[loc[2]:loc[3]]
			args := ParseArgs(text[loc[4]:loc[5]])

			m, err := l.registry.Parse(kind, match.Location{File: file, Line: line}, args)
			if err != nil {
				l.warn(err, file, line, text[loc[0]:loc[1]])
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

func (l *Locator) warn(err error, file string, line int, comment string) {
	if !errors.Is(err, match.ErrNotMatching) && !errors.Is(err, match.ErrUnknownKind) {
		l.logger.Warn("unable to build match", "file", file, "line", line, "err", err)
		return
	}
	l.logger.Warn("unrecognized Raincoat comment", "file", file, "line", line, "comment", strings.TrimSpace(comment), "reason", err)
}

// ParseArgs tokenizes "key: value key2: value2" pairs. Keys are bare words
// ending with a colon; "key:value" written without a space is accepted
// too. Unknown keys are kept for the kind to ignore. Tokenizing stops at
// the first token in key position that is not a key.
func ParseArgs(s string) match.Args {
	args := make(match.Args)
	fields := strings.Fields(s)
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if strings.HasPrefix(tok, "#") {
			break
		}
		key, value, ok := strings.Cut(tok, ":")
		if !ok || key == "" {
			break
		}
		if value == "" && i+1 < len(fields) {
			i++
			value = fields[i]
		}
		args[key] = value
	}
	return args
}
