// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared by the CLI and its callers.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ExitCode is the process status raincoat terminates with.
type ExitCode int

const (
	// ExitClean means nothing was reported.
	ExitClean ExitCode = 0
	// ExitReported means at least one finding or error was reported.
	ExitReported ExitCode = 1
)

// ErrInvalidExitCode is wrapped by every error returned from Validate.
var ErrInvalidExitCode = errors.New("invalid exit code")

// ExitCodeFor maps the number of reported items of a run to its status.
func ExitCodeFor(reported int) ExitCode {
	if reported > 0 {
		return ExitReported
	}
	return ExitClean
}

// Validate rejects statuses a POSIX process cannot return.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return fmt.Errorf("%w %d: must be within 0-255", ErrInvalidExitCode, int(c))
	}
	return nil
}

// IsSuccess reports whether c is ExitClean.
func (c ExitCode) IsSuccess() bool { return c == ExitClean }

func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
