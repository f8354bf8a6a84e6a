// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"

	"github.com/raincoat-go/raincoat/pkg/types"
)

// ExitError carries the process status out of a RunE handler. With a nil
// Err the output was already written and fang stays silent.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// exitFor returns an ExitError for a run that reported n items, or nil.
func exitFor(n int) error {
	if code := types.ExitCodeFor(n); !code.IsSuccess() {
		return &ExitError{Code: code}
	}
	return nil
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "exit status " + e.Code.String()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitStatus picks the status Execute terminates with for err.
func exitStatus(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code.Validate() == nil {
		return int(exitErr.Code)
	}
	return int(types.ExitReported)
}
