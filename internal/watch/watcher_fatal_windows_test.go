// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	fatal := []error{errnoTooManyOpenFiles, errnoInvalidHandle, errnoNotEnoughMemory, fmt.Errorf("ReadDirectoryChangesW: %w", errnoInvalidHandle)}
	for _, err := range fatal {
		if !isFatalFsnotifyError(err) {
			t.Errorf("%v should stop the watcher", err)
		}
	}

	recoverable := []error{syscall.Errno(5), syscall.Errno(2), errors.New("queue overflow")}
	for _, err := range recoverable {
		if isFatalFsnotifyError(err) {
			t.Errorf("%v should only be logged", err)
		}
	}
}
