// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv, MustUnsetenv),
// file operations (MustChdir, MustMkdirAll, MustWriteFile) and in-process fakes of
// the remote services raincoat reads from (PackageIndex, GitHub).
package testutil
