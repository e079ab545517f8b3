// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message: the command has already written its own output, and
// main exits with Code instead of displaying the error string. Used by
// commands where a non-zero exit is a valid outcome rather than an
// unexpected failure.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code; main checks for this interface on
// returned errors.
func (e *ExitError) ExitCode() int {
	return e.Code
}
