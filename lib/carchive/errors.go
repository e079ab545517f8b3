// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package carchive

import (
	"errors"
	"fmt"
)

// ErrTruncated reports a frame whose declared length reaches past the
// end of the mapped file. Check with errors.Is. This is the reader's
// primary safety contract: a corrupt or adversarial length prefix
// produces this error, never an out-of-bounds access.
var ErrTruncated = errors.New("truncated archive")

// ErrDigestMismatch reports a frame whose payload does not hash to
// its content address. Only the verifying reader produces it.
var ErrDigestMismatch = errors.New("content address digest mismatch")

// FormatError describes malformed framing in a content-addressed
// archive: a bad header, an overlong varint, an invalid content
// address, or a frame length that exceeds the file. Offset is the
// byte position of the offending frame.
type FormatError struct {
	Offset int64
	Msg    string
	cause  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("archive format error at offset %d: %s", e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() error {
	return e.cause
}

func formatErr(offset int64, format string, args ...any) error {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func truncatedErr(offset int64, format string, args ...any) error {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...), cause: ErrTruncated}
}
