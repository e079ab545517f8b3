// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package carchive

import "encoding/binary"

// readUvarint decodes an unsigned varint from data starting at off.
// Returns the value and the number of bytes consumed. A varint cut
// off by the end of data reports ErrTruncated; one longer than 64
// bits reports a plain format error.
func readUvarint(data []byte, off int64) (uint64, int, error) {
	value, n := binary.Uvarint(data[off:])
	switch {
	case n > 0:
		return value, n, nil
	case n < 0:
		return 0, 0, formatErr(off, "varint overflows 64 bits")
	default:
		return 0, 0, truncatedErr(off, "varint cut off by end of file")
	}
}
