// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package carchive

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/zeebo/blake3"
)

// Multihash function codes accepted by the verifying reader.
const (
	multihashSHA256 = 0x12
	multihashBlake3 = 0x1e
)

// cidLen returns the byte length of the CIDv1 at the start of entry
// without materializing it: 0x01 + codec varint + multihash code
// varint + digest length varint + digest. off is the absolute file
// offset of entry, used only for error context.
func cidLen(entry []byte, off int64) (int, error) {
	if len(entry) == 0 {
		return 0, truncatedErr(off, "empty frame, no content address")
	}
	if entry[0] != 0x01 {
		return 0, formatErr(off, "expected CIDv1 prefix 0x01, got 0x%02x", entry[0])
	}

	pos := 1
	for _, field := range []string{"codec", "multihash code"} {
		_, n, err := readUvarint(entry, int64(pos))
		if err != nil {
			return 0, formatErr(off, "%s varint malformed", field)
		}
		pos += n
	}

	digestLen, n, err := readUvarint(entry, int64(pos))
	if err != nil {
		return 0, formatErr(off, "digest length varint malformed")
	}
	pos += n

	end := pos + int(digestLen)
	if digestLen > uint64(len(entry)) || end > len(entry) {
		return 0, truncatedErr(off, "digest reaches past frame end")
	}
	return end, nil
}

// verifyCID recomputes the content address over payload and compares
// it to the digest embedded in cid. Only sha2-256 and blake3
// multihashes are supported; any other function code is rejected.
func verifyCID(cid, payload []byte, off int64) error {
	pos := 1 // 0x01 version prefix, validated by cidLen

	_, n, err := readUvarint(cid, int64(pos))
	if err != nil {
		return formatErr(off, "codec varint malformed")
	}
	pos += n

	hashCode, n, err := readUvarint(cid, int64(pos))
	if err != nil {
		return formatErr(off, "multihash code varint malformed")
	}
	pos += n

	digestLen, n, err := readUvarint(cid, int64(pos))
	if err != nil {
		return formatErr(off, "digest length varint malformed")
	}
	pos += n
	digest := cid[pos:]
	if uint64(len(digest)) != digestLen {
		return formatErr(off, "digest length %d does not match declared %d", len(digest), digestLen)
	}

	if len(digest) > 32 {
		return formatErr(off, "digest longer than 32 bytes (%d)", len(digest))
	}

	var computed [32]byte
	switch hashCode {
	case multihashSHA256:
		computed = sha256.Sum256(payload)
	case multihashBlake3:
		computed = blake3.Sum256(payload)
	default:
		return formatErr(off, "unsupported multihash function 0x%x", hashCode)
	}

	if !bytes.Equal(computed[:len(digest)], digest) {
		return fmt.Errorf("%w: frame at offset %d", ErrDigestMismatch, off)
	}
	return nil
}
