// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

// Package carchive reads content-addressed archives (the CARv1
// container format used by Solana epoch archives) through a read-only
// memory mapping.
//
// An archive is a varint-framed sequence: a header frame (a dag-cbor
// map with the format version and root addresses) followed by data
// frames, each holding a CIDv1 content address and an opaque payload.
// The reader never trusts a length prefix: every declared length is
// bounds-checked against the mapping before any slice is taken, so a
// truncated or adversarial file yields ErrTruncated rather than an
// out-of-bounds access.
//
// The reader does not verify that payloads hash to their content
// addresses; OpenVerified returns a variant that does, for untrusted
// inputs.
package carchive

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/blockzilla-foundation/blockzilla/lib/mapped"
)

// Version is the only content-archive header version this reader
// accepts.
const Version = 1

// Block is one addressed frame of the archive: a CIDv1 content
// address and the payload it names. Both slices alias the reader's
// memory mapping and are valid only until the reader is closed.
type Block struct {
	CID     []byte
	Payload []byte
}

// Header is the decoded archive header.
type Header struct {
	Version uint64            `cbor:"version"`
	Roots   []cbor.RawMessage `cbor:"roots"`
}

// Reader iterates the addressed blocks of one archive. It is
// forward-only; re-open the archive to restart. A Reader is not safe
// for concurrent use.
type Reader struct {
	file   *mapped.File
	data   []byte
	pos    int64 // next unread byte
	header Header
	verify bool
}

// Open maps the archive at path and validates its header. Payloads
// are not verified against their content addresses; use OpenVerified
// for untrusted inputs.
func Open(path string) (*Reader, error) {
	return open(path, false)
}

// OpenVerified is Open plus per-block digest verification: Next
// recomputes each payload's multihash and fails with
// ErrDigestMismatch if it does not match the content address.
func OpenVerified(path string) (*Reader, error) {
	return open(path, true)
}

func open(path string, verify bool) (*Reader, error) {
	file, err := mapped.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{file: file, data: file.Bytes(), verify: verify}
	if err := r.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	length, n, err := readUvarint(r.data, 0)
	if err != nil {
		return err
	}
	start := int64(n)
	end := start + int64(length)
	if length > uint64(len(r.data)) || end > int64(len(r.data)) {
		return truncatedErr(0, "header length %d exceeds file size %d", length, len(r.data))
	}

	if err := cbor.Unmarshal(r.data[start:end], &r.header); err != nil {
		return formatErr(0, "header is not valid cbor: %v", err)
	}
	if r.header.Version != Version {
		return formatErr(0, "unsupported archive version %d (want %d)", r.header.Version, Version)
	}

	r.pos = end
	return nil
}

// Header returns the decoded archive header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next addressed block, or io.EOF at a clean end of
// the archive. Any malformed or truncated frame is a *FormatError.
func (r *Reader) Next() (Block, error) {
	// Zero-length frames are padding; skip them the way the frame
	// producers expect.
	for {
		if r.pos == int64(len(r.data)) {
			return Block{}, io.EOF
		}

		frameOff := r.pos
		length, n, err := readUvarint(r.data, frameOff)
		if err != nil {
			return Block{}, err
		}

		start := frameOff + int64(n)
		end := start + int64(length)
		if length > uint64(len(r.data)) || end > int64(len(r.data)) {
			return Block{}, truncatedErr(frameOff, "frame length %d reaches past end of file", length)
		}
		r.pos = end

		if length == 0 {
			continue
		}

		entry := r.data[start:end]
		cl, err := cidLen(entry, frameOff)
		if err != nil {
			return Block{}, err
		}

		block := Block{CID: entry[:cl], Payload: entry[cl:]}
		if r.verify {
			if err := verifyCID(block.CID, block.Payload, frameOff); err != nil {
				return Block{}, err
			}
		}
		return block, nil
	}
}

// Links decodes the block's payload as dag-cbor and returns the raw
// CIDv1 bytes of every link (tag 42) it contains, in encounter order.
// Returns nil for payloads with no links. The returned slices are
// copies and do not alias the mapping.
func (b Block) Links() ([][]byte, error) {
	var root any
	if err := cbor.Unmarshal(b.Payload, &root); err != nil {
		return nil, fmt.Errorf("decoding payload for links: %w", err)
	}
	var links [][]byte
	collectLinks(root, &links)
	return links, nil
}

func collectLinks(value any, out *[][]byte) {
	switch v := value.(type) {
	case cbor.Tag:
		if v.Number == 42 {
			if raw, ok := v.Content.([]byte); ok && len(raw) > 1 {
				// dag-cbor link content carries a 0x00 multibase
				// prefix before the CID bytes.
				cid := make([]byte, len(raw)-1)
				copy(cid, raw[1:])
				*out = append(*out, cid)
				return
			}
		}
		collectLinks(v.Content, out)
	case []any:
		for _, item := range v {
			collectLinks(item, out)
		}
	case map[any]any:
		for _, item := range v {
			collectLinks(item, out)
		}
	case map[string]any:
		for _, item := range v {
			collectLinks(item, out)
		}
	}
}

// Close unmaps the archive. All blocks returned by Next are invalid
// afterwards.
func (r *Reader) Close() error {
	return r.file.Close()
}
