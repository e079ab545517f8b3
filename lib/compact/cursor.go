// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import "encoding/binary"

func appendUvarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

// byteCursor is a bounds-checked sequential reader over a record's
// bytes. ctx names the record for error messages.
type byteCursor struct {
	data []byte
	pos  int
	ctx  string
}

func (c *byteCursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *byteCursor) errf(format string, args ...any) error {
	return formatErr(c.ctx, format, args...)
}

func (c *byteCursor) take(n int, field string) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, c.errf("%s needs %d bytes, %d remain", field, n, c.remaining())
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *byteCursor) u8(field string) (byte, error) {
	b, err := c.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *byteCursor) u32(field string) (uint32, error) {
	b, err := c.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *byteCursor) u64(field string) (uint64, error) {
	b, err := c.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *byteCursor) uvarint(field string) (uint64, error) {
	v, n := binary.Uvarint(c.data[c.pos:])
	if n <= 0 {
		return 0, c.errf("bad %s varint at offset %d", field, c.pos)
	}
	c.pos += n
	return v, nil
}

func (c *byteCursor) uvarint32(field string) (uint32, error) {
	v, err := c.uvarint(field)
	if err != nil {
		return 0, err
	}
	if v > 0xffffffff {
		return 0, c.errf("%s %d overflows uint32", field, v)
	}
	return uint32(v), nil
}

// frame reads a uvarint length prefix and returns that many bytes.
func (c *byteCursor) frame(field string) ([]byte, error) {
	n, err := c.uvarint(field)
	if err != nil {
		return nil, err
	}
	if n > uint64(c.remaining()) {
		return nil, c.errf("%s length %d exceeds %d remaining bytes", field, n, c.remaining())
	}
	return c.take(int(n), field)
}

// idList reads a uvarint count followed by that many uvarint IDs.
func (c *byteCursor) idList(field string) ([]uint32, error) {
	count, err := c.uvarint(field)
	if err != nil {
		return nil, err
	}
	if count > uint64(c.remaining()) {
		return nil, c.errf("%s count %d exceeds remaining bytes", field, count)
	}
	if count == 0 {
		return nil, nil
	}
	out := make([]uint32, count)
	for i := range out {
		if out[i], err = c.uvarint32(field); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendIDList(buf []byte, ids []uint32) []byte {
	buf = appendUvarint(buf, uint64(len(ids)))
	for _, id := range ids {
		buf = appendUvarint(buf, uint64(id))
	}
	return buf
}

func appendFrame(buf, data []byte) []byte {
	buf = appendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

// Zigzag encoding for signed values stored as uvarints.
func zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
