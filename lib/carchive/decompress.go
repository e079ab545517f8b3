// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package carchive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Envelope identifies the streaming compression wrapper around an
// archive in the on-disk cache.
type Envelope uint8

const (
	// EnvelopeNone means the file is a plain archive.
	EnvelopeNone Envelope = iota
	// EnvelopeZstd is a zstd stream (magic 28 B5 2F FD).
	EnvelopeZstd
	// EnvelopeLZ4 is an lz4 frame stream (magic 04 22 4D 18).
	EnvelopeLZ4
)

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// String returns the envelope's human-readable name.
func (e Envelope) String() string {
	switch e {
	case EnvelopeNone:
		return "none"
	case EnvelopeZstd:
		return "zstd"
	case EnvelopeLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

// DetectEnvelope sniffs the compression wrapper from the first bytes
// of a file.
func DetectEnvelope(head []byte) Envelope {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return EnvelopeZstd
	case bytes.HasPrefix(head, lz4Magic):
		return EnvelopeLZ4
	default:
		return EnvelopeNone
	}
}

// Decompress streams the compressed archive at src into a plain file
// at dst. The write goes through a temp file in dst's directory with
// an fsync before the rename, so a partially decompressed file is
// never visible under the final name. If src is not wrapped in a
// recognized envelope an error is returned; the caller should open
// the file directly instead.
func Decompress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(in, head)
	if err != nil && n < 4 {
		return fmt.Errorf("reading envelope magic from %s: %w", src, err)
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", src, err)
	}

	var decoded io.Reader
	switch DetectEnvelope(head) {
	case EnvelopeZstd:
		zr, err := zstd.NewReader(in)
		if err != nil {
			return fmt.Errorf("initializing zstd decoder for %s: %w", src, err)
		}
		defer zr.Close()
		decoded = zr
	case EnvelopeLZ4:
		decoded = lz4.NewReader(in)
	default:
		return fmt.Errorf("%s: not a recognized compression envelope", src)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", dst, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, decoded); err != nil {
		tmp.Close()
		return fmt.Errorf("decompressing %s: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, dst, err)
	}
	return nil
}
