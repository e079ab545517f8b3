// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package carchive

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// buildCID returns a CIDv1 (dag-cbor codec, sha2-256 multihash) for
// payload.
func buildCID(t *testing.T, payload []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(payload)
	cid := []byte{0x01, 0x71, 0x12, 32}
	return append(cid, digest[:]...)
}

// writeArchive synthesizes a content-addressed archive holding the
// given payloads and returns its path plus the byte offsets at which
// each frame (and the header) ends.
func writeArchive(t *testing.T, dir string, payloads [][]byte) (string, []int) {
	t.Helper()

	header, err := cbor.Marshal(Header{Version: Version})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	buf.Write(tmp[:n])
	buf.Write(header)

	boundaries := []int{buf.Len()}
	for _, payload := range payloads {
		entry := append(buildCID(t, payload), payload...)
		n := binary.PutUvarint(tmp[:], uint64(len(entry)))
		buf.Write(tmp[:n])
		buf.Write(entry)
		boundaries = append(boundaries, buf.Len())
	}

	path := filepath.Join(dir, "epoch.car")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, boundaries
}

func TestReaderIteratesFrames(t *testing.T) {
	payloads := [][]byte{
		[]byte("first payload"),
		[]byte("second"),
		[]byte("third frame, a bit longer than the others"),
	}
	path, _ := writeArchive(t, t.TempDir(), payloads)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if r.Header().Version != Version {
		t.Errorf("header version = %d, want %d", r.Header().Version, Version)
	}

	for i, want := range payloads {
		block, err := r.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if !bytes.Equal(block.Payload, want) {
			t.Errorf("block %d payload = %q, want %q", i, block.Payload, want)
		}
		if !bytes.Equal(block.CID, buildCID(t, want)) {
			t.Errorf("block %d CID mismatch", i)
		}
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after last frame = %v, want io.EOF", err)
	}
}

func TestReaderRestartByReopen(t *testing.T) {
	path, _ := writeArchive(t, t.TempDir(), [][]byte{[]byte("only")})

	for range 2 {
		r, err := Open(path)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := r.Next(); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if _, err := r.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF, got %v", err)
		}
		r.Close()
	}
}

func TestReaderRejectsBadVersion(t *testing.T) {
	dir := t.TempDir()
	header, err := cbor.Marshal(Header{Version: 99})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	buf.Write(tmp[:n])
	buf.Write(header)

	path := filepath.Join(dir, "bad.car")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Open(path)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Open = %v, want *FormatError for unsupported version", err)
	}
}

func TestReaderTruncationSafety(t *testing.T) {
	payloads := [][]byte{
		[]byte("alpha"),
		[]byte("beta beta"),
		[]byte("gamma gamma gamma"),
	}
	dir := t.TempDir()
	path, boundaries := writeArchive(t, dir, payloads)

	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	onBoundary := make(map[int]bool, len(boundaries))
	for _, b := range boundaries {
		onBoundary[b] = true
	}

	// Every truncation point must produce either a clean (shorter)
	// iteration — possible only when the cut lands exactly on a frame
	// boundary — or a *FormatError. Never a panic, never success with
	// a partial frame.
	for cut := 0; cut < len(full); cut++ {
		truncated := filepath.Join(dir, "truncated.car")
		if err := os.WriteFile(truncated, full[:cut], 0o644); err != nil {
			t.Fatal(err)
		}

		r, err := Open(truncated)
		if err != nil {
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("cut=%d: Open error is not a FormatError: %v", cut, err)
			}
			continue
		}

		var iterErr error
		for {
			_, iterErr = r.Next()
			if iterErr != nil {
				break
			}
		}
		r.Close()

		if iterErr == io.EOF {
			if !onBoundary[cut] {
				t.Errorf("cut=%d: clean EOF at a non-boundary truncation point", cut)
			}
			continue
		}
		var fe *FormatError
		if !errors.As(iterErr, &fe) {
			t.Errorf("cut=%d: iteration error is not a FormatError: %v", cut, iterErr)
		}
	}
}

func TestReaderRejectsOversizedFrameLength(t *testing.T) {
	path, _ := writeArchive(t, t.TempDir(), [][]byte{[]byte("x")})
	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Append a frame claiming far more bytes than remain.
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], 1<<40)
	corrupt := append(full, tmp[:n]...)
	corrupt = append(corrupt, 0x01)

	bad := filepath.Join(t.TempDir(), "oversized.car")
	if err := os.WriteFile(bad, corrupt, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(bad)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	_, err = r.Next()
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("oversized frame error = %v, want ErrTruncated", err)
	}
}

func TestOpenVerifiedCatchesCorruption(t *testing.T) {
	dir := t.TempDir()
	path, boundaries := writeArchive(t, dir, [][]byte{[]byte("verify me please")})

	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Flip a payload byte (last byte of the only frame).
	full[boundaries[1]-1] ^= 0xFF
	bad := filepath.Join(dir, "corrupt.car")
	if err := os.WriteFile(bad, full, 0o644); err != nil {
		t.Fatal(err)
	}

	// The plain reader trusts the frame.
	r, err := Open(bad)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err != nil {
		t.Errorf("plain reader rejected corrupted payload: %v", err)
	}
	r.Close()

	// The verifying reader does not.
	rv, err := OpenVerified(bad)
	if err != nil {
		t.Fatal(err)
	}
	defer rv.Close()
	_, err = rv.Next()
	if !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("verified Next = %v, want ErrDigestMismatch", err)
	}
}

func TestBlockLinks(t *testing.T) {
	// A payload containing one dag-cbor link (tag 42 over a byte
	// string with a 0x00 multibase prefix).
	child := buildCID(t, []byte("child"))
	linked, err := cbor.Marshal([]any{
		uint64(7),
		cbor.Tag{Number: 42, Content: append([]byte{0x00}, child...)},
	})
	if err != nil {
		t.Fatal(err)
	}

	path, _ := writeArchive(t, t.TempDir(), [][]byte{linked})
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	block, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	links, err := block.Links()
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}
	if len(links) != 1 || !bytes.Equal(links[0], child) {
		t.Errorf("Links = %x, want one link %x", links, child)
	}
}
