// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package carchive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

func TestDecompressZstdEnvelope(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("epoch archive bytes "), 500)

	src := filepath.Join(dir, "epoch.car.zst")
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "epoch.car")
	if err := Decompress(src, dst); err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("decompressed content mismatch: got %d bytes, want %d", len(got), len(content))
	}
}

func TestDecompressLZ4Envelope(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("lz4 wrapped archive "), 500)

	src := filepath.Join(dir, "epoch.car.lz4")
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	lw := lz4.NewWriter(f)
	if _, err := lw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := lw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "epoch.car")
	if err := Decompress(src, dst); err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("decompressed content mismatch")
	}
}

func TestDecompressRejectsPlainFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.car")
	if err := os.WriteFile(src, []byte("not compressed data"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Decompress(src, filepath.Join(dir, "out.car"))
	if err == nil {
		t.Fatal("Decompress accepted a file with no envelope")
	}
}

func TestDetectEnvelope(t *testing.T) {
	tests := []struct {
		head []byte
		want Envelope
	}{
		{[]byte{0x28, 0xB5, 0x2F, 0xFD, 0x00}, EnvelopeZstd},
		{[]byte{0x04, 0x22, 0x4D, 0x18, 0x00}, EnvelopeLZ4},
		{[]byte{0x0a, 0xa1, 0x67}, EnvelopeNone},
		{nil, EnvelopeNone},
	}
	for _, tt := range tests {
		if got := DetectEnvelope(tt.head); got != tt.want {
			t.Errorf("DetectEnvelope(%x) = %v, want %v", tt.head, got, tt.want)
		}
	}
}
