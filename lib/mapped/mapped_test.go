// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package mapped

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("mapped file contents")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if f.Len() != int64(len(content)) {
		t.Errorf("Len = %d, want %d", f.Len(), len(content))
	}
	if !bytes.Equal(f.Bytes(), content) {
		t.Errorf("Bytes = %q, want %q", f.Bytes(), content)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed on empty file: %v", err)
	}
	defer f.Close()

	if f.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.Len())
	}
	if len(f.Bytes()) != 0 {
		t.Errorf("Bytes has %d bytes, want 0", len(f.Bytes()))
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("Open succeeded on a missing file")
	}
}

func TestCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
