// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"bytes"
	"testing"
)

func TestBase58KnownVectors(t *testing.T) {
	tests := []struct {
		text string
		raw  []byte
	}{
		{"", []byte{}},
		{"1", []byte{0}},
		{"11111111111111111111111111111111", make([]byte, 32)}, // system program
		{"2g", []byte{0x61}},
		{"a3gV", []byte("bbb")},
		{"aPEr", []byte("ccc")},
	}
	for _, tc := range tests {
		raw, err := base58Decode(tc.text)
		if err != nil {
			t.Fatalf("base58Decode(%q): %v", tc.text, err)
		}
		if !bytes.Equal(raw, tc.raw) {
			t.Errorf("base58Decode(%q) = %x, want %x", tc.text, raw, tc.raw)
		}
		if got := base58Encode(tc.raw); got != tc.text {
			t.Errorf("base58Encode(%x) = %q, want %q", tc.raw, got, tc.text)
		}
	}
}

func TestBase58RoundTripPubkey(t *testing.T) {
	key := fillPattern(PubkeyLen, 0x11)
	text := base58Encode(key)
	raw, err := base58Decode(text)
	if err != nil {
		t.Fatalf("base58Decode: %v", err)
	}
	if !bytes.Equal(raw, key) {
		t.Errorf("round trip = %x, want %x", raw, key)
	}
}

func TestBase58RejectsInvalidCharacters(t *testing.T) {
	for _, text := range []string{"0", "I", "O", "l", "abc!"} {
		if _, err := base58Decode(text); err == nil {
			t.Errorf("base58Decode(%q) succeeded", text)
		}
	}
}
