// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"errors"
	"testing"
)

func TestFileName(t *testing.T) {
	cases := []struct {
		kind byte
		want string
	}{
		{KindRegistry, "epoch-612-registry.bin"},
		{KindSlotIndex, "epoch-612-slot-index.bin"},
		{KindBlock, "epoch-612-block.bin"},
		{KindRuntime, "epoch-612-runtime.bin"},
	}
	for _, tc := range cases {
		if got := FileName(612, tc.kind); got != tc.want {
			t.Errorf("FileName(612, %d) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Kind: KindBlock, Epoch: 612, Count: 431998}
	raw := h.encode()
	got, err := decodeHeader("epoch-612-block.bin", raw[:], KindBlock)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("decoded header %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	h := Header{Kind: KindBlock, Epoch: 5, Count: 1}
	good := h.encode()

	if _, err := decodeHeader("f", good[:10], KindBlock); err == nil {
		t.Error("short header accepted")
	}

	bad := good
	bad[0] = 'X'
	if _, err := decodeHeader("f", bad[:], KindBlock); err == nil {
		t.Error("bad magic accepted")
	}

	bad = good
	bad[6] = Version + 1
	_, err := decodeHeader("f", bad[:], KindBlock)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("future version: got %v, want ErrVersionMismatch", err)
	}

	if _, err := decodeHeader("f", good[:], KindRuntime); err == nil {
		t.Error("wrong kind accepted")
	}
	var fe *FormatError
	if _, err := decodeHeader("f", good[:], KindRuntime); !errors.As(err, &fe) {
		t.Errorf("wrong kind: got %T, want *FormatError", err)
	}
}

func TestSlotEntryRoundTrip(t *testing.T) {
	e := SlotEntry{Status: SlotPresent, TxCount: 1523, Offset: 1 << 33, Length: 98765}
	raw := e.encode()
	if got := decodeSlotEntry(raw[:]); got != e {
		t.Fatalf("decoded entry %+v, want %+v", got, e)
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := BlockHeader{
		Slot:        264384123,
		ParentSlot:  264384122,
		BlockTime:   1700000000,
		BlockHeight: 246000000,
		TxCount:     1834,
		BodyLen:     5 << 20,
	}
	for i := range h.Blockhash {
		h.Blockhash[i] = byte(i * 7)
	}
	raw := h.encode()
	if got := decodeBlockHeader(raw[:]); got != h {
		t.Fatalf("decoded header %+v, want %+v", got, h)
	}
}

func TestRuntimeDirRoundTrip(t *testing.T) {
	d := runtimeDir{
		strOff: 100, strLen: 200,
		bytesOff: 300, bytesLen: 400,
		recOff: 64, recLen: 36,
	}
	raw := d.encode()
	if got := decodeRuntimeDir(raw[:]); got != d {
		t.Fatalf("decoded dir %+v, want %+v", got, d)
	}
}

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<64 - 1}
	var buf []byte
	for _, v := range values {
		buf = appendUvarint(buf, v)
	}
	c := &byteCursor{data: buf, ctx: "test"}
	for _, want := range values {
		got, err := c.uvarint("value")
		if err != nil {
			t.Fatalf("uvarint(%d): %v", want, err)
		}
		if got != want {
			t.Fatalf("uvarint = %d, want %d", got, want)
		}
	}
	if c.remaining() != 0 {
		t.Fatalf("%d bytes left after decoding all values", c.remaining())
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf []byte
	buf = appendFrame(buf, []byte("hello"))
	buf = appendFrame(buf, nil)
	buf = appendFrame(buf, []byte{0xff})

	c := &byteCursor{data: buf, ctx: "test"}
	for _, want := range []string{"hello", "", "\xff"} {
		got, err := c.frame("payload")
		if err != nil {
			t.Fatalf("frame: %v", err)
		}
		if string(got) != want {
			t.Fatalf("frame = %q, want %q", got, want)
		}
	}
}

func TestFrameTruncated(t *testing.T) {
	buf := appendUvarint(nil, 10)
	buf = append(buf, 1, 2, 3)
	c := &byteCursor{data: buf, ctx: "test"}
	if _, err := c.frame("payload"); err == nil {
		t.Fatal("truncated frame accepted")
	}
}

func TestIDListRoundTrip(t *testing.T) {
	for _, ids := range [][]uint32{nil, {0}, {7, 0, 1 << 30, 42}} {
		buf := appendIDList(nil, ids)
		c := &byteCursor{data: buf, ctx: "test"}
		got, err := c.idList("ids")
		if err != nil {
			t.Fatalf("idList(%v): %v", ids, err)
		}
		if len(got) != len(ids) {
			t.Fatalf("idList(%v) = %v", ids, got)
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Fatalf("idList(%v) = %v", ids, got)
			}
		}
	}
}

func TestZigzag(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, -64, 1 << 40, -(1 << 40), 1<<63 - 1, -1 << 63} {
		if got := unzigzag(zigzag(v)); got != v {
			t.Errorf("unzigzag(zigzag(%d)) = %d", v, got)
		}
	}
	if zigzag(-1) != 1 || zigzag(1) != 2 {
		t.Error("zigzag does not interleave signs")
	}
}
