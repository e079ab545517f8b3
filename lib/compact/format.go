// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

// Package compact implements the four-file compact epoch format: a
// deduplicated key registry, a fixed-stride slot index, a block file
// with per-transaction records, and a runtime file holding execution
// metadata behind shared string and byte tables. All reads are
// bounds-checked reinterpretation of mapped memory.
package compact

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is the only compact format version this package reads and
// writes.
const Version = 1

var magic = [6]byte{'B', 'L', 'K', 'Z', 'L', 'A'}

// File kinds, one per file of an epoch set.
const (
	KindRegistry  byte = 1
	KindSlotIndex byte = 2
	KindBlock     byte = 3
	KindRuntime   byte = 4
)

// Fixed layout sizes.
const (
	HeaderLen      = 16
	SlotEntryLen   = 24
	BlockHeaderLen = 72
	RuntimeDirLen  = 48
)

// SlotsPerEpoch is the fixed slot count of a Solana epoch.
const SlotsPerEpoch = 432000

// Slot index entry states.
const (
	SlotMissing byte = 0
	SlotPresent byte = 1
	SlotSkipped byte = 2 // block produced, zero transactions
)

// ErrVersionMismatch is returned when a file carries an unsupported
// format version.
var ErrVersionMismatch = errors.New("compact: unsupported format version")

// FormatError reports structurally invalid compact data.
type FormatError struct {
	File string
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("compact: %s: %s", e.File, e.Msg)
}

func formatErr(file, format string, args ...any) error {
	return &FormatError{File: file, Msg: fmt.Sprintf(format, args...)}
}

// FileName returns the on-disk name of one file of an epoch set.
func FileName(epoch uint32, kind byte) string {
	var suffix string
	switch kind {
	case KindRegistry:
		suffix = "registry"
	case KindSlotIndex:
		suffix = "slot-index"
	case KindBlock:
		suffix = "block"
	case KindRuntime:
		suffix = "runtime"
	default:
		panic(fmt.Sprintf("compact: unknown file kind %d", kind))
	}
	return fmt.Sprintf("epoch-%d-%s.bin", epoch, suffix)
}

// Header is the 16-byte header at the start of every compact file.
// Count is kind-specific: keys for the registry, slots for the index,
// blocks for the block file, transactions for the runtime file.
type Header struct {
	Kind  byte
	Epoch uint32
	Count uint32
}

func (h Header) encode() [HeaderLen]byte {
	var buf [HeaderLen]byte
	copy(buf[:6], magic[:])
	buf[6] = Version
	buf[7] = h.Kind
	binary.LittleEndian.PutUint32(buf[8:], h.Epoch)
	binary.LittleEndian.PutUint32(buf[12:], h.Count)
	return buf
}

// decodeHeader validates and reads a file header. name is used for
// error context only.
func decodeHeader(name string, data []byte, wantKind byte) (Header, error) {
	var h Header
	if len(data) < HeaderLen {
		return h, formatErr(name, "file is %d bytes, shorter than the %d-byte header", len(data), HeaderLen)
	}
	if [6]byte(data[:6]) != magic {
		return h, formatErr(name, "bad magic %x", data[:6])
	}
	if data[6] != Version {
		return h, fmt.Errorf("%w: %s has version %d (want %d)", ErrVersionMismatch, name, data[6], Version)
	}
	h.Kind = data[7]
	if h.Kind != wantKind {
		return h, formatErr(name, "file kind %d, want %d", h.Kind, wantKind)
	}
	h.Epoch = binary.LittleEndian.Uint32(data[8:])
	h.Count = binary.LittleEndian.Uint32(data[12:])
	return h, nil
}

// SlotEntry is one fixed-size slot index entry. Offset and Length
// locate the slot's record inside the block file; both are zero for
// missing slots.
type SlotEntry struct {
	Status  byte
	TxCount uint32
	Offset  uint64
	Length  uint64
}

func (e SlotEntry) encode() [SlotEntryLen]byte {
	var buf [SlotEntryLen]byte
	buf[0] = e.Status
	binary.LittleEndian.PutUint32(buf[4:], e.TxCount)
	binary.LittleEndian.PutUint64(buf[8:], e.Offset)
	binary.LittleEndian.PutUint64(buf[16:], e.Length)
	return buf
}

func decodeSlotEntry(data []byte) SlotEntry {
	return SlotEntry{
		Status:  data[0],
		TxCount: binary.LittleEndian.Uint32(data[4:]),
		Offset:  binary.LittleEndian.Uint64(data[8:]),
		Length:  binary.LittleEndian.Uint64(data[16:]),
	}
}

// BlockHeader is the fixed head of one block record in the block file.
// ParentSlot, BlockTime, and BlockHeight are zero when the archive did
// not carry them.
type BlockHeader struct {
	Slot        uint64
	ParentSlot  uint64
	BlockTime   int64
	BlockHeight uint64
	TxCount     uint32
	BodyLen     uint32
	Blockhash   [32]byte
}

func (h BlockHeader) encode() [BlockHeaderLen]byte {
	var buf [BlockHeaderLen]byte
	binary.LittleEndian.PutUint64(buf[0:], h.Slot)
	binary.LittleEndian.PutUint64(buf[8:], h.ParentSlot)
	binary.LittleEndian.PutUint64(buf[16:], uint64(h.BlockTime))
	binary.LittleEndian.PutUint64(buf[24:], h.BlockHeight)
	binary.LittleEndian.PutUint32(buf[32:], h.TxCount)
	binary.LittleEndian.PutUint32(buf[36:], h.BodyLen)
	copy(buf[40:], h.Blockhash[:])
	return buf
}

func decodeBlockHeader(data []byte) BlockHeader {
	var h BlockHeader
	h.Slot = binary.LittleEndian.Uint64(data[0:])
	h.ParentSlot = binary.LittleEndian.Uint64(data[8:])
	h.BlockTime = int64(binary.LittleEndian.Uint64(data[16:]))
	h.BlockHeight = binary.LittleEndian.Uint64(data[24:])
	h.TxCount = binary.LittleEndian.Uint32(data[32:])
	h.BodyLen = binary.LittleEndian.Uint32(data[36:])
	copy(h.Blockhash[:], data[40:])
	return h
}

// runtimeDir locates the three regions of the runtime file. Offsets
// are absolute file offsets.
type runtimeDir struct {
	strOff, strLen     uint64
	bytesOff, bytesLen uint64
	recOff, recLen     uint64
}

func (d runtimeDir) encode() [RuntimeDirLen]byte {
	var buf [RuntimeDirLen]byte
	binary.LittleEndian.PutUint64(buf[0:], d.strOff)
	binary.LittleEndian.PutUint64(buf[8:], d.strLen)
	binary.LittleEndian.PutUint64(buf[16:], d.bytesOff)
	binary.LittleEndian.PutUint64(buf[24:], d.bytesLen)
	binary.LittleEndian.PutUint64(buf[32:], d.recOff)
	binary.LittleEndian.PutUint64(buf[40:], d.recLen)
	return buf
}

func decodeRuntimeDir(data []byte) runtimeDir {
	return runtimeDir{
		strOff:   binary.LittleEndian.Uint64(data[0:]),
		strLen:   binary.LittleEndian.Uint64(data[8:]),
		bytesOff: binary.LittleEndian.Uint64(data[16:]),
		bytesLen: binary.LittleEndian.Uint64(data[24:]),
		recOff:   binary.LittleEndian.Uint64(data[32:]),
		recLen:   binary.LittleEndian.Uint64(data[40:]),
	}
}
