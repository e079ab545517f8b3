// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import "encoding/binary"

// Sizes of the fixed-width ledger primitives.
const (
	SignatureLen = 64
	PubkeyLen    = 32
	HashLen      = 32
)

// messageVersionPrefix marks a versioned (non-legacy) message: the
// top bit of the first message byte.
const messageVersionPrefix = 0x80

// MessageHeader counts the signer/readonly account partitions of a
// transaction message.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction is one instruction as it appears on the wire:
// indices into the message account table plus opaque data.
type CompiledInstruction struct {
	ProgramIndex uint8
	Accounts     []uint8
	Data         []byte
}

// AddressTableLookup loads additional accounts from an on-chain
// address lookup table (v0 messages only).
type AddressTableLookup struct {
	TableKey        [PubkeyLen]byte
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// WireTransaction is a decoded transaction envelope: signatures plus
// either a legacy or a v0 message.
type WireTransaction struct {
	Signatures      [][SignatureLen]byte
	Versioned       bool // false = legacy message
	Header          MessageHeader
	AccountKeys     [][PubkeyLen]byte
	RecentBlockhash [HashLen]byte
	Instructions    []CompiledInstruction
	TableLookups    []AddressTableLookup // v0 only
}

// cursor is a bounds-checked sequential reader over a byte slice.
// Every read either succeeds completely or returns a *DecodeError
// naming the field being read.
type cursor struct {
	data []byte
	pos  int
	ctx  string
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) take(n int, field string) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, decodeErr(c.ctx, "%s needs %d bytes, %d remain", field, n, c.remaining())
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) u8(field string) (uint8, error) {
	b, err := c.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u32(field string) (uint32, error) {
	b, err := c.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64(field string) (uint64, error) {
	b, err := c.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) i64(field string) (int64, error) {
	v, err := c.u64(field)
	return int64(v), err
}

// shortU16 reads Solana's compact-u16 length encoding: up to three
// bytes of 7 bits each, little-endian.
func (c *cursor) shortU16(field string) (int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		b, err := c.u8(field)
		if err != nil {
			return 0, err
		}
		value |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			if value > 0xffff {
				return 0, decodeErr(c.ctx, "%s compact-u16 exceeds 65535", field)
			}
			return int(value), nil
		}
		shift += 7
	}
	return 0, decodeErr(c.ctx, "%s compact-u16 longer than 3 bytes", field)
}

func (c *cursor) byteVec(field string) ([]uint8, error) {
	n, err := c.shortU16(field)
	if err != nil {
		return nil, err
	}
	raw, err := c.take(n, field)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, n)
	copy(out, raw)
	return out, nil
}

func (c *cursor) pubkey(field string) ([PubkeyLen]byte, error) {
	var key [PubkeyLen]byte
	raw, err := c.take(PubkeyLen, field)
	if err != nil {
		return key, err
	}
	copy(key[:], raw)
	return key, nil
}

func (c *cursor) instruction() (CompiledInstruction, error) {
	var instr CompiledInstruction
	var err error
	if instr.ProgramIndex, err = c.u8("program index"); err != nil {
		return instr, err
	}
	if instr.Accounts, err = c.byteVec("instruction accounts"); err != nil {
		return instr, err
	}
	if instr.Data, err = c.byteVec("instruction data"); err != nil {
		return instr, err
	}
	return instr, nil
}

// DecodeTransaction decodes a transaction envelope from its bincode
// wire bytes (legacy and v0 message formats). Trailing bytes after
// the message are rejected.
func DecodeTransaction(data []byte) (*WireTransaction, error) {
	c := &cursor{data: data, ctx: "transaction"}

	sigCount, err := c.shortU16("signature count")
	if err != nil {
		return nil, err
	}
	tx := &WireTransaction{Signatures: make([][SignatureLen]byte, sigCount)}
	for i := range tx.Signatures {
		raw, err := c.take(SignatureLen, "signature")
		if err != nil {
			return nil, err
		}
		copy(tx.Signatures[i][:], raw)
	}

	first, err := c.u8("message prefix")
	if err != nil {
		return nil, err
	}

	if first&messageVersionPrefix != 0 {
		version := first &^ uint8(messageVersionPrefix)
		if version != 0 {
			return nil, decodeErr("transaction", "unsupported message version %d", version)
		}
		tx.Versioned = true
		if tx.Header.NumRequiredSignatures, err = c.u8("header"); err != nil {
			return nil, err
		}
	} else {
		// Legacy: the prefix byte is the first header field.
		tx.Header.NumRequiredSignatures = first
	}
	if tx.Header.NumReadonlySignedAccounts, err = c.u8("header"); err != nil {
		return nil, err
	}
	if tx.Header.NumReadonlyUnsignedAccounts, err = c.u8("header"); err != nil {
		return nil, err
	}

	keyCount, err := c.shortU16("account key count")
	if err != nil {
		return nil, err
	}
	tx.AccountKeys = make([][PubkeyLen]byte, keyCount)
	for i := range tx.AccountKeys {
		if tx.AccountKeys[i], err = c.pubkey("account key"); err != nil {
			return nil, err
		}
	}

	if tx.RecentBlockhash, err = c.pubkey("recent blockhash"); err != nil {
		return nil, err
	}

	instrCount, err := c.shortU16("instruction count")
	if err != nil {
		return nil, err
	}
	tx.Instructions = make([]CompiledInstruction, instrCount)
	for i := range tx.Instructions {
		if tx.Instructions[i], err = c.instruction(); err != nil {
			return nil, err
		}
	}

	if tx.Versioned {
		lookupCount, err := c.shortU16("table lookup count")
		if err != nil {
			return nil, err
		}
		tx.TableLookups = make([]AddressTableLookup, lookupCount)
		for i := range tx.TableLookups {
			lookup := &tx.TableLookups[i]
			if lookup.TableKey, err = c.pubkey("table key"); err != nil {
				return nil, err
			}
			if lookup.WritableIndexes, err = c.byteVec("writable indexes"); err != nil {
				return nil, err
			}
			if lookup.ReadonlyIndexes, err = c.byteVec("readonly indexes"); err != nil {
				return nil, err
			}
		}
	}

	if c.remaining() != 0 {
		return nil, decodeErr("transaction", "%d trailing bytes after message", c.remaining())
	}
	return tx, nil
}
