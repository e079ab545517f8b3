// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import "github.com/blockzilla-foundation/blockzilla/lib/ledger"

// Recent blockhash storage forms.
const (
	blockhashTagRef    = 0 // slot offset of the referenced block
	blockhashTagInline = 1 // raw 32-byte hash
)

// RecentBlockhash is a transaction's recent blockhash. A hash matching
// an earlier block of the same epoch is stored as that block's slot
// offset; anything else (durable nonces, references into the previous
// epoch) is stored inline.
type RecentBlockhash struct {
	// ByRef marks the slot-reference form.
	ByRef bool
	// Slot is the referenced block's slot offset within the epoch
	// when ByRef is set.
	Slot uint32
	// Inline is the raw hash when ByRef is not set.
	Inline [ledger.HashLen]byte
}

// Instruction is a compiled instruction with its program and accounts
// resolved to registry IDs.
type Instruction struct {
	Program  uint32
	Accounts []uint32
	Data     []byte
}

// Transaction is one transaction record of the block file. Account
// lists hold registry IDs; RuntimeOffset and RuntimeLen locate the
// transaction's runtime record.
type Transaction struct {
	Signatures      [][ledger.SignatureLen]byte
	Header          ledger.MessageHeader
	Status          ledger.TxStatus
	Fee             uint64
	StaticAccounts  []uint32
	LoadedWritable  []uint32
	LoadedReadonly  []uint32
	RecentBlockhash RecentBlockhash
	Instructions    []Instruction
	RuntimeOffset   uint64
	RuntimeLen      uint32
}

// CombinedAccounts returns the full account table in message order:
// static keys, then loaded writable, then loaded readonly.
func (tx *Transaction) CombinedAccounts() []uint32 {
	out := make([]uint32, 0, len(tx.StaticAccounts)+len(tx.LoadedWritable)+len(tx.LoadedReadonly))
	out = append(out, tx.StaticAccounts...)
	out = append(out, tx.LoadedWritable...)
	return append(out, tx.LoadedReadonly...)
}

// appendTxRecord appends tx as a uvarint-framed record.
func appendTxRecord(buf []byte, tx *Transaction) []byte {
	var body []byte
	body = append(body,
		byte(tx.RuntimeOffset), byte(tx.RuntimeOffset>>8), byte(tx.RuntimeOffset>>16), byte(tx.RuntimeOffset>>24),
		byte(tx.RuntimeOffset>>32), byte(tx.RuntimeOffset>>40), byte(tx.RuntimeOffset>>48), byte(tx.RuntimeOffset>>56),
		byte(tx.RuntimeLen), byte(tx.RuntimeLen>>8), byte(tx.RuntimeLen>>16), byte(tx.RuntimeLen>>24),
	)

	body = appendUvarint(body, uint64(len(tx.Signatures)))
	for i := range tx.Signatures {
		body = append(body, tx.Signatures[i][:]...)
	}

	body = append(body,
		tx.Header.NumRequiredSignatures,
		tx.Header.NumReadonlySignedAccounts,
		tx.Header.NumReadonlyUnsignedAccounts,
	)

	body = appendTxStatus(body, tx.Status)
	body = appendUvarint(body, tx.Fee)

	body = appendIDList(body, tx.StaticAccounts)
	body = appendIDList(body, tx.LoadedWritable)
	body = appendIDList(body, tx.LoadedReadonly)

	if tx.RecentBlockhash.ByRef {
		body = append(body, blockhashTagRef)
		body = appendUvarint(body, uint64(tx.RecentBlockhash.Slot))
	} else {
		body = append(body, blockhashTagInline)
		body = append(body, tx.RecentBlockhash.Inline[:]...)
	}

	body = appendUvarint(body, uint64(len(tx.Instructions)))
	for _, in := range tx.Instructions {
		body = appendUvarint(body, uint64(in.Program))
		body = appendIDList(body, in.Accounts)
		body = appendFrame(body, in.Data)
	}
	return appendFrame(buf, body)
}

// appendTxStatus encodes a status as uvarints: 0 for success,
// otherwise code+1 followed by the variant payload.
func appendTxStatus(buf []byte, st ledger.TxStatus) []byte {
	if !st.Err {
		return appendUvarint(buf, 0)
	}
	buf = appendUvarint(buf, uint64(st.Code)+1)
	switch st.Code {
	case ledger.TxErrInstruction:
		buf = appendUvarint(buf, uint64(st.InstrIndex))
		buf = appendUvarint(buf, uint64(st.InstrCode))
		if st.InstrCode == ledger.InstrErrCustom {
			buf = appendUvarint(buf, uint64(st.CustomCode))
		}
	case ledger.TxErrDuplicateInstruction, ledger.TxErrInsufficientFundsRent, ledger.TxErrExecutionRestricted:
		buf = appendUvarint(buf, uint64(st.InstrIndex))
	}
	return buf
}

func decodeTxStatus(c *byteCursor) (ledger.TxStatus, error) {
	var st ledger.TxStatus
	tag, err := c.uvarint("status")
	if err != nil {
		return st, err
	}
	if tag == 0 {
		return st, nil
	}
	st.Err = true
	st.Code = uint32(tag - 1)
	switch st.Code {
	case ledger.TxErrInstruction:
		idx, err := c.uvarint("status instruction index")
		if err != nil {
			return st, err
		}
		st.InstrIndex = uint8(idx)
		if st.InstrCode, err = c.uvarint32("status instruction code"); err != nil {
			return st, err
		}
		if st.InstrCode == ledger.InstrErrCustom {
			if st.CustomCode, err = c.uvarint32("status custom code"); err != nil {
				return st, err
			}
		}
	case ledger.TxErrDuplicateInstruction, ledger.TxErrInsufficientFundsRent, ledger.TxErrExecutionRestricted:
		idx, err := c.uvarint("status index payload")
		if err != nil {
			return st, err
		}
		st.InstrIndex = uint8(idx)
	}
	return st, nil
}

// decodeTxRecord reads one uvarint-framed transaction record from c.
func decodeTxRecord(c *byteCursor) (*Transaction, error) {
	body, err := c.frame("transaction record")
	if err != nil {
		return nil, err
	}
	tc := &byteCursor{data: body, ctx: "transaction record"}
	tx := &Transaction{}

	if tx.RuntimeOffset, err = tc.u64("runtime offset"); err != nil {
		return nil, err
	}
	if tx.RuntimeLen, err = tc.u32("runtime length"); err != nil {
		return nil, err
	}

	sigCount, err := tc.uvarint("signature count")
	if err != nil {
		return nil, err
	}
	if sigCount > uint64(tc.remaining())/ledger.SignatureLen {
		return nil, tc.errf("signature count %d exceeds remaining bytes", sigCount)
	}
	tx.Signatures = make([][ledger.SignatureLen]byte, sigCount)
	for i := range tx.Signatures {
		raw, err := tc.take(ledger.SignatureLen, "signature")
		if err != nil {
			return nil, err
		}
		copy(tx.Signatures[i][:], raw)
	}

	hdr, err := tc.take(3, "message header")
	if err != nil {
		return nil, err
	}
	tx.Header = ledger.MessageHeader{
		NumRequiredSignatures:       hdr[0],
		NumReadonlySignedAccounts:   hdr[1],
		NumReadonlyUnsignedAccounts: hdr[2],
	}

	if tx.Status, err = decodeTxStatus(tc); err != nil {
		return nil, err
	}
	if tx.Fee, err = tc.uvarint("fee"); err != nil {
		return nil, err
	}

	if tx.StaticAccounts, err = tc.idList("static accounts"); err != nil {
		return nil, err
	}
	if tx.LoadedWritable, err = tc.idList("loaded writable accounts"); err != nil {
		return nil, err
	}
	if tx.LoadedReadonly, err = tc.idList("loaded readonly accounts"); err != nil {
		return nil, err
	}

	bhTag, err := tc.u8("recent blockhash tag")
	if err != nil {
		return nil, err
	}
	switch bhTag {
	case blockhashTagRef:
		tx.RecentBlockhash.ByRef = true
		if tx.RecentBlockhash.Slot, err = tc.uvarint32("recent blockhash slot"); err != nil {
			return nil, err
		}
		if tx.RecentBlockhash.Slot >= SlotsPerEpoch {
			return nil, tc.errf("recent blockhash slot %d outside epoch", tx.RecentBlockhash.Slot)
		}
	case blockhashTagInline:
		hash, err := tc.take(ledger.HashLen, "recent blockhash")
		if err != nil {
			return nil, err
		}
		copy(tx.RecentBlockhash.Inline[:], hash)
	default:
		return nil, tc.errf("recent blockhash tag %d", bhTag)
	}

	instrCount, err := tc.uvarint("instruction count")
	if err != nil {
		return nil, err
	}
	if instrCount > uint64(tc.remaining()) {
		return nil, tc.errf("instruction count %d exceeds remaining bytes", instrCount)
	}
	tx.Instructions = make([]Instruction, instrCount)
	for i := range tx.Instructions {
		in := &tx.Instructions[i]
		if in.Program, err = tc.uvarint32("instruction program id"); err != nil {
			return nil, err
		}
		if in.Accounts, err = tc.idList("instruction account ids"); err != nil {
			return nil, err
		}
		if in.Data, err = tc.frame("instruction data"); err != nil {
			return nil, err
		}
	}

	if tc.remaining() != 0 {
		return nil, tc.errf("%d trailing bytes", tc.remaining())
	}
	return tx, nil
}
