// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"io"

	"github.com/blockzilla-foundation/blockzilla/lib/carchive"
)

// Transaction is one executed transaction with its status metadata.
// Raw keeps the wire bytes the envelope was decoded from; Meta is nil
// when the archive stored no metadata for the transaction.
type Transaction struct {
	Wire *WireTransaction
	Raw  []byte
	Meta *Meta
}

// Block is a fully assembled slot: header fields from the block node's
// slot metadata plus all transactions in entry order. Blockhash is the
// hash of the block's last entry, or zero for an entry-less block.
type Block struct {
	Slot         uint64
	ParentSlot   uint64
	HasParent    bool
	BlockTime    int64
	HasTime      bool
	BlockHeight  uint64
	HasHeight    bool
	Blockhash    [HashLen]byte
	Entries      int
	Transactions []Transaction
	Rewards      []Reward
}

// Assembler turns the frame stream of an epoch archive back into
// blocks. Archives interleave a block's child frames (transactions,
// entries, data frames, rewards) before the block node that references
// them, so the assembler accumulates frames until a block node closes
// the group, then resolves the links within it.
//
// Frame payloads reference the reader's mapping; they are only valid
// until the reader is closed.
type Assembler struct {
	src   *carchive.Reader
	group map[string][]byte
}

// NewAssembler wraps an open archive reader positioned at its first frame.
func NewAssembler(src *carchive.Reader) *Assembler {
	return &Assembler{
		src:   src,
		group: make(map[string][]byte),
	}
}

// Next returns the next assembled block, or io.EOF after the last one.
// On a block-level decode error the pending group is discarded, so the
// caller may keep calling Next to skip past a malformed block.
func (a *Assembler) Next() (*Block, error) {
	for {
		frame, err := a.src.Next()
		if err == io.EOF {
			if len(a.group) != 0 {
				clear(a.group)
				return nil, decodeErr("block group", "archive ended with %d unclaimed frames", len(a.group))
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		kind, err := PeekKind(frame.Payload)
		if err != nil {
			return nil, err
		}
		// Subset and epoch nodes trail the block groups they index; they
		// carry no block content.
		if kind == KindSubset || kind == KindEpoch {
			continue
		}
		a.group[string(frame.CID)] = frame.Payload
		if kind == KindBlock {
			block, err := a.assemble(frame.Payload)
			clear(a.group)
			return block, err
		}
	}
}

func (a *Assembler) assemble(payload []byte) (*Block, error) {
	node, err := DecodeBlockNode(payload)
	if err != nil {
		return nil, err
	}
	block := &Block{Slot: node.Slot, Entries: len(node.Entries)}
	if node.Meta.ParentSlot != nil {
		block.ParentSlot = *node.Meta.ParentSlot
		block.HasParent = true
	}
	if node.Meta.BlockTime != nil {
		block.BlockTime = *node.Meta.BlockTime
		block.HasTime = true
	}
	if node.Meta.BlockHeight != nil {
		block.BlockHeight = *node.Meta.BlockHeight
		block.HasHeight = true
	}

	for i, link := range node.Entries {
		entryPayload, ok := a.group[string(link.CID)]
		if !ok {
			return nil, decodeErr("block group", "slot %d entry %d not in group", node.Slot, i)
		}
		entry, err := DecodeEntryNode(entryPayload)
		if err != nil {
			return nil, err
		}
		if i == len(node.Entries)-1 {
			if len(entry.Hash) != HashLen {
				return nil, decodeErr("entry node", "slot %d last entry hash is %d bytes", node.Slot, len(entry.Hash))
			}
			copy(block.Blockhash[:], entry.Hash)
		}
		for _, txLink := range entry.Transactions {
			txPayload, ok := a.group[string(txLink.CID)]
			if !ok {
				return nil, decodeErr("block group", "slot %d transaction not in group", node.Slot)
			}
			txNode, err := DecodeTransactionNode(txPayload)
			if err != nil {
				return nil, err
			}
			tx, err := a.assembleTransaction(node.Slot, txNode)
			if err != nil {
				return nil, err
			}
			block.Transactions = append(block.Transactions, tx)
		}
	}

	if node.Rewards != nil {
		rewardsPayload, ok := a.group[string(node.Rewards.CID)]
		if !ok {
			return nil, decodeErr("block group", "slot %d rewards not in group", node.Slot)
		}
		rn, err := DecodeRewardsNode(rewardsPayload)
		if err != nil {
			return nil, err
		}
		raw, err := a.frameBytes(&rn.Data)
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if block.Rewards, err = decodeProtoRewardsList(raw); err != nil {
				return nil, err
			}
		}
	}
	return block, nil
}

func (a *Assembler) assembleTransaction(slot uint64, node *TransactionNode) (Transaction, error) {
	var tx Transaction
	raw, err := a.frameBytes(&node.Data)
	if err != nil {
		return tx, err
	}
	tx.Raw = raw
	if tx.Wire, err = DecodeTransaction(raw); err != nil {
		return tx, err
	}
	metaRaw, err := a.frameBytes(&node.Metadata)
	if err != nil {
		return tx, err
	}
	if len(metaRaw) > 0 {
		if tx.Meta, err = DecodeMeta(slot, metaRaw); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

// frameBytes resolves a data frame's full payload, following its
// continuation chain through the group. Single-frame payloads are
// returned without copying.
func (a *Assembler) frameBytes(df *DataFrame) ([]byte, error) {
	if df.Next == nil {
		return df.Data, nil
	}
	out := append([]byte(nil), df.Data...)
	next := df.Next
	for hops := 0; next != nil; hops++ {
		if hops > len(a.group) {
			return nil, decodeErr("data frame", "continuation chain does not terminate")
		}
		payload, ok := a.group[string(next.CID)]
		if !ok {
			return nil, decodeErr("data frame", "continuation frame not in block group")
		}
		cont, err := DecodeDataFrame(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, cont.Data...)
		next = cont.Next
	}
	return out, nil
}

// decodeProtoRewardsList decodes a confirmed_block.Rewards message:
// repeated Reward plus an optional partition count, which is skipped.
func decodeProtoRewardsList(data []byte) ([]Reward, error) {
	p := &protoCursor{data: data, ctx: "proto rewards"}
	var out []Reward
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return nil, err
		}
		if field == 1 && wire == wireBytes {
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			r, err := decodeProtoReward(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			continue
		}
		if err := p.skip(wire); err != nil {
			return nil, err
		}
	}
	return out, nil
}
