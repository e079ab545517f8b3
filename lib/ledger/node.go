// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger decodes Solana ledger data out of content-addressed
// archive payloads: the dag-cbor node graph (epochs, blocks, entries,
// transactions, data frames) and the binary wire formats nested
// inside it (transaction messages, status metadata).
//
// Everything in this package is pure decoding — no I/O. Inputs are
// treated as untrusted: every length and index is bounds-checked, and
// malformed data yields a *DecodeError, never a panic or a misread of
// adjacent memory.
package ledger

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind discriminates the dag-cbor node types of the epoch archive.
// The kind is the first element of every node's cbor array.
type Kind uint64

const (
	KindTransaction Kind = 0
	KindEntry       Kind = 1
	KindBlock       Kind = 2
	KindSubset      Kind = 3
	KindEpoch       Kind = 4
	KindRewards     Kind = 5
	KindDataFrame   Kind = 6
)

// String returns the node kind's archive name.
func (k Kind) String() string {
	switch k {
	case KindTransaction:
		return "transaction"
	case KindEntry:
		return "entry"
	case KindBlock:
		return "block"
	case KindSubset:
		return "subset"
	case KindEpoch:
		return "epoch"
	case KindRewards:
		return "rewards"
	case KindDataFrame:
		return "dataframe"
	default:
		return fmt.Sprintf("kind(%d)", uint64(k))
	}
}

// DecodeError reports a structurally valid frame whose contents do
// not match the expected domain shape. Context names the structure
// being decoded when the mismatch was found.
type DecodeError struct {
	Context string
	Msg     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Context, e.Msg)
}

func decodeErr(context, format string, args ...any) error {
	return &DecodeError{Context: context, Msg: fmt.Sprintf(format, args...)}
}

// Link is a dag-cbor link (tag 42) holding the raw CIDv1 bytes of the
// referenced node.
type Link struct {
	CID []byte
}

// UnmarshalCBOR decodes a tag-42 link. The tag content is a byte
// string with a leading 0x00 multibase prefix before the CID bytes.
func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("link is not a cbor tag: %w", err)
	}
	if tag.Number != 42 {
		return fmt.Errorf("link tag is %d, want 42", tag.Number)
	}
	var raw []byte
	if err := cbor.Unmarshal(tag.Content, &raw); err != nil {
		return fmt.Errorf("link content is not a byte string: %w", err)
	}
	if len(raw) < 2 {
		return errors.New("link content too short for a CID")
	}
	l.CID = raw[1:]
	return nil
}

// DataFrame carries an opaque binary payload, optionally split across
// multiple frames chained through Next.
type DataFrame struct {
	_     struct{} `cbor:",toarray"`
	Kind  uint64
	Hash  *uint64
	Index *uint64
	Total *uint64
	Data  []byte
	Next  *Link
}

// SlotMeta is the per-block metadata embedded in a block node.
type SlotMeta struct {
	_           struct{} `cbor:",toarray"`
	ParentSlot  *uint64
	BlockTime   *int64
	BlockHeight *uint64
}

// Shredding records entry/shred boundaries; carried through opaquely.
type Shredding struct {
	_           struct{} `cbor:",toarray"`
	EntryEndIdx int64
	ShredEndIdx int64
}

// TransactionNode pairs a transaction's wire bytes with its status
// metadata, both as data frames.
type TransactionNode struct {
	_        struct{} `cbor:",toarray"`
	Kind     uint64
	Data     DataFrame
	Metadata DataFrame
	Slot     uint64
	Index    *uint64
}

// EntryNode is one PoH entry: a hash and the transactions it covers.
type EntryNode struct {
	_            struct{} `cbor:",toarray"`
	Kind         uint64
	NumHashes    uint64
	Hash         []byte
	Transactions []Link
}

// BlockNode is the root node of one slot's block.
type BlockNode struct {
	_         struct{} `cbor:",toarray"`
	Kind      uint64
	Slot      uint64
	Shredding []Shredding
	Entries   []Link
	Meta      SlotMeta
	Rewards   *Link
}

// SubsetNode groups a contiguous range of blocks within an epoch.
type SubsetNode struct {
	_      struct{} `cbor:",toarray"`
	Kind   uint64
	First  uint64
	Last   uint64
	Blocks []Link
}

// EpochNode is the root of a whole epoch archive.
type EpochNode struct {
	_       struct{} `cbor:",toarray"`
	Kind    uint64
	Epoch   uint64
	Subsets []Link
}

// RewardsNode carries a block's staking rewards as a data frame.
type RewardsNode struct {
	_    struct{} `cbor:",toarray"`
	Kind uint64
	Slot uint64
	Data DataFrame
}

// PeekKind reads a node's kind without decoding the node. It relies
// on kinds being small enough (0..6) to occupy a single cbor byte
// directly after the array header.
func PeekKind(payload []byte) (Kind, error) {
	if len(payload) < 2 {
		return 0, decodeErr("node", "payload too short to hold a kind")
	}
	if payload[0]&0xe0 != 0x80 {
		return 0, decodeErr("node", "payload is not a cbor array (first byte 0x%02x)", payload[0])
	}
	if payload[1] > 0x17 {
		return 0, decodeErr("node", "kind is not a small integer (byte 0x%02x)", payload[1])
	}
	return Kind(payload[1]), nil
}

// decodeNodeAs decodes payload into out, checking that the node kind
// matches want.
func decodeNodeAs(payload []byte, want Kind, out any, kind func() uint64) error {
	got, err := PeekKind(payload)
	if err != nil {
		return err
	}
	if got != want {
		return decodeErr(want.String()+" node", "node kind is %s", got)
	}
	if err := cbor.Unmarshal(payload, out); err != nil {
		return decodeErr(want.String()+" node", "%v", err)
	}
	if Kind(kind()) != want {
		return decodeErr(want.String()+" node", "kind field is %d", kind())
	}
	return nil
}

// DecodeBlockNode decodes a kind-2 block node.
func DecodeBlockNode(payload []byte) (*BlockNode, error) {
	var node BlockNode
	if err := decodeNodeAs(payload, KindBlock, &node, func() uint64 { return node.Kind }); err != nil {
		return nil, err
	}
	return &node, nil
}

// DecodeEntryNode decodes a kind-1 entry node.
func DecodeEntryNode(payload []byte) (*EntryNode, error) {
	var node EntryNode
	if err := decodeNodeAs(payload, KindEntry, &node, func() uint64 { return node.Kind }); err != nil {
		return nil, err
	}
	return &node, nil
}

// DecodeTransactionNode decodes a kind-0 transaction node.
func DecodeTransactionNode(payload []byte) (*TransactionNode, error) {
	var node TransactionNode
	if err := decodeNodeAs(payload, KindTransaction, &node, func() uint64 { return node.Kind }); err != nil {
		return nil, err
	}
	return &node, nil
}

// DecodeDataFrame decodes a standalone kind-6 data frame node.
func DecodeDataFrame(payload []byte) (*DataFrame, error) {
	var node DataFrame
	if err := decodeNodeAs(payload, KindDataFrame, &node, func() uint64 { return node.Kind }); err != nil {
		return nil, err
	}
	return &node, nil
}

// DecodeRewardsNode decodes a kind-5 rewards node.
func DecodeRewardsNode(payload []byte) (*RewardsNode, error) {
	var node RewardsNode
	if err := decodeNodeAs(payload, KindRewards, &node, func() uint64 { return node.Kind }); err != nil {
		return nil, err
	}
	return &node, nil
}
