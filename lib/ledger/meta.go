// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"
	"math"
	"strconv"

	"github.com/klauspost/compress/zstd"
)

// Transaction status metadata changed serialization at epoch 157: earlier
// epochs store a bincode StoredTransactionStatusMeta, later epochs store a
// protobuf TransactionStatusMeta. Either form may additionally be wrapped
// in a zstd frame.
const (
	SlotsPerEpoch    = 432000
	protoMetaEpoch   = 157
	protoMetaMinSlot = protoMetaEpoch * SlotsPerEpoch
)

// RewardType identifies the origin of a reward credit.
type RewardType uint8

const (
	RewardUnspecified RewardType = 0
	RewardFee         RewardType = 1
	RewardRent        RewardType = 2
	RewardStaking     RewardType = 3
	RewardVoting      RewardType = 4
)

func (t RewardType) String() string {
	switch t {
	case RewardFee:
		return "fee"
	case RewardRent:
		return "rent"
	case RewardStaking:
		return "staking"
	case RewardVoting:
		return "voting"
	default:
		return "unspecified"
	}
}

// TokenBalance is an SPL token account balance snapshot taken before or
// after transaction execution. Mint, Owner and Program are decoded from
// their base58 string form; HasOwner and HasProgram report whether the
// source carried those fields at all.
type TokenBalance struct {
	AccountIndex uint8
	Mint         [PubkeyLen]byte
	Owner        [PubkeyLen]byte
	HasOwner     bool
	Program      [PubkeyLen]byte
	HasProgram   bool
	Amount       uint64
	Decimals     uint8
	UIAmount     float64
}

// Reward is a lamport credit applied at the block boundary.
type Reward struct {
	Pubkey        [PubkeyLen]byte
	Lamports      int64
	PostBalance   uint64
	Type          RewardType
	Commission    uint8
	HasCommission bool
}

// InnerInstruction is an instruction invoked by another instruction
// during execution, with its stack depth when the runtime recorded one.
type InnerInstruction struct {
	ProgramIndex   uint8
	Accounts       []uint8
	Data           []byte
	StackHeight    uint32
	HasStackHeight bool
}

// InnerInstructionSet groups the inner instructions spawned by one
// top-level instruction, identified by its index in the message.
type InnerInstructionSet struct {
	Index        uint8
	Instructions []InnerInstruction
}

// ReturnData is the data a program returned from its top-level invocation.
type ReturnData struct {
	Program [PubkeyLen]byte
	Data    []byte
}

// Meta is the decoded execution metadata of one transaction. The Has*
// flags preserve the source's present-but-empty versus absent
// distinction; older snapshots omit everything past the balance arrays.
type Meta struct {
	Status       TxStatus
	Fee          uint64
	PreBalances  []uint64
	PostBalances []uint64

	InnerInstructions []InnerInstructionSet
	HasInner          bool
	Logs              []string
	HasLogs           bool
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	Rewards           []Reward

	// Accounts loaded through address table lookups (protobuf era only).
	LoadedWritable [][PubkeyLen]byte
	LoadedReadonly [][PubkeyLen]byte

	ReturnData      *ReturnData
	ComputeUnits    uint64
	HasComputeUnits bool
	CostUnits       uint64
	HasCostUnits    bool
}

var zstdMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

var metaZstd = func() *zstd.Decoder {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return d
}()

// DecodeMeta decodes a transaction metadata frame for a transaction at
// the given slot. The frame may be zstd-compressed; the slot selects
// between the bincode and protobuf encodings.
func DecodeMeta(slot uint64, frame []byte) (*Meta, error) {
	if len(frame) >= 4 && [4]byte(frame[:4]) == zstdMagic {
		raw, err := metaZstd.DecodeAll(frame, nil)
		if err != nil {
			return nil, decodeErr("metadata zstd frame", "%v", err)
		}
		frame = raw
	}
	if slot >= protoMetaMinSlot {
		return decodeProtoMeta(frame)
	}
	return decodeBincodeMeta(frame)
}

// bincode primitives on top of cursor. Lengths and option tags follow
// the bincode 1.x fixed-int encoding: u64 lengths, one-byte option tags.

func (c *cursor) bcLen(field string) (int, error) {
	n, err := c.u64(field)
	if err != nil {
		return 0, err
	}
	if n > uint64(c.remaining()) {
		return 0, decodeErr(c.ctx, "%s length %d exceeds %d remaining bytes", field, n, c.remaining())
	}
	return int(n), nil
}

func (c *cursor) bcBytes(field string) ([]byte, error) {
	n, err := c.bcLen(field)
	if err != nil {
		return nil, err
	}
	return c.take(n, field)
}

func (c *cursor) bcString(field string) (string, error) {
	b, err := c.bcBytes(field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *cursor) f64(field string) (float64, error) {
	bits, err := c.u64(field)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// option reads the one-byte Option tag. Tags other than 0 or 1 are errors.
func (c *cursor) option(field string) (bool, error) {
	t, err := c.u8(field)
	if err != nil {
		return false, err
	}
	if t > 1 {
		return false, decodeErr(c.ctx, "%s option tag %d", field, t)
	}
	return t == 1, nil
}

// optionEOF is like option but treats end of input as None. The trailing
// metadata fields were appended across validator releases, so frames
// written by older software simply end early.
func (c *cursor) optionEOF(field string) (bool, error) {
	if c.remaining() == 0 {
		return false, nil
	}
	return c.option(field)
}

func decodeBincodeMeta(data []byte) (*Meta, error) {
	c := &cursor{data: data, ctx: "stored metadata"}
	m := &Meta{}

	if err := decodeStoredStatus(c, &m.Status); err != nil {
		return nil, err
	}
	var err error
	if m.Fee, err = c.u64("fee"); err != nil {
		return nil, err
	}
	if m.PreBalances, err = c.balanceVec("pre balances"); err != nil {
		return nil, err
	}
	if m.PostBalances, err = c.balanceVec("post balances"); err != nil {
		return nil, err
	}

	ok, err := c.optionEOF("inner instructions")
	if err != nil {
		return nil, err
	}
	if ok {
		m.HasInner = true
		if m.InnerInstructions, err = c.innerInstructionSets(); err != nil {
			return nil, err
		}
	}

	if ok, err = c.optionEOF("log messages"); err != nil {
		return nil, err
	}
	if ok {
		m.HasLogs = true
		n, err := c.bcLen("log messages")
		if err != nil {
			return nil, err
		}
		m.Logs = make([]string, n)
		for i := range m.Logs {
			if m.Logs[i], err = c.bcString("log message"); err != nil {
				return nil, err
			}
		}
	}

	if m.PreTokenBalances, err = c.tokenBalanceOption("pre token balances"); err != nil {
		return nil, err
	}
	if m.PostTokenBalances, err = c.tokenBalanceOption("post token balances"); err != nil {
		return nil, err
	}

	if ok, err = c.optionEOF("rewards"); err != nil {
		return nil, err
	}
	if ok {
		n, err := c.bcLen("rewards")
		if err != nil {
			return nil, err
		}
		m.Rewards = make([]Reward, n)
		for i := range m.Rewards {
			if err := c.storedReward(&m.Rewards[i]); err != nil {
				return nil, err
			}
		}
	}

	if ok, err = c.optionEOF("return data"); err != nil {
		return nil, err
	}
	if ok {
		rd := &ReturnData{}
		if rd.Program, err = c.pubkey("return data program"); err != nil {
			return nil, err
		}
		if rd.Data, err = c.bcBytes("return data"); err != nil {
			return nil, err
		}
		m.ReturnData = rd
	}

	if ok, err = c.optionEOF("compute units"); err != nil {
		return nil, err
	}
	if ok {
		m.HasComputeUnits = true
		if m.ComputeUnits, err = c.u64("compute units"); err != nil {
			return nil, err
		}
	}

	if ok, err = c.optionEOF("cost units"); err != nil {
		return nil, err
	}
	if ok {
		m.HasCostUnits = true
		if m.CostUnits, err = c.u64("cost units"); err != nil {
			return nil, err
		}
	}

	if c.remaining() != 0 {
		return nil, decodeErr(c.ctx, "%d trailing bytes", c.remaining())
	}
	return m, nil
}

// decodeStoredStatus reads the Result<(), TransactionError> head of the
// stored metadata. The Ok/Err tag is a 4-byte little-endian u32, like
// every other bincode enum discriminant in the layout; the error value
// follows the tag directly.
func decodeStoredStatus(c *cursor, st *TxStatus) error {
	tag, err := c.u32("status tag")
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		return nil
	case 1:
		*st, err = decodeTransactionError(c)
		return err
	default:
		return decodeErr(c.ctx, "result tag %d", tag)
	}
}

func (c *cursor) balanceVec(field string) ([]uint64, error) {
	n, err := c.bcLen(field)
	if err != nil {
		return nil, err
	}
	if n > c.remaining()/8 {
		return nil, decodeErr(c.ctx, "%s length %d exceeds remaining bytes", field, n)
	}
	out := make([]uint64, n)
	for i := range out {
		if out[i], err = c.u64(field); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *cursor) innerInstructionSets() ([]InnerInstructionSet, error) {
	n, err := c.bcLen("inner instruction sets")
	if err != nil {
		return nil, err
	}
	out := make([]InnerInstructionSet, n)
	for i := range out {
		if out[i].Index, err = c.u8("inner instruction index"); err != nil {
			return nil, err
		}
		cnt, err := c.bcLen("inner instructions")
		if err != nil {
			return nil, err
		}
		out[i].Instructions = make([]InnerInstruction, cnt)
		for j := range out[i].Instructions {
			in := &out[i].Instructions[j]
			if in.ProgramIndex, err = c.u8("inner program index"); err != nil {
				return nil, err
			}
			if in.Accounts, err = c.bcBytes("inner accounts"); err != nil {
				return nil, err
			}
			if in.Data, err = c.bcBytes("inner data"); err != nil {
				return nil, err
			}
			ok, err := c.option("stack height")
			if err != nil {
				return nil, err
			}
			if ok {
				in.HasStackHeight = true
				if in.StackHeight, err = c.u32("stack height"); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func (c *cursor) tokenBalanceOption(field string) ([]TokenBalance, error) {
	ok, err := c.optionEOF(field)
	if err != nil || !ok {
		return nil, err
	}
	n, err := c.bcLen(field)
	if err != nil {
		return nil, err
	}
	out := make([]TokenBalance, n)
	for i := range out {
		if err := c.storedTokenBalance(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *cursor) storedTokenBalance(tb *TokenBalance) error {
	var err error
	if tb.AccountIndex, err = c.u8("token account index"); err != nil {
		return err
	}
	mint, err := c.bcString("token mint")
	if err != nil {
		return err
	}
	if e := decodeBase58Pubkey(mint, &tb.Mint); e != nil {
		return decodeErr(c.ctx, "token mint %q: %v", mint, e)
	}
	if tb.UIAmount, err = c.f64("token ui amount"); err != nil {
		return err
	}
	if tb.Decimals, err = c.u8("token decimals"); err != nil {
		return err
	}
	amount, err := c.bcString("token amount")
	if err != nil {
		return err
	}
	raw, perr := strconv.ParseUint(amount, 10, 64)
	if perr != nil {
		return decodeErr(c.ctx, "token amount %q", amount)
	}
	tb.Amount = raw

	owner, err := c.bcString("token owner")
	if err != nil {
		return err
	}
	if owner != "" {
		if e := decodeBase58Pubkey(owner, &tb.Owner); e != nil {
			return decodeErr(c.ctx, "token owner %q: %v", owner, e)
		}
		tb.HasOwner = true
	}
	program, err := c.bcString("token program")
	if err != nil {
		return err
	}
	if program != "" {
		if e := decodeBase58Pubkey(program, &tb.Program); e != nil {
			return decodeErr(c.ctx, "token program %q: %v", program, e)
		}
		tb.HasProgram = true
	}
	return nil
}

func (c *cursor) storedReward(r *Reward) error {
	pubkey, err := c.bcString("reward pubkey")
	if err != nil {
		return err
	}
	if e := decodeBase58Pubkey(pubkey, &r.Pubkey); e != nil {
		return decodeErr(c.ctx, "reward pubkey %q: %v", pubkey, e)
	}
	if r.Lamports, err = c.i64("reward lamports"); err != nil {
		return err
	}
	if r.PostBalance, err = c.u64("reward post balance"); err != nil {
		return err
	}
	ok, err := c.option("reward type")
	if err != nil {
		return err
	}
	if ok {
		t, err := c.u8("reward type")
		if err != nil {
			return err
		}
		if t >= 1 && t <= 4 {
			r.Type = RewardType(t)
		}
	}
	if ok, err = c.option("reward commission"); err != nil {
		return err
	}
	if ok {
		r.HasCommission = true
		if r.Commission, err = c.u8("reward commission"); err != nil {
			return err
		}
	}
	return nil
}

func decodeBase58Pubkey(s string, out *[PubkeyLen]byte) error {
	raw, err := base58Decode(s)
	if err != nil {
		return err
	}
	if len(raw) != PubkeyLen {
		return fmt.Errorf("decoded to %d bytes, want %d", len(raw), PubkeyLen)
	}
	copy(out[:], raw)
	return nil
}
