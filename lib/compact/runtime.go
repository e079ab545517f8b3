// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"github.com/blockzilla-foundation/blockzilla/lib/ledger"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

// RuntimeInstruction is one inner instruction with its accounts
// resolved to registry IDs.
type RuntimeInstruction struct {
	Program        uint32
	Accounts       []uint32
	Data           []byte
	StackHeight    uint32
	HasStackHeight bool
}

// RuntimeInnerSet groups the inner instructions of one top-level
// instruction.
type RuntimeInnerSet struct {
	Index        uint8
	Instructions []RuntimeInstruction
}

// RuntimeTokenBalance is a token balance snapshot with its keys
// resolved to registry IDs.
type RuntimeTokenBalance struct {
	AccountIndex uint8
	Mint         uint32
	Owner        uint32
	HasOwner     bool
	Program      uint32
	HasProgram   bool
	Amount       uint64
	Decimals     uint8
}

// RuntimeReward is a transaction-level reward with its recipient
// resolved to a registry ID.
type RuntimeReward struct {
	Pubkey        uint32
	Lamports      int64
	PostBalance   uint64
	Type          ledger.RewardType
	Commission    uint8
	HasCommission bool
}

// RuntimeReturnData points a program's return blob into the bytes
// table.
type RuntimeReturnData struct {
	Program uint32
	Data    uint32
}

// RuntimeRecord is the execution metadata of one transaction as stored
// in the runtime file. String and byte payloads are IDs into the
// epoch's shared tables.
type RuntimeRecord struct {
	Logs              []LogEvent
	HasLogs           bool
	Inner             []RuntimeInnerSet
	HasInner          bool
	PreTokenBalances  []RuntimeTokenBalance
	PostTokenBalances []RuntimeTokenBalance
	Rewards           []RuntimeReward
	ReturnData        *RuntimeReturnData
	ComputeUnits      uint64
	HasComputeUnits   bool
}

const (
	runtimeFlagLogs = 1 << iota
	runtimeFlagInner
	runtimeFlagReturnData
	runtimeFlagCompute
)

// runtimeEncoder resolves metadata against the sealed registry and
// interns variable-length payloads while serializing records.
type runtimeEncoder struct {
	reg     *registry.Registry
	strings *registry.TableBuilder
	blobs   *registry.TableBuilder
	logs    logParser
}

func newRuntimeEncoder(reg *registry.Registry) *runtimeEncoder {
	re := &runtimeEncoder{
		reg:     reg,
		strings: registry.NewTableBuilder(),
		blobs:   registry.NewTableBuilder(),
	}
	re.logs = logParser{lookup: reg.Lookup, strings: re.strings, blobs: re.blobs}
	return re
}

func (re *runtimeEncoder) keyID(key [32]byte, what string) (uint32, error) {
	id, ok := re.reg.Lookup(key)
	if !ok {
		return 0, formatErr("runtime", "%s key %s missing from registry", what, ledger.FormatPubkey(key))
	}
	return id, nil
}

// optionalID encodes an optional registry ID as id+1, zero for absent.
func optionalID(id uint32, present bool) uint64 {
	if !present {
		return 0
	}
	return uint64(id) + 1
}

// encode appends one serialized runtime record to buf. accounts maps a
// transaction's combined account list (static, then loaded writable,
// then loaded readonly) to registry IDs, for resolving by-index
// references.
func (re *runtimeEncoder) encode(buf []byte, meta *ledger.Meta, accounts []uint32) ([]byte, error) {
	var flags byte
	if meta.HasLogs {
		flags |= runtimeFlagLogs
	}
	if meta.HasInner {
		flags |= runtimeFlagInner
	}
	if meta.ReturnData != nil {
		flags |= runtimeFlagReturnData
	}
	if meta.HasComputeUnits {
		flags |= runtimeFlagCompute
	}
	buf = append(buf, flags)

	if meta.HasLogs {
		buf = appendLogEvents(buf, re.logs.parse(meta.Logs))
	}

	if meta.HasInner {
		buf = appendUvarint(buf, uint64(len(meta.InnerInstructions)))
		for _, set := range meta.InnerInstructions {
			buf = append(buf, set.Index)
			buf = appendUvarint(buf, uint64(len(set.Instructions)))
			for _, in := range set.Instructions {
				var err error
				if buf, err = re.encodeInner(buf, in, accounts); err != nil {
					return nil, err
				}
			}
		}
	}

	var err error
	if buf, err = re.encodeTokenBalances(buf, meta.PreTokenBalances); err != nil {
		return nil, err
	}
	if buf, err = re.encodeTokenBalances(buf, meta.PostTokenBalances); err != nil {
		return nil, err
	}

	buf = appendUvarint(buf, uint64(len(meta.Rewards)))
	for _, r := range meta.Rewards {
		id, err := re.keyID(r.Pubkey, "reward")
		if err != nil {
			return nil, err
		}
		buf = appendUvarint(buf, uint64(id))
		buf = appendUvarint(buf, zigzag(r.Lamports))
		buf = appendUvarint(buf, r.PostBalance)
		buf = append(buf, byte(r.Type))
		if r.HasCommission {
			buf = append(buf, 1, r.Commission)
		} else {
			buf = append(buf, 0)
		}
	}

	if meta.ReturnData != nil {
		id, err := re.keyID(meta.ReturnData.Program, "return data program")
		if err != nil {
			return nil, err
		}
		buf = appendUvarint(buf, uint64(id))
		buf = appendUvarint(buf, uint64(re.blobs.Intern(meta.ReturnData.Data)))
	}

	if meta.HasComputeUnits {
		buf = appendUvarint(buf, meta.ComputeUnits)
	}
	return buf, nil
}

func (re *runtimeEncoder) encodeInner(buf []byte, in ledger.InnerInstruction, accounts []uint32) ([]byte, error) {
	program, err := resolveIndex(accounts, in.ProgramIndex, "inner instruction program")
	if err != nil {
		return nil, err
	}
	buf = appendUvarint(buf, uint64(program))
	buf = appendUvarint(buf, uint64(len(in.Accounts)))
	for _, idx := range in.Accounts {
		id, err := resolveIndex(accounts, idx, "inner instruction account")
		if err != nil {
			return nil, err
		}
		buf = appendUvarint(buf, uint64(id))
	}
	buf = appendFrame(buf, in.Data)
	if in.HasStackHeight {
		buf = appendUvarint(buf, uint64(in.StackHeight)+1)
	} else {
		buf = appendUvarint(buf, 0)
	}
	return buf, nil
}

func (re *runtimeEncoder) encodeTokenBalances(buf []byte, balances []ledger.TokenBalance) ([]byte, error) {
	buf = appendUvarint(buf, uint64(len(balances)))
	for _, tb := range balances {
		mint, err := re.keyID(tb.Mint, "token mint")
		if err != nil {
			return nil, err
		}
		buf = append(buf, tb.AccountIndex)
		buf = appendUvarint(buf, uint64(mint))

		owner := uint64(0)
		if tb.HasOwner {
			id, err := re.keyID(tb.Owner, "token owner")
			if err != nil {
				return nil, err
			}
			owner = optionalID(id, true)
		}
		buf = appendUvarint(buf, owner)

		program := uint64(0)
		if tb.HasProgram {
			id, err := re.keyID(tb.Program, "token program")
			if err != nil {
				return nil, err
			}
			program = optionalID(id, true)
		}
		buf = appendUvarint(buf, program)

		buf = appendUvarint(buf, tb.Amount)
		buf = append(buf, tb.Decimals)
	}
	return buf, nil
}

func resolveIndex(accounts []uint32, idx uint8, what string) (uint32, error) {
	if int(idx) >= len(accounts) {
		return 0, formatErr("runtime", "%s index %d outside %d-account table", what, idx, len(accounts))
	}
	return accounts[idx], nil
}

// DecodeRuntimeRecord decodes one serialized runtime record.
func DecodeRuntimeRecord(data []byte) (*RuntimeRecord, error) {
	c := &byteCursor{data: data, ctx: "runtime record"}
	rec := &RuntimeRecord{}

	flags, err := c.u8("flags")
	if err != nil {
		return nil, err
	}
	rec.HasLogs = flags&runtimeFlagLogs != 0
	rec.HasInner = flags&runtimeFlagInner != 0

	if rec.HasLogs {
		if rec.Logs, err = decodeLogEvents(c); err != nil {
			return nil, err
		}
	}

	if rec.HasInner {
		count, err := c.uvarint("inner set count")
		if err != nil {
			return nil, err
		}
		if count > uint64(c.remaining()) {
			return nil, c.errf("inner set count %d exceeds remaining bytes", count)
		}
		rec.Inner = make([]RuntimeInnerSet, count)
		for i := range rec.Inner {
			set := &rec.Inner[i]
			if set.Index, err = c.u8("inner set index"); err != nil {
				return nil, err
			}
			n, err := c.uvarint("inner instruction count")
			if err != nil {
				return nil, err
			}
			if n > uint64(c.remaining()) {
				return nil, c.errf("inner instruction count %d exceeds remaining bytes", n)
			}
			set.Instructions = make([]RuntimeInstruction, n)
			for j := range set.Instructions {
				if err := decodeRuntimeInstruction(c, &set.Instructions[j]); err != nil {
					return nil, err
				}
			}
		}
	}

	if rec.PreTokenBalances, err = decodeTokenBalances(c); err != nil {
		return nil, err
	}
	if rec.PostTokenBalances, err = decodeTokenBalances(c); err != nil {
		return nil, err
	}

	rewardCount, err := c.uvarint("reward count")
	if err != nil {
		return nil, err
	}
	if rewardCount > uint64(c.remaining()) {
		return nil, c.errf("reward count %d exceeds remaining bytes", rewardCount)
	}
	rec.Rewards = make([]RuntimeReward, rewardCount)
	for i := range rec.Rewards {
		r := &rec.Rewards[i]
		if r.Pubkey, err = c.uvarint32("reward pubkey id"); err != nil {
			return nil, err
		}
		raw, err := c.uvarint("reward lamports")
		if err != nil {
			return nil, err
		}
		r.Lamports = unzigzag(raw)
		if r.PostBalance, err = c.uvarint("reward post balance"); err != nil {
			return nil, err
		}
		t, err := c.u8("reward type")
		if err != nil {
			return nil, err
		}
		r.Type = ledger.RewardType(t)
		has, err := c.u8("reward commission flag")
		if err != nil {
			return nil, err
		}
		if has != 0 {
			r.HasCommission = true
			if r.Commission, err = c.u8("reward commission"); err != nil {
				return nil, err
			}
		}
	}

	if flags&runtimeFlagReturnData != 0 {
		rd := &RuntimeReturnData{}
		if rd.Program, err = c.uvarint32("return data program id"); err != nil {
			return nil, err
		}
		if rd.Data, err = c.uvarint32("return data blob id"); err != nil {
			return nil, err
		}
		rec.ReturnData = rd
	}

	if flags&runtimeFlagCompute != 0 {
		rec.HasComputeUnits = true
		if rec.ComputeUnits, err = c.uvarint("compute units"); err != nil {
			return nil, err
		}
	}

	if c.remaining() != 0 {
		return nil, c.errf("%d trailing bytes", c.remaining())
	}
	return rec, nil
}

func decodeRuntimeInstruction(c *byteCursor, in *RuntimeInstruction) error {
	var err error
	if in.Program, err = c.uvarint32("inner program id"); err != nil {
		return err
	}
	if in.Accounts, err = c.idList("inner account ids"); err != nil {
		return err
	}
	if in.Data, err = c.frame("inner instruction data"); err != nil {
		return err
	}
	height, err := c.uvarint("inner stack height")
	if err != nil {
		return err
	}
	if height > 0 {
		in.HasStackHeight = true
		in.StackHeight = uint32(height - 1)
	}
	return nil
}

func decodeTokenBalances(c *byteCursor) ([]RuntimeTokenBalance, error) {
	count, err := c.uvarint("token balance count")
	if err != nil {
		return nil, err
	}
	if count > uint64(c.remaining()) {
		return nil, c.errf("token balance count %d exceeds remaining bytes", count)
	}
	if count == 0 {
		return nil, nil
	}
	out := make([]RuntimeTokenBalance, count)
	for i := range out {
		tb := &out[i]
		if tb.AccountIndex, err = c.u8("token account index"); err != nil {
			return nil, err
		}
		if tb.Mint, err = c.uvarint32("token mint id"); err != nil {
			return nil, err
		}
		owner, err := c.uvarint("token owner id")
		if err != nil {
			return nil, err
		}
		if owner > 0 {
			tb.HasOwner = true
			tb.Owner = uint32(owner - 1)
		}
		program, err := c.uvarint("token program id")
		if err != nil {
			return nil, err
		}
		if program > 0 {
			tb.HasProgram = true
			tb.Program = uint32(program - 1)
		}
		if tb.Amount, err = c.uvarint("token amount"); err != nil {
			return nil, err
		}
		if tb.Decimals, err = c.u8("token decimals"); err != nil {
			return nil, err
		}
	}
	return out, nil
}
