// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/binary"
	"math"
	"strconv"
)

// Protobuf wire decoding for the post-epoch-157 TransactionStatusMeta.
// The message layout is the solana.storage.ConfirmedBlock schema; only
// the fields the compaction pipeline consumes are materialized, unknown
// fields are skipped by wire type.

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

type protoCursor struct {
	data []byte
	pos  int
	ctx  string
}

func (p *protoCursor) done() bool { return p.pos >= len(p.data) }

func (p *protoCursor) varint() (uint64, error) {
	v, n := binary.Uvarint(p.data[p.pos:])
	if n <= 0 {
		return 0, decodeErr(p.ctx, "bad varint at offset %d", p.pos)
	}
	p.pos += n
	return v, nil
}

// tag returns the field number and wire type of the next field.
func (p *protoCursor) tag() (uint64, int, error) {
	v, err := p.varint()
	if err != nil {
		return 0, 0, err
	}
	return v >> 3, int(v & 7), nil
}

func (p *protoCursor) bytes() ([]byte, error) {
	n, err := p.varint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(p.data)-p.pos) {
		return nil, decodeErr(p.ctx, "field length %d exceeds %d remaining bytes", n, len(p.data)-p.pos)
	}
	b := p.data[p.pos : p.pos+int(n)]
	p.pos += int(n)
	return b, nil
}

func (p *protoCursor) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := p.varint()
		return err
	case wireFixed64:
		if len(p.data)-p.pos < 8 {
			return decodeErr(p.ctx, "truncated fixed64 at offset %d", p.pos)
		}
		p.pos += 8
		return nil
	case wireBytes:
		_, err := p.bytes()
		return err
	case wireFixed32:
		if len(p.data)-p.pos < 4 {
			return decodeErr(p.ctx, "truncated fixed32 at offset %d", p.pos)
		}
		p.pos += 4
		return nil
	default:
		return decodeErr(p.ctx, "wire type %d at offset %d", wire, p.pos)
	}
}

// packedU64 appends the values of a repeated uint64 field to dst,
// accepting both the packed and the single-element encodings.
func (p *protoCursor) packedU64(wire int, dst []uint64) ([]uint64, error) {
	if wire == wireVarint {
		v, err := p.varint()
		if err != nil {
			return nil, err
		}
		return append(dst, v), nil
	}
	raw, err := p.bytes()
	if err != nil {
		return nil, err
	}
	sub := &protoCursor{data: raw, ctx: p.ctx}
	for !sub.done() {
		v, err := sub.varint()
		if err != nil {
			return nil, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

func decodeProtoMeta(data []byte) (*Meta, error) {
	p := &protoCursor{data: data, ctx: "proto metadata"}
	m := &Meta{}
	// Repeated fields appear on the wire only when non-empty, so presence
	// defaults to true and the explicit *_none markers clear it.
	m.HasInner = true
	m.HasLogs = true
	returnDataNone := false
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // err
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			if err := decodeProtoStatus(raw, &m.Status); err != nil {
				return nil, err
			}
		case 2: // fee
			if m.Fee, err = p.varint(); err != nil {
				return nil, err
			}
		case 3:
			if m.PreBalances, err = p.packedU64(wire, m.PreBalances); err != nil {
				return nil, err
			}
		case 4:
			if m.PostBalances, err = p.packedU64(wire, m.PostBalances); err != nil {
				return nil, err
			}
		case 5: // inner_instructions
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			set, err := decodeProtoInnerSet(raw)
			if err != nil {
				return nil, err
			}
			m.InnerInstructions = append(m.InnerInstructions, set)
		case 10: // inner_instructions_none
			v, err := p.varint()
			if err != nil {
				return nil, err
			}
			m.HasInner = v == 0
		case 6: // log_messages
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			m.Logs = append(m.Logs, string(raw))
		case 11: // log_messages_none
			v, err := p.varint()
			if err != nil {
				return nil, err
			}
			m.HasLogs = v == 0
		case 7, 8: // pre/post token balances
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			tb, err := decodeProtoTokenBalance(raw)
			if err != nil {
				return nil, err
			}
			if field == 7 {
				m.PreTokenBalances = append(m.PreTokenBalances, tb)
			} else {
				m.PostTokenBalances = append(m.PostTokenBalances, tb)
			}
		case 9: // rewards
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			r, err := decodeProtoReward(raw)
			if err != nil {
				return nil, err
			}
			m.Rewards = append(m.Rewards, r)
		case 12, 13: // loaded writable/readonly addresses
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			if len(raw) != PubkeyLen {
				return nil, decodeErr(p.ctx, "loaded address length %d", len(raw))
			}
			var pk [PubkeyLen]byte
			copy(pk[:], raw)
			if field == 12 {
				m.LoadedWritable = append(m.LoadedWritable, pk)
			} else {
				m.LoadedReadonly = append(m.LoadedReadonly, pk)
			}
		case 14: // return_data
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			rd, err := decodeProtoReturnData(raw)
			if err != nil {
				return nil, err
			}
			m.ReturnData = rd
		case 15: // return_data_none
			v, err := p.varint()
			if err != nil {
				return nil, err
			}
			returnDataNone = v != 0
		case 16: // compute_units_consumed
			m.HasComputeUnits = true
			if m.ComputeUnits, err = p.varint(); err != nil {
				return nil, err
			}
		case 17: // cost_units
			m.HasCostUnits = true
			if m.CostUnits, err = p.varint(); err != nil {
				return nil, err
			}
		default:
			if err := p.skip(wire); err != nil {
				return nil, err
			}
		}
	}
	if returnDataNone {
		m.ReturnData = nil
	}
	return m, nil
}

// decodeProtoStatus unwraps the TransactionError message, whose single
// field carries the bincode-serialized error verbatim.
func decodeProtoStatus(data []byte, st *TxStatus) error {
	p := &protoCursor{data: data, ctx: "proto status"}
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return err
		}
		if field == 1 && wire == wireBytes {
			raw, err := p.bytes()
			if err != nil {
				return err
			}
			*st, err = DecodeTransactionError(raw)
			return err
		}
		if err := p.skip(wire); err != nil {
			return err
		}
	}
	// An empty TransactionError message still marks the transaction failed.
	st.Err = true
	return nil
}

func decodeProtoInnerSet(data []byte) (InnerInstructionSet, error) {
	p := &protoCursor{data: data, ctx: "proto inner instructions"}
	var set InnerInstructionSet
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return set, err
		}
		switch field {
		case 1:
			v, err := p.varint()
			if err != nil {
				return set, err
			}
			set.Index = uint8(v)
		case 2:
			raw, err := p.bytes()
			if err != nil {
				return set, err
			}
			in, err := decodeProtoInner(raw)
			if err != nil {
				return set, err
			}
			set.Instructions = append(set.Instructions, in)
		default:
			if err := p.skip(wire); err != nil {
				return set, err
			}
		}
	}
	return set, nil
}

func decodeProtoInner(data []byte) (InnerInstruction, error) {
	p := &protoCursor{data: data, ctx: "proto inner instruction"}
	var in InnerInstruction
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return in, err
		}
		switch field {
		case 1:
			v, err := p.varint()
			if err != nil {
				return in, err
			}
			in.ProgramIndex = uint8(v)
		case 2:
			raw, err := p.bytes()
			if err != nil {
				return in, err
			}
			in.Accounts = raw
		case 3:
			raw, err := p.bytes()
			if err != nil {
				return in, err
			}
			in.Data = raw
		case 4:
			v, err := p.varint()
			if err != nil {
				return in, err
			}
			in.HasStackHeight = true
			in.StackHeight = uint32(v)
		default:
			if err := p.skip(wire); err != nil {
				return in, err
			}
		}
	}
	return in, nil
}

func decodeProtoTokenBalance(data []byte) (TokenBalance, error) {
	p := &protoCursor{data: data, ctx: "proto token balance"}
	var tb TokenBalance
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return tb, err
		}
		switch field {
		case 1:
			v, err := p.varint()
			if err != nil {
				return tb, err
			}
			tb.AccountIndex = uint8(v)
		case 2:
			raw, err := p.bytes()
			if err != nil {
				return tb, err
			}
			if e := decodeBase58Pubkey(string(raw), &tb.Mint); e != nil {
				return tb, decodeErr(p.ctx, "mint %q: %v", raw, e)
			}
		case 3: // ui_token_amount
			raw, err := p.bytes()
			if err != nil {
				return tb, err
			}
			if err := decodeProtoTokenAmount(raw, &tb); err != nil {
				return tb, err
			}
		case 4:
			raw, err := p.bytes()
			if err != nil {
				return tb, err
			}
			if len(raw) > 0 {
				if e := decodeBase58Pubkey(string(raw), &tb.Owner); e != nil {
					return tb, decodeErr(p.ctx, "owner %q: %v", raw, e)
				}
				tb.HasOwner = true
			}
		case 5:
			raw, err := p.bytes()
			if err != nil {
				return tb, err
			}
			if len(raw) > 0 {
				if e := decodeBase58Pubkey(string(raw), &tb.Program); e != nil {
					return tb, decodeErr(p.ctx, "program %q: %v", raw, e)
				}
				tb.HasProgram = true
			}
		default:
			if err := p.skip(wire); err != nil {
				return tb, err
			}
		}
	}
	return tb, nil
}

func decodeProtoTokenAmount(data []byte, tb *TokenBalance) error {
	p := &protoCursor{data: data, ctx: "proto token amount"}
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1: // ui_amount, double
			if len(p.data)-p.pos < 8 {
				return decodeErr(p.ctx, "truncated double")
			}
			tb.UIAmount = math.Float64frombits(binary.LittleEndian.Uint64(p.data[p.pos:]))
			p.pos += 8
		case 2:
			v, err := p.varint()
			if err != nil {
				return err
			}
			tb.Decimals = uint8(v)
		case 3:
			raw, err := p.bytes()
			if err != nil {
				return err
			}
			v, perr := strconv.ParseUint(string(raw), 10, 64)
			if perr != nil {
				return decodeErr(p.ctx, "amount %q", raw)
			}
			tb.Amount = v
		default:
			if err := p.skip(wire); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeProtoReward(data []byte) (Reward, error) {
	p := &protoCursor{data: data, ctx: "proto reward"}
	var r Reward
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return r, err
		}
		switch field {
		case 1:
			raw, err := p.bytes()
			if err != nil {
				return r, err
			}
			if e := decodeBase58Pubkey(string(raw), &r.Pubkey); e != nil {
				return r, decodeErr(p.ctx, "pubkey %q: %v", raw, e)
			}
		case 2:
			v, err := p.varint()
			if err != nil {
				return r, err
			}
			r.Lamports = int64(v)
		case 3:
			if r.PostBalance, err = p.varint(); err != nil {
				return r, err
			}
		case 4:
			v, err := p.varint()
			if err != nil {
				return r, err
			}
			if v >= 1 && v <= 4 {
				r.Type = RewardType(v)
			}
		case 5: // commission, decimal string
			raw, err := p.bytes()
			if err != nil {
				return r, err
			}
			if len(raw) > 0 {
				v, perr := strconv.ParseUint(string(raw), 10, 8)
				if perr != nil {
					return r, decodeErr(p.ctx, "commission %q", raw)
				}
				r.Commission = uint8(v)
				r.HasCommission = true
			}
		default:
			if err := p.skip(wire); err != nil {
				return r, err
			}
		}
	}
	return r, nil
}

func decodeProtoReturnData(data []byte) (*ReturnData, error) {
	p := &protoCursor{data: data, ctx: "proto return data"}
	rd := &ReturnData{}
	for !p.done() {
		field, wire, err := p.tag()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1:
			raw, err := p.bytes()
			if err != nil {
				return nil, err
			}
			if len(raw) != PubkeyLen {
				return nil, decodeErr(p.ctx, "program length %d", len(raw))
			}
			copy(rd.Program[:], raw)
		case 2:
			if rd.Data, err = p.bytes(); err != nil {
				return nil, err
			}
		default:
			if err := p.skip(wire); err != nil {
				return nil, err
			}
		}
	}
	return rd, nil
}
