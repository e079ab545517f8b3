// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"bytes"
	"testing"

	"github.com/blockzilla-foundation/blockzilla/lib/ledger"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

func buildTestRegistry(keys ...[32]byte) *registry.Registry {
	b := registry.NewBuilder()
	for _, k := range keys {
		b.LookupOrInsert(k)
	}
	return b.Finalize()
}

func TestRuntimeRecordRoundTrip(t *testing.T) {
	fee := testKey(1)
	mint := testKey(2)
	owner := testKey(3)
	program := testKey(4)
	rewardee := testKey(5)
	reg := buildTestRegistry(fee, mint, owner, program, rewardee)
	re := newRuntimeEncoder(reg)

	// accounts maps transaction account indices to registry IDs.
	accounts := []uint32{0, 3, 1}

	meta := &ledger.Meta{
		HasLogs:  true,
		Logs:     []string{"Program log: hi"},
		HasInner: true,
		InnerInstructions: []ledger.InnerInstructionSet{
			{
				Index: 2,
				Instructions: []ledger.InnerInstruction{
					{
						ProgramIndex:   1,
						Accounts:       []uint8{0, 2},
						Data:           []byte{9, 9, 9},
						StackHeight:    2,
						HasStackHeight: true,
					},
					{ProgramIndex: 1, Accounts: nil, Data: nil},
				},
			},
		},
		PreTokenBalances: []ledger.TokenBalance{
			{
				AccountIndex: 1,
				Mint:         mint,
				Owner:        owner,
				HasOwner:     true,
				Program:      program,
				HasProgram:   true,
				Amount:       1000000,
				Decimals:     6,
			},
		},
		PostTokenBalances: []ledger.TokenBalance{
			{AccountIndex: 1, Mint: mint, Amount: 999000, Decimals: 6},
		},
		Rewards: []ledger.Reward{
			{
				Pubkey:        rewardee,
				Lamports:      -5000,
				PostBalance:   123456789,
				Type:          ledger.RewardRent,
				Commission:    10,
				HasCommission: true,
			},
		},
		ReturnData:      &ledger.ReturnData{Program: program, Data: []byte{0xaa, 0xbb}},
		ComputeUnits:    4242,
		HasComputeUnits: true,
	}

	buf, err := re.encode(nil, meta, accounts)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rec, err := DecodeRuntimeRecord(buf)
	if err != nil {
		t.Fatalf("DecodeRuntimeRecord: %v", err)
	}

	if !rec.HasLogs || len(rec.Logs) != 1 || rec.Logs[0].Kind != LogPlain {
		t.Errorf("logs = %+v", rec.Logs)
	}

	if !rec.HasInner || len(rec.Inner) != 1 {
		t.Fatalf("inner sets = %+v", rec.Inner)
	}
	set := rec.Inner[0]
	if set.Index != 2 || len(set.Instructions) != 2 {
		t.Fatalf("inner set = %+v", set)
	}
	in := set.Instructions[0]
	if in.Program != accounts[1] {
		t.Errorf("inner program = %d, want %d", in.Program, accounts[1])
	}
	if len(in.Accounts) != 2 || in.Accounts[0] != accounts[0] || in.Accounts[1] != accounts[2] {
		t.Errorf("inner accounts = %v", in.Accounts)
	}
	if !bytes.Equal(in.Data, []byte{9, 9, 9}) {
		t.Errorf("inner data = %x", in.Data)
	}
	if !in.HasStackHeight || in.StackHeight != 2 {
		t.Errorf("stack height = %d (has=%v)", in.StackHeight, in.HasStackHeight)
	}
	if set.Instructions[1].HasStackHeight {
		t.Error("absent stack height decoded as present")
	}

	if len(rec.PreTokenBalances) != 1 {
		t.Fatalf("pre token balances = %+v", rec.PreTokenBalances)
	}
	tb := rec.PreTokenBalances[0]
	mintID, _ := reg.Lookup(mint)
	ownerID, _ := reg.Lookup(owner)
	programID, _ := reg.Lookup(program)
	if tb.AccountIndex != 1 || tb.Mint != mintID || tb.Amount != 1000000 || tb.Decimals != 6 {
		t.Errorf("pre token balance = %+v", tb)
	}
	if !tb.HasOwner || tb.Owner != ownerID || !tb.HasProgram || tb.Program != programID {
		t.Errorf("token balance owner/program = %+v", tb)
	}
	post := rec.PostTokenBalances[0]
	if post.HasOwner || post.HasProgram {
		t.Errorf("absent owner/program decoded as present: %+v", post)
	}

	if len(rec.Rewards) != 1 {
		t.Fatalf("rewards = %+v", rec.Rewards)
	}
	rw := rec.Rewards[0]
	rewardeeID, _ := reg.Lookup(rewardee)
	if rw.Pubkey != rewardeeID || rw.Lamports != -5000 || rw.PostBalance != 123456789 {
		t.Errorf("reward = %+v", rw)
	}
	if rw.Type != ledger.RewardRent || !rw.HasCommission || rw.Commission != 10 {
		t.Errorf("reward type/commission = %+v", rw)
	}

	if rec.ReturnData == nil || rec.ReturnData.Program != programID {
		t.Fatalf("return data = %+v", rec.ReturnData)
	}
	blob, err := re.blobs.Finalize().Value(rec.ReturnData.Data)
	if err != nil {
		t.Fatalf("return blob: %v", err)
	}
	if !bytes.Equal(blob, []byte{0xaa, 0xbb}) {
		t.Errorf("return blob = %x", blob)
	}

	if !rec.HasComputeUnits || rec.ComputeUnits != 4242 {
		t.Errorf("compute units = %d (has=%v)", rec.ComputeUnits, rec.HasComputeUnits)
	}
}

func TestRuntimeRecordEmptyMeta(t *testing.T) {
	reg := buildTestRegistry()
	re := newRuntimeEncoder(reg)
	buf, err := re.encode(nil, &ledger.Meta{}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rec, err := DecodeRuntimeRecord(buf)
	if err != nil {
		t.Fatalf("DecodeRuntimeRecord: %v", err)
	}
	if rec.HasLogs || rec.HasInner || rec.HasComputeUnits || rec.ReturnData != nil {
		t.Errorf("empty meta decoded as %+v", rec)
	}
	if len(rec.PreTokenBalances) != 0 || len(rec.PostTokenBalances) != 0 || len(rec.Rewards) != 0 {
		t.Errorf("empty meta decoded as %+v", rec)
	}
}

func TestRuntimeRecordUnregisteredKey(t *testing.T) {
	reg := buildTestRegistry(testKey(1))
	re := newRuntimeEncoder(reg)
	meta := &ledger.Meta{
		Rewards: []ledger.Reward{{Pubkey: testKey(99)}},
	}
	if _, err := re.encode(nil, meta, nil); err == nil {
		t.Fatal("unregistered reward pubkey accepted")
	}
}

func TestRuntimeRecordInnerIndexOutOfRange(t *testing.T) {
	reg := buildTestRegistry(testKey(1))
	re := newRuntimeEncoder(reg)
	meta := &ledger.Meta{
		HasInner: true,
		InnerInstructions: []ledger.InnerInstructionSet{
			{Index: 0, Instructions: []ledger.InnerInstruction{{ProgramIndex: 5}}},
		},
	}
	if _, err := re.encode(nil, meta, []uint32{0}); err == nil {
		t.Fatal("out-of-range program index accepted")
	}
}

func TestRuntimeRecordTrailingBytes(t *testing.T) {
	reg := buildTestRegistry()
	re := newRuntimeEncoder(reg)
	buf, err := re.encode(nil, &ledger.Meta{}, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRuntimeRecord(append(buf, 0)); err == nil {
		t.Fatal("trailing byte accepted")
	}
}
