// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/binary"
	"testing"
)

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func TestDecodeTransactionErrorVariants(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want TxStatus
	}{
		{
			name: "payloadless variant",
			data: le32(1), // AccountInUse
			want: TxStatus{Err: true, Code: 1},
		},
		{
			name: "instruction error",
			data: append(append(le32(TxErrInstruction), 3), le32(4)...),
			want: TxStatus{Err: true, Code: TxErrInstruction, InstrIndex: 3, InstrCode: 4},
		},
		{
			name: "custom program error",
			data: append(append(append(le32(TxErrInstruction), 0), le32(InstrErrCustom)...), le32(6025)...),
			want: TxStatus{Err: true, Code: TxErrInstruction, InstrCode: InstrErrCustom, CustomCode: 6025},
		},
		{
			name: "duplicate instruction",
			data: append(le32(TxErrDuplicateInstruction), 7),
			want: TxStatus{Err: true, Code: TxErrDuplicateInstruction, InstrIndex: 7},
		},
		{
			name: "insufficient funds for rent",
			data: append(le32(TxErrInsufficientFundsRent), 2),
			want: TxStatus{Err: true, Code: TxErrInsufficientFundsRent, InstrIndex: 2},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeTransactionError(tc.data)
			if err != nil {
				t.Fatalf("DecodeTransactionError: %v", err)
			}
			if got != tc.want {
				t.Errorf("status = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecodeTransactionErrorBorshIOConsumesString(t *testing.T) {
	msg := "custom program io failure"
	data := append(le32(TxErrInstruction), 1)
	data = append(data, le32(InstrErrBorshIO)...)
	data = binary.LittleEndian.AppendUint64(data, uint64(len(msg)))
	data = append(data, msg...)

	// Trailing fields after the error must still line up, so wrap the
	// error in a stored-metadata prefix and check the fee that follows.
	frame := append(le32(1), data...) // Err tag
	frame = binary.LittleEndian.AppendUint64(frame, 5000)
	frame = binary.LittleEndian.AppendUint64(frame, 0) // pre balances
	frame = binary.LittleEndian.AppendUint64(frame, 0) // post balances

	m, err := decodeBincodeMeta(frame)
	if err != nil {
		t.Fatalf("decodeBincodeMeta: %v", err)
	}
	if !m.Status.Err || m.Status.InstrCode != InstrErrBorshIO {
		t.Errorf("status = %+v", m.Status)
	}
	if m.Fee != 5000 {
		t.Errorf("fee = %d, want 5000 (error payload not fully consumed)", m.Fee)
	}
}

func TestDecodeTransactionErrorRejectsUnknownTags(t *testing.T) {
	if _, err := DecodeTransactionError(le32(maxKnownTransactionErrorTag + 1)); err == nil {
		t.Error("accepted unknown transaction error tag")
	}
	data := append(append(le32(TxErrInstruction), 0), le32(maxKnownInstructionErrorTag+1)...)
	if _, err := DecodeTransactionError(data); err == nil {
		t.Error("accepted unknown instruction error tag")
	}
}

func TestDecodeTransactionErrorTruncated(t *testing.T) {
	if _, err := DecodeTransactionError([]byte{8, 0, 0}); err == nil {
		t.Error("accepted truncated error tag")
	}
	if _, err := DecodeTransactionError(le32(TxErrInstruction)); err == nil {
		t.Error("accepted instruction error with no payload")
	}
}
