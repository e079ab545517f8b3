// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

// TxStatus is a transaction's execution result. Error causes are
// kept as the runtime's numeric discriminants, never as strings.
type TxStatus struct {
	// Err is true when the transaction failed.
	Err bool
	// Code is the TransactionError discriminant when Err is set.
	Code uint32
	// InstrIndex and InstrCode identify the failing instruction and
	// its InstructionError discriminant when Code is
	// TxErrInstruction. InstrIndex also carries the payload of the
	// other index-carrying variants (duplicate instruction,
	// insufficient funds for rent, execution temporarily restricted).
	InstrIndex uint8
	InstrCode  uint32
	// CustomCode is the program-defined error number when InstrCode
	// is InstrErrCustom.
	CustomCode uint32
}

// TransactionError discriminants with payloads. The payloadless
// variants are carried through by number only.
const (
	TxErrInstruction            = 8  // (instruction index, InstructionError)
	TxErrDuplicateInstruction   = 29 // (instruction index)
	TxErrInsufficientFundsRent  = 30 // (account index)
	TxErrExecutionRestricted    = 34 // (account index)
	maxKnownTransactionErrorTag = 40
)

// InstructionError discriminants with payloads.
const (
	InstrErrCustom              = 25 // (u32 program error)
	InstrErrBorshIO             = 44 // (string message, discarded)
	maxKnownInstructionErrorTag = 60
)

// decodeTransactionError consumes a bincode-encoded TransactionError
// from the cursor. The full enum layout must be walked — bincode has
// no framing, so the payload bytes of the error sit directly in front
// of the fields that follow it.
func decodeTransactionError(c *cursor) (TxStatus, error) {
	status := TxStatus{Err: true}

	code, err := c.u32("transaction error tag")
	if err != nil {
		return status, err
	}
	if code > maxKnownTransactionErrorTag {
		return status, decodeErr(c.ctx, "unknown transaction error tag %d", code)
	}
	status.Code = code

	switch code {
	case TxErrInstruction:
		if status.InstrIndex, err = c.u8("instruction error index"); err != nil {
			return status, err
		}
		if status.InstrCode, err = c.u32("instruction error tag"); err != nil {
			return status, err
		}
		switch status.InstrCode {
		case InstrErrCustom:
			if status.CustomCode, err = c.u32("custom error code"); err != nil {
				return status, err
			}
		case InstrErrBorshIO:
			// String payload: u64 length + utf8 bytes. The text is
			// runtime noise; only the discriminant is kept.
			n, err := c.u64("borsh io error length")
			if err != nil {
				return status, err
			}
			if n > uint64(c.remaining()) {
				return status, decodeErr(c.ctx, "borsh io error string length %d exceeds input", n)
			}
			if _, err := c.take(int(n), "borsh io error text"); err != nil {
				return status, err
			}
		default:
			if status.InstrCode > maxKnownInstructionErrorTag {
				return status, decodeErr(c.ctx, "unknown instruction error tag %d", status.InstrCode)
			}
		}

	case TxErrDuplicateInstruction, TxErrInsufficientFundsRent, TxErrExecutionRestricted:
		if status.InstrIndex, err = c.u8("error index payload"); err != nil {
			return status, err
		}
	}

	return status, nil
}

// DecodeTransactionError decodes a standalone bincode-encoded
// TransactionError value, as stored inside protobuf status metadata.
func DecodeTransactionError(data []byte) (TxStatus, error) {
	c := &cursor{data: data, ctx: "transaction error"}
	status, err := decodeTransactionError(c)
	if err != nil {
		return status, err
	}
	return status, nil
}
