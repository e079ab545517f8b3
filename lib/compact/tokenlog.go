// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

// tokenMessages lists the SPL Token program's fixed log messages.
// The slice index is the stored code, so entries must never be
// reordered or removed; new messages go at the end.
var tokenMessages = []string{
	"Error: Lamport balance below rent-exempt threshold",
	"Error: insufficient funds",
	"Error: Invalid Mint",
	"Error: Account not associated with this Mint",
	"Error: owner does not match",
	"Error: the total supply of this token is fixed",
	"Error: account or token already in use",
	"Error: Invalid number of provided signers",
	"Error: Invalid number of required signers",
	"Error: State is uninitialized",
	"Error: Instruction does not support native tokens",
	"Error: Non-native account can only be closed if its balance is zero",
	"Error: Invalid instruction",
	"Error: Invalid account state for operation",
	"Error: Operation overflowed",
	"Error: Account does not support specified authority type",
	"Error: This token mint cannot freeze accounts",
	"Error: Account is frozen",
	"Error: decimals different from the Mint decimals",
	"Error: Instruction does not support non-native tokens",
	"Please upgrade to SPL Token 2022 for immutable owner support",
	"Instruction: Batch",
	"Instruction: InitializeMint",
	"Instruction: InitializeMint2",
	"Instruction: InitializeAccount",
	"Instruction: InitializeAccount2",
	"Instruction: InitializeAccount3",
	"Instruction: InitializeMultisig",
	"Instruction: InitializeMultisig2",
	"Instruction: InitializeImmutableOwner",
	"Instruction: GetAccountDataSize",
	"Instruction: AmountToUiAmount",
	"Instruction: UiAmountToAmount",
	"Instruction: Transfer",
	"Instruction: TransferChecked",
	"Instruction: Approve",
	"Instruction: Revoke",
	"Instruction: SetAuthority",
	"Instruction: MintTo",
	"Instruction: MintToChecked",
	"Instruction: Burn",
	"Instruction: BurnChecked",
	"Instruction: CloseAccount",
	"Instruction: FreezeAccount",
	"Instruction: ThawAccount",
	"Instruction: SyncNative",
	"Instruction: WithdrawExcessLamports",
	"Instruction: UnwrapLamports",
}

var tokenMessageCode = func() map[string]uint32 {
	m := make(map[string]uint32, len(tokenMessages))
	for i, s := range tokenMessages {
		m[s] = uint32(i)
	}
	return m
}()

// TokenLogMessage returns the SPL Token log text for a stored code.
func TokenLogMessage(code uint32) (string, bool) {
	if code >= uint32(len(tokenMessages)) {
		return "", false
	}
	return tokenMessages[code], true
}
