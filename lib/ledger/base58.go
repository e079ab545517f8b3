// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import "fmt"

// Base58 with the Bitcoin alphabet, as used for Solana pubkeys and
// signatures in their human-readable form.

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ParsePubkey decodes a base58-encoded public key.
func ParsePubkey(s string) ([PubkeyLen]byte, error) {
	var key [PubkeyLen]byte
	err := decodeBase58Pubkey(s, &key)
	return key, err
}

// FormatPubkey renders a public key in its base58 form.
func FormatPubkey(key [PubkeyLen]byte) string {
	return base58Encode(key[:])
}

var base58Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base58Alphabet); i++ {
		idx[base58Alphabet[i]] = int8(i)
	}
	return idx
}()

func base58Decode(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && s[zeros] == '1' {
		zeros++
	}
	// Each base58 digit carries log2(58) ≈ 5.86 bits.
	out := make([]byte, 0, len(s)*733/1000+1)
	for i := zeros; i < len(s); i++ {
		d := base58Index[s[i]]
		if d < 0 {
			return nil, fmt.Errorf("invalid base58 character %q at %d", s[i], i)
		}
		carry := int(d)
		for j := 0; j < len(out); j++ {
			carry += int(out[j]) * 58
			out[j] = byte(carry)
			carry >>= 8
		}
		for carry > 0 {
			out = append(out, byte(carry))
			carry >>= 8
		}
	}
	result := make([]byte, zeros+len(out))
	for i, b := range out {
		result[len(result)-1-i] = b
	}
	return result, nil
}

func base58Encode(data []byte) string {
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}
	digits := make([]byte, 0, len(data)*137/100+1)
	for _, b := range data[zeros:] {
		carry := int(b)
		for j := 0; j < len(digits); j++ {
			carry += int(digits[j]) << 8
			digits[j] = byte(carry % 58)
			carry /= 58
		}
		for carry > 0 {
			digits = append(digits, byte(carry%58))
			carry /= 58
		}
	}
	out := make([]byte, zeros+len(digits))
	for i := range zeros {
		out[i] = '1'
	}
	for i, d := range digits {
		out[len(out)-1-i] = base58Alphabet[d]
	}
	return string(out)
}
