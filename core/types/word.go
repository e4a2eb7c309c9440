// Package types defines the core data primitives the EVM core operates on:
// 256-bit words, 20-byte addresses, 32-byte hashes, and the account/log
// shapes the state store and interpreter share.
package types

import "github.com/holiman/uint256"

// Word is the EVM's native 256-bit unsigned integer. All stack and storage
// values are Words. Arithmetic wraps modulo 2^256 unless a method says
// otherwise (SDiv, SMod, etc. follow two's-complement signed semantics).
type Word = uint256.Int

// NewWord returns a Word initialised from a uint64.
func NewWord(v uint64) *Word {
	return new(uint256.Int).SetUint64(v)
}

// ZeroWord returns a new zero-valued Word.
func ZeroWord() *Word {
	return new(uint256.Int)
}

// WordFromBytes interprets b as a big-endian integer, left-padding/truncating
// to 32 bytes as uint256.SetBytes does.
func WordFromBytes(b []byte) *Word {
	return new(uint256.Int).SetBytes(b)
}
