// Package crypto is the pure-function cryptographic boundary the EVM core
// consumes. Per the specification, Keccak-256 (and other primitives like
// secp256k1 recovery, BLS, and KZG) are treated as external collaborators;
// this package wraps the one primitive the core genuinely needs —
// Keccak-256 — using golang.org/x/crypto/sha3 rather than reimplementing
// the sponge construction.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/evmlabs/coreevm/core/types"
)

func init() {
	types.EmptyCodeHash = types.BytesToHash(Keccak256(nil))
}

// Keccak256 returns the Keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash returns the Keccak-256 digest of data as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(data...))
}
