package types

import "github.com/holiman/uint256"

// Block carries the header fields the execution engine's BlockContext
// needs. Full block validation (transaction roots, uncle/ommer handling,
// withdrawal processing) is a Non-goal — this is a read-only execution
// context, not a consensus object.
type Block struct {
	Number     uint64
	Time       uint64
	GasLimit   uint64
	Coinbase   Address
	BaseFee    *uint256.Int // nil pre-London
	PrevRandao Hash         // post-Merge; mix-hash/difficulty pre-Merge are not modeled
	BlobBaseFee *uint256.Int // nil pre-Cancun

	// GetHash resolves a historical block number to its hash for the
	// BLOCKHASH opcode. Nil returns the zero hash (out of the 256-block
	// window, or no block history available).
	GetHash func(num uint64) Hash
}

// Hash returns b.GetHash(num), or the zero hash if GetHash is unset.
func (b *Block) Hash(num uint64) Hash {
	if b.GetHash == nil {
		return Hash{}
	}
	return b.GetHash(num)
}
