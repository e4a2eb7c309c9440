package state

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// stateObject is the mutable in-memory representation of one account.
// Storage is split into committed (as of the last Finalize) and dirty
// (uncommitted) maps so GetCommittedState can answer SSTORE's "original
// value" question independent of what's been written so far this tx.
type stateObject struct {
	nonce    uint64
	balance  uint256.Int
	codeHash types.Hash
	code     []byte

	hasDelegation bool
	delegation    types.Address

	dirtyStorage     map[types.Hash]uint256.Int
	committedStorage map[types.Hash]uint256.Int

	selfDestructed bool
	createdThisTx  bool
}

func newStateObject() *stateObject {
	return &stateObject{
		codeHash:         types.EmptyCodeHash,
		dirtyStorage:     make(map[types.Hash]uint256.Int),
		committedStorage: make(map[types.Hash]uint256.Int),
	}
}

func (o *stateObject) getState(key types.Hash) uint256.Int {
	if v, ok := o.dirtyStorage[key]; ok {
		return v
	}
	return o.committedStorage[key]
}

func (o *stateObject) getCommittedState(key types.Hash) uint256.Int {
	return o.committedStorage[key]
}

// empty reports whether the account is "dead" per EIP-161: nonce zero,
// balance zero, and no code.
func (o *stateObject) empty() bool {
	return o.nonce == 0 && o.balance.IsZero() && o.codeHash == types.EmptyCodeHash
}

// finalize folds dirty storage into committed storage, the way a real
// StateDB would at the end of a transaction. Call sites that need
// SSTORE's per-transaction "original value" semantics must snapshot
// committedStorage before calling this.
func (o *stateObject) finalize() {
	for k, v := range o.dirtyStorage {
		if v.IsZero() {
			delete(o.committedStorage, k)
		} else {
			o.committedStorage[k] = v
		}
	}
	o.dirtyStorage = make(map[types.Hash]uint256.Int)
}
