package state

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

func TestNewStateObjectIsEmpty(t *testing.T) {
	o := newStateObject()
	if !o.empty() {
		t.Fatalf("a freshly created state object should be empty (EIP-161 dead account)")
	}
}

func TestStateObjectNotEmptyAfterBalance(t *testing.T) {
	o := newStateObject()
	o.balance = *uint256.NewInt(1)
	if o.empty() {
		t.Fatalf("a funded account should not be empty")
	}
}

func TestStateObjectFinalizeDeletesZeroEntries(t *testing.T) {
	o := newStateObject()
	key := testSlot(1)
	o.committedStorage[key] = *uint256.NewInt(5)
	o.dirtyStorage[key] = uint256.Int{} // write zero over a previously nonzero slot

	o.finalize()
	if _, ok := o.committedStorage[key]; ok {
		t.Fatalf("finalize should delete slots written back to zero")
	}
}

func TestStateObjectGetStatePrefersDirty(t *testing.T) {
	o := newStateObject()
	key := testSlot(1)
	o.committedStorage[key] = *uint256.NewInt(1)
	o.dirtyStorage[key] = *uint256.NewInt(2)

	got := o.getState(key)
	if got.Cmp(uint256.NewInt(2)) != 0 {
		t.Fatalf("getState should prefer the dirty value, got %s", &got)
	}
	committed := o.getCommittedState(key)
	if committed.Cmp(uint256.NewInt(1)) != 0 {
		t.Fatalf("getCommittedState should ignore dirty writes, got %s", &committed)
	}
}

func TestStateObjectCodeHashDefaultsToEmpty(t *testing.T) {
	o := newStateObject()
	if o.codeHash != types.EmptyCodeHash {
		t.Fatalf("fresh state object codeHash = %s, want EmptyCodeHash", o.codeHash)
	}
}
