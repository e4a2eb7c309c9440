package state

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func testSlot(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}

func TestBalanceAddSub(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)

	s.AddBalance(addr, uint256.NewInt(100))
	if got := s.GetBalance(addr); got.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("balance = %s, want 100", got)
	}

	s.SubBalance(addr, uint256.NewInt(40))
	if got := s.GetBalance(addr); got.Cmp(uint256.NewInt(60)) != 0 {
		t.Fatalf("balance = %s, want 60", got)
	}
}

// TestSnapshotRevertRestoresBalance is spec's literal checkpoint/revert
// scenario: fund an account, snapshot, mutate, revert, and confirm the
// balance is exactly as it was at the snapshot.
func TestSnapshotRevertRestoresBalance(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)
	s.AddBalance(addr, uint256.NewInt(1000))

	snap := s.Snapshot()
	s.SubBalance(addr, uint256.NewInt(1000))
	if got := s.GetBalance(addr); !got.IsZero() {
		t.Fatalf("balance after sub = %s, want 0", got)
	}

	if err := s.RevertToSnapshot(snap); err != nil {
		t.Fatalf("RevertToSnapshot: %v", err)
	}
	if got := s.GetBalance(addr); got.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("balance after revert = %s, want 1000", got)
	}
}

// TestSnapshotIsOneShot checks that a snapshot id, once used to revert,
// cannot be reused: this one-shot invariant keeps a driver from double-
// reverting the same interpreter frame.
func TestSnapshotIsOneShot(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)
	s.AddBalance(addr, uint256.NewInt(10))

	snap := s.Snapshot()
	s.AddBalance(addr, uint256.NewInt(5))

	if err := s.RevertToSnapshot(snap); err != nil {
		t.Fatalf("first revert: %v", err)
	}
	if err := s.RevertToSnapshot(snap); err == nil {
		t.Fatalf("expected error reverting to an already-consumed snapshot")
	}
}

func TestNestedSnapshots(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)

	s.AddBalance(addr, uint256.NewInt(10))
	outer := s.Snapshot()
	s.AddBalance(addr, uint256.NewInt(20))
	inner := s.Snapshot()
	s.AddBalance(addr, uint256.NewInt(30))

	if err := s.RevertToSnapshot(inner); err != nil {
		t.Fatalf("revert inner: %v", err)
	}
	if got := s.GetBalance(addr); got.Cmp(uint256.NewInt(30)) != 0 {
		t.Fatalf("balance after inner revert = %s, want 30", got)
	}

	if err := s.RevertToSnapshot(outer); err != nil {
		t.Fatalf("revert outer: %v", err)
	}
	if got := s.GetBalance(addr); got.Cmp(uint256.NewInt(10)) != 0 {
		t.Fatalf("balance after outer revert = %s, want 10", got)
	}
}

func TestStorageSetGetAndCommit(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)
	key := uint256.NewInt(1)
	val := uint256.NewInt(42)

	s.SetState(addr, key, val)
	got := s.GetState(addr, key)
	if got.Cmp(val) != 0 {
		t.Fatalf("GetState = %s, want 42", &got)
	}

	// Not yet finalized: committed view still sees zero.
	committed := s.GetCommittedState(addr, key)
	if !committed.IsZero() {
		t.Fatalf("committed state = %s before Finalize, want 0", &committed)
	}

	s.Finalize()
	committed = s.GetCommittedState(addr, key)
	if committed.Cmp(val) != 0 {
		t.Fatalf("committed state after Finalize = %s, want 42", &committed)
	}
}

func TestSelfDestructRequiresCreationThisTx(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)

	// Pre-existing account: Selfdestruct6780 (EIP-6780) must not destroy it.
	s.AddBalance(addr, uint256.NewInt(5))
	s.Selfdestruct6780(addr)
	if s.HasSelfDestructed(addr) {
		t.Fatalf("pre-existing account should survive Selfdestruct6780")
	}

	// Freshly created this tx: it should be destroyed.
	created := testAddr(2)
	s.CreateAccount(created)
	s.Selfdestruct6780(created)
	if !s.HasSelfDestructed(created) {
		t.Fatalf("account created this tx should be destroyed by Selfdestruct6780")
	}
}

func TestAccessListWarmCold(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)
	slot := uint256.NewInt(7)

	if s.AddressInAccessList(addr) {
		t.Fatalf("address should start cold")
	}
	s.AddAddressToAccessList(addr)
	if !s.AddressInAccessList(addr) {
		t.Fatalf("address should be warm after AddAddressToAccessList")
	}

	addrOk, slotOk := s.SlotInAccessList(addr, slot)
	if !addrOk || slotOk {
		t.Fatalf("slot should start cold: addrOk=%v slotOk=%v", addrOk, slotOk)
	}
	s.AddSlotToAccessList(addr, slot)
	addrOk, slotOk = s.SlotInAccessList(addr, slot)
	if !addrOk || !slotOk {
		t.Fatalf("slot should be warm after AddSlotToAccessList")
	}
}

func TestRevertUndoesAccessListEntries(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)

	snap := s.Snapshot()
	s.AddAddressToAccessList(addr)
	if err := s.RevertToSnapshot(snap); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if s.AddressInAccessList(addr) {
		t.Fatalf("address should be cold again after revert")
	}
}

func TestCodeHashTracksSetCode(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)

	if got := s.GetCodeHash(addr); got != (types.Hash{}) {
		t.Fatalf("nonexistent account code hash = %s, want zero", got)
	}

	s.CreateAccount(addr)
	if got := s.GetCodeHash(addr); got != types.EmptyCodeHash {
		t.Fatalf("fresh account code hash = %s, want EmptyCodeHash", got)
	}

	code := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}
	s.SetCode(addr, code)
	if got := s.GetCode(addr); string(got) != string(code) {
		t.Fatalf("GetCode = %x, want %x", got, code)
	}
	if got := s.GetCodeHash(addr); got == types.EmptyCodeHash {
		t.Fatalf("code hash should change once code is set")
	}
}

func TestFinalizeDropsSelfDestructedAccounts(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)
	s.CreateAccount(addr)
	s.Selfdestruct6780(addr)

	s.Finalize()
	if s.Exist(addr) {
		t.Fatalf("self-destructed account should be gone after Finalize")
	}
}

// TestFinalizeDropsEmptiedCreatedAccounts covers EIP-161 without
// SELFDESTRUCT: an account created this tx (e.g. by a value-bearing CALL to
// a previously nonexistent address) that ends the tx dead — balance swept
// back out, no code, nonce zero — must not survive Finalize either.
func TestFinalizeDropsEmptiedCreatedAccounts(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)
	s.CreateAccount(addr)
	s.AddBalance(addr, uint256.NewInt(100))
	s.SubBalance(addr, uint256.NewInt(100))

	s.Finalize()
	if s.Exist(addr) {
		t.Fatalf("emptied account created this tx should be gone after Finalize")
	}
}

// TestFinalizeKeepsCreatedAccountsThatStayFunded ensures Finalize's new
// emptied-account sweep doesn't also sweep accounts that still hold state.
func TestFinalizeKeepsCreatedAccountsThatStayFunded(t *testing.T) {
	s := NewMemoryStateDB()
	addr := testAddr(1)
	s.CreateAccount(addr)
	s.AddBalance(addr, uint256.NewInt(1))

	s.Finalize()
	if !s.Exist(addr) {
		t.Fatalf("funded account created this tx should survive Finalize")
	}
}
