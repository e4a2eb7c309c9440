// Package state provides an in-memory, journaled implementation of
// core/vm.StateDB, plus an optional lazy fork backend that resolves missing
// accounts from a remote source on first access.
package state

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/crypto"
)

// MemoryStateDB is the in-memory, checkpointed world state the interpreter
// reads and writes through the core/vm.StateDB interface. All mutations go
// through the journal so Snapshot/RevertToSnapshot can undo them exactly.
type MemoryStateDB struct {
	stateObjects map[types.Address]*stateObject
	journal      *journal
	logs         []*types.Log
	refund       uint64

	accessList       *accessList
	transientStorage map[types.Address]map[types.Hash]uint256.Int

	// backend resolves accounts/code/storage this StateDB has never seen.
	// Nil for a self-contained (non-forking) state.
	backend *ForkBackend

	// unresolved is set when a read falls through to backend and comes back
	// Pending (ok=false). The transaction driver checks this after a call
	// returns and, if set, treats the whole execution as StateUnavailable
	// per spec: the read is never silently treated as "account doesn't
	// exist" at the driver level, only internally while execution is still
	// running (it would otherwise be indistinguishable from a real miss).
	unresolved bool
}

// NewMemoryStateDB returns an empty, self-contained state database.
func NewMemoryStateDB() *MemoryStateDB {
	return &MemoryStateDB{
		stateObjects:     make(map[types.Address]*stateObject),
		journal:          newJournal(),
		accessList:       newAccessList(),
		transientStorage: make(map[types.Address]map[types.Hash]uint256.Int),
	}
}

// NewForkedMemoryStateDB returns a state database that lazily resolves
// accounts, code, and storage not yet present locally from backend.
func NewForkedMemoryStateDB(backend *ForkBackend) *MemoryStateDB {
	db := NewMemoryStateDB()
	db.backend = backend
	return db
}

func (s *MemoryStateDB) getStateObject(addr types.Address) *stateObject {
	if obj, ok := s.stateObjects[addr]; ok {
		return obj
	}
	if s.backend == nil {
		return nil
	}
	acct, ok := s.backend.Account(addr)
	if !ok {
		s.unresolved = true
		return nil
	}
	obj := newStateObject()
	obj.nonce = acct.Nonce
	if acct.Balance != nil {
		obj.balance.Set(acct.Balance)
	}
	obj.codeHash = acct.CodeHash
	if acct.DelegatedAddress != nil {
		obj.hasDelegation, obj.delegation = true, *acct.DelegatedAddress
	}
	s.stateObjects[addr] = obj
	return obj
}

func (s *MemoryStateDB) getOrNewStateObject(addr types.Address) *stateObject {
	if obj := s.getStateObject(addr); obj != nil {
		return obj
	}
	obj := newStateObject()
	s.stateObjects[addr] = obj
	return obj
}

// --- account operations ---

func (s *MemoryStateDB) CreateAccount(addr types.Address) {
	prev, existed := s.stateObjects[addr]
	s.journal.append(createAccountChange{addr: addr, prev: prev, existed: existed})
	obj := newStateObject()
	if prev != nil {
		// CREATE onto a pre-existing (e.g. pre-funded) address keeps the
		// balance but resets nonce/code/storage.
		obj.balance.Set(&prev.balance)
	}
	obj.createdThisTx = true
	s.stateObjects[addr] = obj
}

func (s *MemoryStateDB) Exist(addr types.Address) bool {
	return s.getStateObject(addr) != nil
}

func (s *MemoryStateDB) Empty(addr types.Address) bool {
	obj := s.getStateObject(addr)
	return obj == nil || obj.empty()
}

func (s *MemoryStateDB) GetBalance(addr types.Address) *uint256.Int {
	if obj := s.getStateObject(addr); obj != nil {
		return new(uint256.Int).Set(&obj.balance)
	}
	return new(uint256.Int)
}

func (s *MemoryStateDB) AddBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: new(uint256.Int).Set(&obj.balance)})
	obj.balance.Add(&obj.balance, amount)
}

func (s *MemoryStateDB) SubBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: new(uint256.Int).Set(&obj.balance)})
	obj.balance.Sub(&obj.balance, amount)
}

func (s *MemoryStateDB) GetNonce(addr types.Address) uint64 {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.nonce
	}
	return 0
}

func (s *MemoryStateDB) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.nonce})
	obj.nonce = nonce
}

func (s *MemoryStateDB) GetCode(addr types.Address) []byte {
	obj := s.getStateObject(addr)
	if obj == nil {
		return nil
	}
	if obj.code == nil && obj.codeHash != types.EmptyCodeHash && s.backend != nil {
		if code, ok := s.backend.Code(addr, obj.codeHash); ok {
			obj.code = code
		} else {
			s.unresolved = true
		}
	}
	return obj.code
}

func (s *MemoryStateDB) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(codeChange{addr: addr, prevCode: obj.code, prevCodeHash: obj.codeHash})
	obj.code = code
	if len(code) == 0 {
		obj.codeHash = types.EmptyCodeHash
	} else {
		obj.codeHash = crypto.Keccak256Hash(code)
	}
}

func (s *MemoryStateDB) GetCodeHash(addr types.Address) types.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.codeHash
	}
	return types.Hash{}
}

func (s *MemoryStateDB) GetCodeSize(addr types.Address) int {
	return len(s.GetCode(addr))
}

func (s *MemoryStateDB) GetDelegation(addr types.Address) (types.Address, bool) {
	if obj := s.getStateObject(addr); obj != nil && obj.hasDelegation {
		return obj.delegation, true
	}
	return types.Address{}, false
}

func (s *MemoryStateDB) SetDelegation(addr types.Address, target types.Address) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(delegationChange{addr: addr, hadDel: obj.hasDelegation, prevDel: obj.delegation})
	obj.hasDelegation, obj.delegation = true, target
}

// --- storage ---

func (s *MemoryStateDB) GetState(addr types.Address, key *uint256.Int) uint256.Int {
	obj := s.getStateObject(addr)
	if obj == nil {
		return uint256.Int{}
	}
	k := types.Hash(key.Bytes32())
	if v, ok := obj.dirtyStorage[k]; ok {
		return v
	}
	if v, ok := obj.committedStorage[k]; ok {
		return v
	}
	if s.backend != nil {
		if v, ok := s.backend.Storage(addr, k); ok {
			obj.committedStorage[k] = v
			return v
		}
		s.unresolved = true
	}
	return uint256.Int{}
}

func (s *MemoryStateDB) SetState(addr types.Address, key, value *uint256.Int) {
	obj := s.getOrNewStateObject(addr)
	k := types.Hash(key.Bytes32())
	s.journal.append(storageChange{addr: addr, key: k, prev: obj.getState(k)})
	obj.dirtyStorage[k] = *value
}

func (s *MemoryStateDB) GetCommittedState(addr types.Address, key *uint256.Int) uint256.Int {
	obj := s.getStateObject(addr)
	if obj == nil {
		return uint256.Int{}
	}
	k := types.Hash(key.Bytes32())
	if v, ok := obj.committedStorage[k]; ok {
		return v
	}
	if s.backend != nil {
		if v, ok := s.backend.Storage(addr, k); ok {
			obj.committedStorage[k] = v
			return v
		}
		s.unresolved = true
	}
	return uint256.Int{}
}

// --- transient storage (EIP-1153) ---

func (s *MemoryStateDB) GetTransientState(addr types.Address, key *uint256.Int) uint256.Int {
	m, ok := s.transientStorage[addr]
	if !ok {
		return uint256.Int{}
	}
	return m[types.Hash(key.Bytes32())]
}

func (s *MemoryStateDB) SetTransientState(addr types.Address, key, value *uint256.Int) {
	k := types.Hash(key.Bytes32())
	m, ok := s.transientStorage[addr]
	if !ok {
		m = make(map[types.Hash]uint256.Int)
		s.transientStorage[addr] = m
	}
	m[k] = *value
}

// --- self-destruct ---

func (s *MemoryStateDB) SelfDestruct(addr types.Address) {
	obj := s.getStateObject(addr)
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{addr: addr, prevDestructed: obj.selfDestructed})
	obj.selfDestructed = true
}

// Selfdestruct6780 implements EIP-6780: SELFDESTRUCT only fully destroys the
// account (clears balance, marks destructed) when it was created earlier in
// this same transaction; otherwise it behaves like a balance-zeroing no-op
// on destruction bookkeeping (the balance transfer to the beneficiary has
// already happened in the opcode handler).
func (s *MemoryStateDB) Selfdestruct6780(addr types.Address) {
	obj := s.getStateObject(addr)
	if obj == nil {
		return
	}
	if !obj.createdThisTx {
		return
	}
	s.SelfDestruct(addr)
}

func (s *MemoryStateDB) HasSelfDestructed(addr types.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// --- snapshot / revert ---

func (s *MemoryStateDB) Snapshot() int {
	return s.journal.snapshot()
}

func (s *MemoryStateDB) RevertToSnapshot(id int) error {
	return s.journal.revertTo(id, s)
}

// Unresolved reports whether any read this transaction fell through to the
// fork backend and came back Pending. The transaction driver consults this
// after Call/Create returns to decide whether to surface StateUnavailable.
func (s *MemoryStateDB) Unresolved() bool { return s.unresolved }

// ClearUnresolved resets the pending-read flag, called by the driver once it
// has queued a retry (after feeding fork responses back via Backend().Continue).
func (s *MemoryStateDB) ClearUnresolved() { s.unresolved = false }

// Backend returns the fork backend this state resolves misses through, or
// nil for a self-contained state.
func (s *MemoryStateDB) Backend() *ForkBackend { return s.backend }

// --- logs ---

func (s *MemoryStateDB) AddLog(l *types.Log) {
	s.journal.append(logChange{prevLen: len(s.logs)})
	s.logs = append(s.logs, l)
}

// Logs returns all logs emitted so far in the current transaction.
func (s *MemoryStateDB) Logs() []*types.Log {
	return s.logs
}

// --- refund counter ---

func (s *MemoryStateDB) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *MemoryStateDB) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		panic("state: refund counter below zero")
	}
	s.refund -= gas
}

func (s *MemoryStateDB) GetRefund() uint64 {
	return s.refund
}

// --- access list (EIP-2929) ---

func (s *MemoryStateDB) AddAddressToAccessList(addr types.Address) {
	if s.accessList.containsAddress(addr) {
		return
	}
	s.journal.append(accessListAddrChange{addr: addr})
	s.accessList.addAddress(addr)
}

func (s *MemoryStateDB) AddSlotToAccessList(addr types.Address, slot *uint256.Int) {
	k := types.Hash(slot.Bytes32())
	addrOk, slotOk := s.accessList.containsSlot(addr, k)
	if !addrOk {
		s.journal.append(accessListAddrChange{addr: addr})
	}
	if !slotOk {
		s.journal.append(accessListSlotChange{addr: addr, slot: k})
	}
	s.accessList.addSlot(addr, k)
}

func (s *MemoryStateDB) AddressInAccessList(addr types.Address) bool {
	return s.accessList.containsAddress(addr)
}

func (s *MemoryStateDB) SlotInAccessList(addr types.Address, slot *uint256.Int) (addressOk, slotOk bool) {
	return s.accessList.containsSlot(addr, types.Hash(slot.Bytes32()))
}

// --- transaction lifecycle helpers, not part of vm.StateDB ---

// Finalize folds every account's dirty storage into committed storage and
// clears the per-transaction access list and transient storage, the way a
// processor calls it between transactions in the same block.
func (s *MemoryStateDB) Finalize() {
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			delete(s.stateObjects, addr)
			continue
		}
		obj.finalize()
		if obj.createdThisTx && obj.empty() {
			// EIP-161: an account touched (created) this tx and left dead
			// (zero nonce/balance, no code) does not survive the commit,
			// whether or not it ever ran SELFDESTRUCT.
			delete(s.stateObjects, addr)
			continue
		}
		obj.createdThisTx = false
	}
	s.accessList.reset()
	s.transientStorage = make(map[types.Address]map[types.Hash]uint256.Int)
	s.journal.reset()
	s.logs = nil
}
