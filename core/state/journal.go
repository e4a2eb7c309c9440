// journal.go implements the reversible change log that backs Snapshot and
// RevertToSnapshot. Every state mutation appends an entry describing how to
// undo itself; RevertTo replays entries from the tail back to a checkpoint.
package state

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// ErrInvalidSnapshot is returned when RevertToSnapshot is given an id that
// was never handed out by Snapshot, or has already been consumed.
var ErrInvalidSnapshot = errors.New("state: invalid or already-reverted snapshot id")

// journalEntry is a single undoable state change.
type journalEntry interface {
	revert(s *MemoryStateDB)
}

// journal is an append-only log of journalEntry values plus a stack of
// snapshot positions (indices into entries). Reverting to a snapshot undoes
// every entry appended after it, in reverse order, then truncates both
// slices so the snapshot id cannot be reused.
type journal struct {
	entries   []journalEntry
	snapshots []int
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(e journalEntry) {
	j.entries = append(j.entries, e)
}

// snapshot records the current journal position and returns an id that
// later identifies this exact point for RevertTo. Snapshot ids are one-shot:
// once reverted to, the id (and anything taken after it) is invalidated.
func (j *journal) snapshot() int {
	id := len(j.snapshots)
	j.snapshots = append(j.snapshots, len(j.entries))
	return id
}

// reset clears the journal entirely, for use between transactions once
// nothing further needs to be reverted.
func (j *journal) reset() {
	j.entries = j.entries[:0]
	j.snapshots = j.snapshots[:0]
}

func (j *journal) revertTo(id int, s *MemoryStateDB) error {
	if id < 0 || id >= len(j.snapshots) {
		return ErrInvalidSnapshot
	}
	mark := j.snapshots[id]
	for i := len(j.entries) - 1; i >= mark; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:mark]
	j.snapshots = j.snapshots[:id]
	return nil
}

// --- concrete journal entries ---

type createAccountChange struct {
	addr   types.Address
	prev   *stateObject // nil if the address had no prior object
	existed bool
}

func (e createAccountChange) revert(s *MemoryStateDB) {
	if e.existed {
		s.stateObjects[e.addr] = e.prev
	} else {
		delete(s.stateObjects, e.addr)
	}
}

type balanceChange struct {
	addr types.Address
	prev *uint256.Int
}

func (e balanceChange) revert(s *MemoryStateDB) {
	if obj := s.getStateObject(e.addr); obj != nil {
		obj.balance.Set(e.prev)
	}
}

type nonceChange struct {
	addr types.Address
	prev uint64
}

func (e nonceChange) revert(s *MemoryStateDB) {
	if obj := s.getStateObject(e.addr); obj != nil {
		obj.nonce = e.prev
	}
}

type codeChange struct {
	addr         types.Address
	prevCode     []byte
	prevCodeHash types.Hash
}

func (e codeChange) revert(s *MemoryStateDB) {
	if obj := s.getStateObject(e.addr); obj != nil {
		obj.code = e.prevCode
		obj.codeHash = e.prevCodeHash
	}
}

type delegationChange struct {
	addr    types.Address
	hadDel  bool
	prevDel types.Address
}

func (e delegationChange) revert(s *MemoryStateDB) {
	if obj := s.getStateObject(e.addr); obj != nil {
		if e.hadDel {
			obj.delegation, obj.hasDelegation = e.prevDel, true
		} else {
			obj.delegation, obj.hasDelegation = types.Address{}, false
		}
	}
}

type storageChange struct {
	addr types.Address
	key  types.Hash
	prev uint256.Int
}

func (e storageChange) revert(s *MemoryStateDB) {
	if obj := s.getStateObject(e.addr); obj != nil {
		obj.dirtyStorage[e.key] = e.prev
	}
}

type transientStorageChange struct {
	addr types.Address
	key  types.Hash
	prev uint256.Int
}

func (e transientStorageChange) revert(s *MemoryStateDB) {
	if m, ok := s.transientStorage[e.addr]; ok {
		m[e.key] = e.prev
	}
}

type selfDestructChange struct {
	addr           types.Address
	prevDestructed bool
}

func (e selfDestructChange) revert(s *MemoryStateDB) {
	if obj := s.getStateObject(e.addr); obj != nil {
		obj.selfDestructed = e.prevDestructed
	}
}

type refundChange struct {
	prev uint64
}

func (e refundChange) revert(s *MemoryStateDB) {
	s.refund = e.prev
}

type logChange struct {
	prevLen int
}

func (e logChange) revert(s *MemoryStateDB) {
	s.logs = s.logs[:e.prevLen]
}

type accessListAddrChange struct {
	addr types.Address
}

func (e accessListAddrChange) revert(s *MemoryStateDB) {
	s.accessList.removeAddress(e.addr)
}

type accessListSlotChange struct {
	addr types.Address
	slot types.Hash
}

func (e accessListSlotChange) revert(s *MemoryStateDB) {
	s.accessList.removeSlot(e.addr, e.slot)
}
