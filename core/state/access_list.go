// access_list.go tracks EIP-2929 warm/cold access for addresses and storage
// slots within one transaction's lifetime. Gas pricing for cold vs. warm
// access lives in core/vm/gas_table.go; this type only answers "have we
// seen this before", backed by mapset.Set for membership and a per-address
// slot set for storage keys.
package state

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/evmlabs/coreevm/core/types"
)

// accessList is the per-transaction warm-address/warm-slot set.
type accessList struct {
	addresses mapset.Set[types.Address]
	slots     map[types.Address]mapset.Set[types.Hash]
}

func newAccessList() *accessList {
	return &accessList{
		addresses: mapset.NewThreadUnsafeSet[types.Address](),
		slots:     make(map[types.Address]mapset.Set[types.Hash]),
	}
}

func (al *accessList) addAddress(addr types.Address) {
	al.addresses.Add(addr)
}

func (al *accessList) containsAddress(addr types.Address) bool {
	return al.addresses.Contains(addr)
}

func (al *accessList) addSlot(addr types.Address, slot types.Hash) {
	al.addresses.Add(addr)
	set, ok := al.slots[addr]
	if !ok {
		set = mapset.NewThreadUnsafeSet[types.Hash]()
		al.slots[addr] = set
	}
	set.Add(slot)
}

func (al *accessList) containsSlot(addr types.Address, slot types.Hash) (addrOk, slotOk bool) {
	addrOk = al.addresses.Contains(addr)
	if set, ok := al.slots[addr]; ok {
		slotOk = set.Contains(slot)
	}
	return
}

// removeAddress undoes addAddress, used only by journal revert. It leaves
// any slot set for addr in place — an address that is cold again but still
// has a (now orphaned, harmless) slot set is never observed because slots
// are always reverted before or alongside their owning address entry.
func (al *accessList) removeAddress(addr types.Address) {
	al.addresses.Remove(addr)
}

func (al *accessList) removeSlot(addr types.Address, slot types.Hash) {
	if set, ok := al.slots[addr]; ok {
		set.Remove(slot)
	}
}

// reset clears the access list for a new transaction.
func (al *accessList) reset() {
	al.addresses.Clear()
	al.slots = make(map[types.Address]mapset.Set[types.Hash])
}
