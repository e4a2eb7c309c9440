package state

import "testing"

func TestAccessListAddSlotAlsoWarmsAddress(t *testing.T) {
	al := newAccessList()
	addr := testAddr(1)
	slot := testSlot(1)

	al.addSlot(addr, slot)
	if !al.containsAddress(addr) {
		t.Fatalf("adding a slot should implicitly warm its address")
	}
	addrOk, slotOk := al.containsSlot(addr, slot)
	if !addrOk || !slotOk {
		t.Fatalf("containsSlot = (%v, %v), want (true, true)", addrOk, slotOk)
	}
}

func TestAccessListReset(t *testing.T) {
	al := newAccessList()
	addr := testAddr(1)
	al.addAddress(addr)
	al.reset()
	if al.containsAddress(addr) {
		t.Fatalf("reset should clear all warm addresses")
	}
}
