package state

import "testing"

func TestJournalRevertToUnknownSnapshot(t *testing.T) {
	s := NewMemoryStateDB()
	if err := s.RevertToSnapshot(42); err != ErrInvalidSnapshot {
		t.Fatalf("RevertToSnapshot(unknown) = %v, want ErrInvalidSnapshot", err)
	}
}

func TestJournalResetClearsEntries(t *testing.T) {
	j := newJournal()
	s := NewMemoryStateDB()
	j.append(refundChange{prev: 0})
	id := j.snapshot()
	j.reset()

	if len(j.entries) != 0 || len(j.snapshots) != 0 {
		t.Fatalf("reset should clear entries and snapshots")
	}
	if err := j.revertTo(id, s); err != ErrInvalidSnapshot {
		t.Fatalf("revertTo after reset = %v, want ErrInvalidSnapshot", err)
	}
}
