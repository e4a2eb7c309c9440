package state

import (
	"testing"

	"github.com/evmlabs/coreevm/core/types"
)

func TestForkBackendAccountMissEnqueuesRequest(t *testing.T) {
	b := NewForkBackend("latest", CacheLRU, 16)
	addr := testAddr(1)

	if _, ok := b.Account(addr); ok {
		t.Fatalf("expected a miss on first Account() call")
	}
	pending := b.PendingRequests()
	if len(pending) != 1 {
		t.Fatalf("pending requests = %d, want 1", len(pending))
	}
	if pending[0].Kind != RequestGetProof {
		t.Fatalf("request kind = %v, want RequestGetProof", pending[0].Kind)
	}

	// A second miss on the same address must not enqueue a duplicate.
	b.Account(addr)
	if len(b.PendingRequests()) != 1 {
		t.Fatalf("duplicate request enqueued for the same address")
	}
}

func TestForkBackendContinueResolvesAccount(t *testing.T) {
	b := NewForkBackend("latest", CacheLRU, 16)
	addr := testAddr(1)
	b.Account(addr)

	pending := b.PendingRequests()
	resp := []byte(`{"nonce":"0x5","balance":"0x64","codeHash":"0x` +
		"0000000000000000000000000000000000000000000000000000000000000000" +
		`","storageHash":"0x0"}`)
	if err := b.Continue(pending[0].ID, resp); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	acct, ok := b.Account(addr)
	if !ok {
		t.Fatalf("expected Account to resolve from cache after Continue")
	}
	if acct.Nonce != 5 {
		t.Fatalf("nonce = %d, want 5", acct.Nonce)
	}
	if acct.Balance.Uint64() != 0x64 {
		t.Fatalf("balance = %s, want 0x64", acct.Balance)
	}
	if len(b.PendingRequests()) != 0 {
		t.Fatalf("request should be cleared after Continue")
	}
}

func TestForkBackendContinueUnknownID(t *testing.T) {
	b := NewForkBackend("latest", CacheLRU, 16)
	if err := b.Continue(999, []byte(`{}`)); err != ErrForkRequestUnknown {
		t.Fatalf("Continue(unknown id) = %v, want ErrForkRequestUnknown", err)
	}
}

func TestForkBackendEmptyCodeHashShortCircuits(t *testing.T) {
	b := NewForkBackend("latest", CacheLRU, 16)
	addr := testAddr(1)

	code, ok := b.Code(addr, types.EmptyCodeHash)
	if !ok || code != nil {
		t.Fatalf("Code(EmptyCodeHash) = (%v, %v), want (nil, true)", code, ok)
	}
	if len(b.PendingRequests()) != 0 {
		t.Fatalf("empty code hash must not enqueue a request")
	}
}

func TestForkedMemoryStateDBResolvesThroughBackend(t *testing.T) {
	b := NewForkBackend("latest", CacheLRU, 16)
	s := NewForkedMemoryStateDB(b)
	addr := testAddr(1)

	if bal := s.GetBalance(addr); !bal.IsZero() {
		t.Fatalf("balance before resolution = %s, want 0", bal)
	}
	if !s.Unresolved() {
		t.Fatalf("expected Unresolved() after a cache-miss read")
	}

	pending := b.PendingRequests()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if err := b.Continue(pending[0].ID, []byte(`{"nonce":"0x0","balance":"0x2a","codeHash":"0x0","storageHash":"0x0"}`)); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	s.ClearUnresolved()
	if bal := s.GetBalance(addr); bal.Uint64() != 0x2a {
		t.Fatalf("balance after resolution = %s, want 0x2a", bal)
	}
}
