package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// ForkRetryBudget is the number of times a processor should retry a
// transaction after resolving pending fork requests before giving up (spec:
// "retry budget (>=10)").
const ForkRetryBudget = 10

// ErrForkRequestUnknown is returned by Continue when given an id that was
// never issued, or has already been answered.
var ErrForkRequestUnknown = errors.New("state: unknown or already-answered fork request id")

// ForkRequestKind distinguishes the two remote methods a fork backend
// needs.
type ForkRequestKind int

const (
	RequestGetProof ForkRequestKind = iota
	RequestGetCode
)

func (k ForkRequestKind) String() string {
	if k == RequestGetCode {
		return "eth_getCode"
	}
	return "eth_getProof"
}

// ForkRequest is a remote read the backend could not answer from cache. The
// owning driver executes it out-of-band against its own transport and
// reports the result back via ForkBackend.Continue.
type ForkRequest struct {
	ID       uint64
	Kind     ForkRequestKind
	Address  types.Address
	Slots    []types.Hash // populated only for RequestGetProof
	CodeHash types.Hash   // populated only for RequestGetCode
	BlockTag string
}

// getProofResponse mirrors eth_getProof's wire shape: hex-encoded integers,
// one storage proof entry per requested slot. Proof nodes themselves are
// accepted but not verified — this engine trusts its configured transport.
type getProofResponse struct {
	Nonce        string             `json:"nonce"`
	Balance      string             `json:"balance"`
	CodeHash     string             `json:"codeHash"`
	StorageHash  string             `json:"storageHash"`
	StorageProof []storageProofItem `json:"storageProof"`
}

type storageProofItem struct {
	Key   string   `json:"key"`
	Value string   `json:"value"`
	Proof []string `json:"proof"`
}

// getCodeResponse mirrors eth_getCode's wire shape: a single hex byte string.
type getCodeResponse struct {
	Code string `json:"code"`
}

type storageCacheKey struct {
	addr types.Address
	key  types.Hash
}

// ForkBackend lazily resolves accounts, code, and storage a MemoryStateDB
// has not seen locally. It never calls the network directly (spec's "fork
// request pump"): a miss enqueues a ForkRequest and the read reports
// unresolved; the owning driver drains PendingRequests(), executes them
// against whatever transport it has, and feeds results back through
// Continue. MemoryStateDB.getStateObject then retries, now hitting cache.
type ForkBackend struct {
	blockTag string
	accounts *forkCache[types.Address, types.Account]
	code     *forkCache[types.Hash, []byte]
	storage  *forkCache[storageCacheKey, uint256.Int]

	pending map[uint64]ForkRequest
	nextID  uint64
}

// NewForkBackend returns a fork backend at blockTag, caching each of
// accounts/code/storage under policy with the given per-category capacity
// (ignored when policy is CacheUnbounded).
func NewForkBackend(blockTag string, policy CachePolicy, capacity int) *ForkBackend {
	return &ForkBackend{
		blockTag: blockTag,
		accounts: newForkCache[types.Address, types.Account](policy, capacity),
		code:     newForkCache[types.Hash, []byte](policy, capacity),
		storage:  newForkCache[storageCacheKey, uint256.Int](policy, capacity),
		pending:  make(map[uint64]ForkRequest),
	}
}

// Account resolves addr from cache. If absent, it enqueues a GetProof
// request (with no storage slots) and returns (zero, false).
func (b *ForkBackend) Account(addr types.Address) (types.Account, bool) {
	if acct, ok := b.accounts.get(addr); ok {
		return acct, true
	}
	b.enqueueProof(addr, nil)
	return types.Account{}, false
}

// Storage resolves (addr, key) from cache. If absent, it enqueues a
// GetProof request scoped to that single slot and returns (zero, false).
func (b *ForkBackend) Storage(addr types.Address, key types.Hash) (uint256.Int, bool) {
	if v, ok := b.storage.get(storageCacheKey{addr, key}); ok {
		return v, true
	}
	b.enqueueProof(addr, []types.Hash{key})
	return uint256.Int{}, false
}

// Code resolves codeHash from cache. If absent, it enqueues a GetCode
// request and returns (nil, false).
func (b *ForkBackend) Code(addr types.Address, codeHash types.Hash) ([]byte, bool) {
	if code, ok := b.code.get(codeHash); ok {
		return code, true
	}
	if codeHash == types.EmptyCodeHash {
		return nil, true
	}
	b.enqueueCode(addr, codeHash)
	return nil, false
}

func (b *ForkBackend) enqueueProof(addr types.Address, slots []types.Hash) {
	for _, req := range b.pending {
		if req.Kind == RequestGetProof && req.Address == addr && sameSlotSet(req.Slots, slots) {
			return // already outstanding
		}
	}
	id := b.nextID
	b.nextID++
	b.pending[id] = ForkRequest{ID: id, Kind: RequestGetProof, Address: addr, Slots: slots, BlockTag: b.blockTag}
}

func (b *ForkBackend) enqueueCode(addr types.Address, codeHash types.Hash) {
	for _, req := range b.pending {
		if req.Kind == RequestGetCode && req.CodeHash == codeHash {
			return
		}
	}
	id := b.nextID
	b.nextID++
	b.pending[id] = ForkRequest{ID: id, Kind: RequestGetCode, Address: addr, CodeHash: codeHash, BlockTag: b.blockTag}
}

func sameSlotSet(a, b []types.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PendingRequests returns every outstanding fork request, for the owning
// driver to execute out-of-band.
func (b *ForkBackend) PendingRequests() []ForkRequest {
	out := make([]ForkRequest, 0, len(b.pending))
	for _, req := range b.pending {
		out = append(out, req)
	}
	return out
}

// Continue feeds the JSON response to request id back into the backend,
// populating the relevant cache and clearing the pending entry.
func (b *ForkBackend) Continue(id uint64, responseJSON []byte) error {
	req, ok := b.pending[id]
	if !ok {
		return ErrForkRequestUnknown
	}
	delete(b.pending, id)

	switch req.Kind {
	case RequestGetProof:
		var resp getProofResponse
		if err := json.Unmarshal(responseJSON, &resp); err != nil {
			return fmt.Errorf("state: decoding eth_getProof response: %w", err)
		}
		acct := types.NewAccount()
		acct.Nonce = hexToUint64(resp.Nonce)
		acct.Balance = hexToWord(resp.Balance)
		acct.CodeHash = types.HexToHash(resp.CodeHash)
		acct.StorageRoot = types.HexToHash(resp.StorageHash)
		b.accounts.put(req.Address, acct)
		for _, item := range resp.StorageProof {
			key := types.HexToHash(item.Key)
			b.storage.put(storageCacheKey{req.Address, key}, *hexToWord(item.Value))
		}
	case RequestGetCode:
		var resp getCodeResponse
		if err := json.Unmarshal(responseJSON, &resp); err != nil {
			return fmt.Errorf("state: decoding eth_getCode response: %w", err)
		}
		b.code.put(req.CodeHash, hexToBytes(resp.Code))
	}
	return nil
}

func hexToBytes(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func hexToUint64(s string) uint64 {
	return hexToWord(s).Uint64()
}

func hexToWord(s string) *uint256.Int {
	w := new(uint256.Int)
	w.SetBytes(hexToBytes(s))
	return w
}
