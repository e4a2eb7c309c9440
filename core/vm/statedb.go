package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// StateDB is the checkpointed read/write surface the interpreter consumes.
// It is declared in core/vm (rather than imported from core/state) so the
// two packages don't form an import cycle; core/state's concrete
// implementation satisfies this interface structurally.
type StateDB interface {
	CreateAccount(addr types.Address)
	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	GetBalance(addr types.Address) *uint256.Int
	AddBalance(addr types.Address, amount *uint256.Int)
	SubBalance(addr types.Address, amount *uint256.Int)

	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)

	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int

	// GetDelegation returns the EIP-7702 delegation target for addr, or
	// (zero Address, false) if none is set.
	GetDelegation(addr types.Address) (types.Address, bool)
	SetDelegation(addr types.Address, target types.Address)

	GetState(addr types.Address, key *uint256.Int) uint256.Int
	SetState(addr types.Address, key, value *uint256.Int)
	GetCommittedState(addr types.Address, key *uint256.Int) uint256.Int

	GetTransientState(addr types.Address, key *uint256.Int) uint256.Int
	SetTransientState(addr types.Address, key, value *uint256.Int)

	SelfDestruct(addr types.Address)
	Selfdestruct6780(addr types.Address) // EIP-6780: only if created this tx
	HasSelfDestructed(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int) error

	AddLog(log *types.Log)

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	AddAddressToAccessList(addr types.Address)
	AddSlotToAccessList(addr types.Address, slot *uint256.Int)
	AddressInAccessList(addr types.Address) bool
	SlotInAccessList(addr types.Address, slot *uint256.Int) (addressOk, slotOk bool)
}
