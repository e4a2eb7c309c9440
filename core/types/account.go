package types

import "github.com/holiman/uint256"

// EmptyCodeHash is the Keccak-256 hash of the empty byte string. It is
// computed once at init time via the crypto package's pure Keccak256
// function, not hardcoded, so the constant stays honest about its origin.
var EmptyCodeHash Hash

// Account is the persisted representation of an Ethereum account. Storage
// itself lives in the state store's per-account slot map, not here.
type Account struct {
	Nonce       uint64
	Balance     *uint256.Int
	CodeHash    Hash
	StorageRoot Hash

	// DelegatedAddress is the EIP-7702 delegation designator: when set, calls
	// to this account execute the code at DelegatedAddress instead.
	DelegatedAddress *Address
}

// NewAccount returns a freshly created, empty account (zero nonce, zero
// balance, empty code hash).
func NewAccount() Account {
	return Account{
		Balance:  new(uint256.Int),
		CodeHash: EmptyCodeHash,
	}
}

// IsEmpty reports whether the account satisfies EIP-161 "empty account"
// semantics: zero nonce, zero balance, no code.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) &&
		(a.CodeHash == EmptyCodeHash || a.CodeHash.IsZero())
}

// Copy returns a deep copy of the account.
func (a Account) Copy() Account {
	cp := a
	if a.Balance != nil {
		cp.Balance = new(uint256.Int).Set(a.Balance)
	} else {
		cp.Balance = new(uint256.Int)
	}
	if a.DelegatedAddress != nil {
		addr := *a.DelegatedAddress
		cp.DelegatedAddress = &addr
	}
	return cp
}
