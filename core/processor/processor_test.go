package processor

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/state"
	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/core/vm"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func newTestBlock() *types.Block {
	return &types.Block{
		Number:   1,
		GasLimit: 30_000_000,
		Coinbase: testAddr(0xc0),
	}
}

func TestIntrinsicGasBaseTransfer(t *testing.T) {
	tx := &types.Transaction{Type: types.LegacyTxType}
	gas, err := intrinsicGas(tx, vm.Frontier.Rules())
	if err != nil {
		t.Fatalf("intrinsicGas: %v", err)
	}
	if gas != TxGas {
		t.Fatalf("intrinsic gas = %d, want %d", gas, TxGas)
	}
}

func TestIntrinsicGasCountsCalldataBytes(t *testing.T) {
	tx := &types.Transaction{Data: []byte{0x00, 0x01, 0x00, 0x02}}
	gas, err := intrinsicGas(tx, vm.Frontier.Rules())
	if err != nil {
		t.Fatalf("intrinsicGas: %v", err)
	}
	want := TxGas + 2*TxDataZeroGas + 2*TxDataNonZeroGas
	if gas != want {
		t.Fatalf("intrinsic gas = %d, want %d", gas, want)
	}
}

func TestIntrinsicGasContractCreation(t *testing.T) {
	tx := &types.Transaction{To: nil}
	gas, err := intrinsicGas(tx, vm.Frontier.Rules())
	if err != nil {
		t.Fatalf("intrinsicGas: %v", err)
	}
	if gas != TxGas+TxCreateGas {
		t.Fatalf("intrinsic gas = %d, want %d", gas, TxGas+TxCreateGas)
	}
}

func TestIntrinsicGasAccessList(t *testing.T) {
	tx := &types.Transaction{
		AccessList: []types.AccessTuple{
			{Address: testAddr(1), StorageKeys: []types.Hash{{}, {}}},
		},
	}
	gas, err := intrinsicGas(tx, vm.Berlin.Rules())
	if err != nil {
		t.Fatalf("intrinsicGas: %v", err)
	}
	want := TxGas + TxAccessListAddressGas + 2*TxAccessListStorageKeyGas
	if gas != want {
		t.Fatalf("intrinsic gas = %d, want %d", gas, want)
	}
}

func TestApplyRefundCapPreAndPostLondon(t *testing.T) {
	if got := applyRefundCap(100, 100, false); got != 50 {
		t.Fatalf("pre-London cap(100, gasUsed=100) = %d, want 50", got)
	}
	if got := applyRefundCap(100, 100, true); got != 20 {
		t.Fatalf("post-London cap(100, gasUsed=100) = %d, want 20", got)
	}
	if got := applyRefundCap(5, 100, true); got != 5 {
		t.Fatalf("refund under the cap should pass through unchanged, got %d", got)
	}
}

func TestValidateNonceTooLow(t *testing.T) {
	s := state.NewMemoryStateDB()
	sender := testAddr(1)
	s.SetNonce(sender, 5)
	s.AddBalance(sender, uint256.NewInt(1_000_000))

	tx := &types.Transaction{From: sender, Nonce: 3, Gas: 21000, GasPrice: uint256.NewInt(1)}
	if err := validate(tx, newTestBlock(), s); !errors.Is(err, ErrNonceTooLow) {
		t.Fatalf("validate = %v, want ErrNonceTooLow", err)
	}
}

func TestValidateInsufficientFunds(t *testing.T) {
	s := state.NewMemoryStateDB()
	sender := testAddr(1)
	s.AddBalance(sender, uint256.NewInt(100))

	tx := &types.Transaction{From: sender, Gas: 21000, GasPrice: uint256.NewInt(1), Value: uint256.NewInt(1_000_000)}
	if err := validate(tx, newTestBlock(), s); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("validate = %v, want ErrInsufficientFunds", err)
	}
}

// TestExecuteSimpleTransfer is spec's balance-conservation scenario: a
// plain value transfer between two accounts, with no code at the
// recipient, should debit exactly gas*price+value from the sender and
// credit value to the recipient (plus the coinbase fee).
func TestExecuteSimpleTransfer(t *testing.T) {
	s := state.NewMemoryStateDB()
	sender := testAddr(1)
	recipient := testAddr(2)
	s.AddBalance(sender, uint256.NewInt(1_000_000))

	tx := &types.Transaction{
		From:     sender,
		To:       &recipient,
		Nonce:    0,
		Gas:      21000,
		GasPrice: uint256.NewInt(1),
		Value:    uint256.NewInt(1000),
	}

	result, err := Execute(tx, newTestBlock(), s, vm.Frontier, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("transfer should succeed, err=%v", result.Err)
	}
	if result.GasUsed != TxGas {
		t.Fatalf("gas used = %d, want %d", result.GasUsed, TxGas)
	}
	if got := s.GetBalance(recipient); got.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("recipient balance = %s, want 1000", got)
	}
	if got := s.GetNonce(sender); got != 1 {
		t.Fatalf("sender nonce = %d, want 1", got)
	}
}

// TestExecuteRevertsOnCallFailure exercises the snapshot/revert path: a call
// into code that immediately REVERTs must leave the recipient's balance
// untouched even though value was attached, while gas is still consumed.
func TestExecuteRevertsOnCallFailure(t *testing.T) {
	s := state.NewMemoryStateDB()
	sender := testAddr(1)
	recipient := testAddr(2)
	s.AddBalance(sender, uint256.NewInt(1_000_000))
	// PUSH1 0 PUSH1 0 REVERT
	s.SetCode(recipient, []byte{0x60, 0x00, 0x60, 0x00, 0xfd})

	tx := &types.Transaction{
		From:     sender,
		To:       &recipient,
		Gas:      100000,
		GasPrice: uint256.NewInt(1),
		Value:    uint256.NewInt(1000),
	}

	result, err := Execute(tx, newTestBlock(), s, vm.Cancun, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected the call to fail (REVERT)")
	}
	if got := s.GetBalance(recipient); !got.IsZero() {
		t.Fatalf("reverted call must not move value: recipient balance = %s", got)
	}
}
