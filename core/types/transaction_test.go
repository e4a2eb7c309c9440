package types

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestIsContractCreation(t *testing.T) {
	create := &Transaction{To: nil}
	if !create.IsContractCreation() {
		t.Fatalf("nil To should be a contract creation")
	}

	addr := HexToAddress("0x00000000000000000000000000000000000001")
	call := &Transaction{To: &addr}
	if call.IsContractCreation() {
		t.Fatalf("non-nil To should not be a contract creation")
	}
}

func TestEffectiveGasPriceLegacy(t *testing.T) {
	tx := &Transaction{Type: LegacyTxType, GasPrice: uint256.NewInt(100)}
	baseFee := uint256.NewInt(10)
	if got := tx.EffectiveGasPrice(baseFee); got.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("legacy effective gas price = %s, want 100 (flat GasPrice)", got)
	}
}

func TestEffectiveGasPriceDynamicFeeCappedByFeeCap(t *testing.T) {
	tx := &Transaction{
		Type:      DynamicFeeTxType,
		GasTipCap: uint256.NewInt(50),
		GasFeeCap: uint256.NewInt(60),
	}
	baseFee := uint256.NewInt(40) // tip+base = 90 > feeCap, so feeCap wins
	if got := tx.EffectiveGasPrice(baseFee); got.Cmp(uint256.NewInt(60)) != 0 {
		t.Fatalf("effective gas price = %s, want 60 (fee cap)", got)
	}
}

func TestEffectiveGasPriceDynamicFeeUnderCap(t *testing.T) {
	tx := &Transaction{
		Type:      DynamicFeeTxType,
		GasTipCap: uint256.NewInt(2),
		GasFeeCap: uint256.NewInt(100),
	}
	baseFee := uint256.NewInt(10)
	if got := tx.EffectiveGasPrice(baseFee); got.Cmp(uint256.NewInt(12)) != 0 {
		t.Fatalf("effective gas price = %s, want 12 (base + tip)", got)
	}
}
