package types

import "github.com/holiman/uint256"

// Transaction type tags, matching the canonical EIP-2718 envelope values.
const (
	LegacyTxType     uint8 = 0x00
	AccessListTxType uint8 = 0x01
	DynamicFeeTxType uint8 = 0x02
	BlobTxType       uint8 = 0x03
	SetCodeTxType    uint8 = 0x04
)

// AccessTuple is a single EIP-2930 address/storage-key access-list entry.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// Authorization is an EIP-7702 authorization tuple: a signed statement that
// ChainID/Nonce/Address should become Address's code delegation. Signature
// recovery is out of scope (production-grade signing is a spec Non-goal);
// Authority is carried pre-recovered.
type Authorization struct {
	ChainID uint64
	Address Address
	Nonce   uint64
	Authority Address
}

// Transaction is the flat, already-validated representation the execution
// engine consumes: sender recovery, RLP decoding, and signature checks all
// happen upstream (outside this module's scope per spec's Non-goals), so
// there is no signature payload here — just the fields execute() needs.
type Transaction struct {
	Type uint8

	From     Address
	To       *Address // nil means contract creation
	Nonce    uint64
	Gas      uint64
	Value    *uint256.Int
	Data     []byte

	GasPrice  *uint256.Int // legacy / access-list txs
	GasTipCap *uint256.Int // EIP-1559+
	GasFeeCap *uint256.Int // EIP-1559+

	AccessList []AccessTuple

	BlobHashes    []Hash
	BlobGasFeeCap *uint256.Int

	AuthorizationList []Authorization
}

// IsContractCreation reports whether the transaction creates a contract.
func (tx *Transaction) IsContractCreation() bool {
	return tx.To == nil
}

// EffectiveGasPrice computes the actual per-gas price paid given the
// block's base fee, per EIP-1559: legacy/access-list txs pay GasPrice
// flat; dynamic-fee txs pay min(GasFeeCap, BaseFee + GasTipCap).
func (tx *Transaction) EffectiveGasPrice(baseFee *uint256.Int) *uint256.Int {
	if tx.Type == LegacyTxType || tx.Type == AccessListTxType || baseFee == nil {
		if tx.GasPrice != nil {
			return new(uint256.Int).Set(tx.GasPrice)
		}
		return new(uint256.Int)
	}
	tip := tx.GasTipCap
	if tip == nil {
		tip = new(uint256.Int)
	}
	feeCap := tx.GasFeeCap
	if feeCap == nil {
		feeCap = new(uint256.Int)
	}
	effective := new(uint256.Int).Add(baseFee, tip)
	if effective.Cmp(feeCap) > 0 {
		return new(uint256.Int).Set(feeCap)
	}
	return effective
}
