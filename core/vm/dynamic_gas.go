// Dynamic gas calculations for opcodes whose cost depends on stack or
// memory contents: EIP-150 (63/64ths rule), EIP-2200/3529 (SSTORE),
// EIP-3860 (initcode), LOG, KECCAK256, copy, and SELFDESTRUCT pricing.
package vm

import (
	"errors"
	"math"

	"github.com/evmlabs/coreevm/core/types"
)

var (
	ErrGasOverflow       = errors.New("dynamic gas: overflow")
	ErrInvalidTopicCount = errors.New("dynamic gas: invalid topic count (0-4)")
	ErrInitCodeTooLarge  = errors.New("dynamic gas: initcode exceeds max size")
)

// GasPricingRules holds the gas pricing parameters that vary by hardfork.
// Every ForkRules carries one; SelectJumpTable picks the values for the
// active fork.
type GasPricingRules struct {
	SstoreSetGas    uint64
	SstoreResetGas  uint64
	WarmReadGas     uint64
	ColdSloadGas    uint64
	SstoreClearsRef uint64

	ExpByteCost uint64 // per significant byte of the exponent

	LogBaseCost  uint64
	LogTopicCost uint64
	LogDataCost  uint64

	Keccak256BaseCost uint64
	Keccak256WordCost uint64

	CopyCostPerWord uint64

	CreateBaseCost      uint64
	InitCodeWordCost    uint64 // EIP-3860, 0 before Shanghai
	Create2HashWordCost uint64
	MaxInitCodeSize     uint64 // EIP-3860, 0 disables the check

	SelfDestructBaseCost     uint64
	SelfDestructNewAcctCost  uint64
	SelfDestructColdAcctCost uint64 // 0 pre-Berlin (flat cost instead)

	CallGasFraction uint64 // EIP-150 denominator, always 64 post-Tangerine-Whistle

	// EIP2929 distinguishes Berlin-and-later (EIP-2929 warm/cold
	// access lists) from earlier forks (flat costs, no access list).
	EIP2929 bool
	// EIP3529 selects the reduced refund cap and clear-slot refund amount.
	EIP3529 bool
}

// DefaultPricingRules returns post-Cancun gas pricing.
func DefaultPricingRules() GasPricingRules {
	return GasPricingRules{
		SstoreSetGas:    GasSstoreSet,
		SstoreResetGas:  GasSstoreReset,
		WarmReadGas:     GasSloadWarm,
		ColdSloadGas:    GasSloadCold,
		SstoreClearsRef: 4800,

		ExpByteCost: 50,

		LogBaseCost:  GasLog,
		LogTopicCost: GasLogTopic,
		LogDataCost:  GasLogData,

		Keccak256BaseCost: GasKeccak256,
		Keccak256WordCost: GasKeccak256Word,

		CopyCostPerWord: GasCopy,

		CreateBaseCost:      GasCreate,
		InitCodeWordCost:    2,
		Create2HashWordCost: GasKeccak256Word,
		MaxInitCodeSize:     MaxInitCodeSize,

		SelfDestructBaseCost:     GasSelfdestruct,
		SelfDestructNewAcctCost:  25000,
		SelfDestructColdAcctCost: GasCallCold,

		CallGasFraction: CallStipendDivisor,
		EIP2929:         true,
		EIP3529:         true,
	}
}

// DynamicGasCalculator computes dynamic gas costs from already-resolved
// inputs. It has no StateDB: the caller looks up whether a slot/address is
// warm and passes a cold flag, and CalcSStoreGas/CalcSelfDestructGas add
// the cold surcharge themselves.
type DynamicGasCalculator struct {
	Rules GasPricingRules
}

func NewDynamicGasCalculator(rules GasPricingRules) *DynamicGasCalculator {
	return &DynamicGasCalculator{Rules: rules}
}

// CalcCallGas applies the EIP-150 63/64ths rule: the caller retains 1/64th
// of its remaining gas, and at most the rest may be forwarded. With a
// CallGasFraction of 1 (pre-EIP-150) nothing is retained.
func (c *DynamicGasCalculator) CalcCallGas(availableGas, requestedGas uint64) uint64 {
	maxGas := availableGas
	if c.Rules.CallGasFraction > 1 {
		maxGas -= availableGas / c.Rules.CallGasFraction
	}
	if requestedGas > maxGas {
		return maxGas
	}
	return requestedGas
}

// CalcExpGas computes EXP's dynamic cost: ExpByteCost per significant byte
// of the exponent.
func (c *DynamicGasCalculator) CalcExpGas(exponentLen uint64) (uint64, error) {
	byteCost := dgSafeMul(c.Rules.ExpByteCost, exponentLen)
	total := dgSafeAdd(0, byteCost)
	if total == math.MaxUint64 && exponentLen > 0 {
		return 0, ErrGasOverflow
	}
	return total, nil
}

// CalcSStoreGas computes the gas cost and refund delta for an SSTORE per
// EIP-2200 (Istanbul) / EIP-3529 (London). coldAccess must already reflect
// whether the slot was warm before this access (the caller marks it warm
// afterward). Returns (gasCost, refundDelta); refundDelta may be negative
// when the store undoes an earlier refund-earning store in the same
// transaction.
func (c *DynamicGasCalculator) CalcSStoreGas(current, original, newVal *types.Word, coldAccess bool) (uint64, int64) {
	var gas uint64
	if coldAccess {
		gas = c.Rules.ColdSloadGas
	}

	if current.Eq(newVal) {
		return gas + c.Rules.WarmReadGas, 0
	}

	var refund int64
	if original.Eq(current) {
		if original.IsZero() {
			return gas + c.Rules.SstoreSetGas, 0
		}
		gas += c.Rules.SstoreResetGas
		if newVal.IsZero() {
			refund = int64(c.Rules.SstoreClearsRef)
		}
		return gas, refund
	}

	// Dirty slot: this tx already wrote `current` over `original`.
	gas += c.Rules.WarmReadGas
	if !original.IsZero() {
		if current.IsZero() && !newVal.IsZero() {
			refund -= int64(c.Rules.SstoreClearsRef)
		} else if !current.IsZero() && newVal.IsZero() {
			refund += int64(c.Rules.SstoreClearsRef)
		}
	}
	if original.Eq(newVal) {
		if original.IsZero() {
			refund += int64(c.Rules.SstoreSetGas) - int64(c.Rules.WarmReadGas)
		} else {
			refund += int64(c.Rules.SstoreResetGas) - int64(c.Rules.WarmReadGas)
		}
	}
	return gas, refund
}

// CalcLogGas computes LOG0..LOG4 cost: base + topicCount*topicCost +
// dataSize*dataCost.
func (c *DynamicGasCalculator) CalcLogGas(topicCount int, dataSize uint64) (uint64, error) {
	if topicCount < 0 || topicCount > 4 {
		return 0, ErrInvalidTopicCount
	}
	gas := c.Rules.LogBaseCost
	gas = dgSafeAdd(gas, dgSafeMul(uint64(topicCount), c.Rules.LogTopicCost))
	gas = dgSafeAdd(gas, dgSafeMul(dataSize, c.Rules.LogDataCost))
	if gas == math.MaxUint64 && dataSize > 0 {
		return 0, ErrGasOverflow
	}
	return gas, nil
}

// CalcKeccak256Gas computes KECCAK256's cost: base + wordCost*ceil(size/32).
func (c *DynamicGasCalculator) CalcKeccak256Gas(dataSize uint64) (uint64, error) {
	words := dgToWordSize(dataSize)
	total := dgSafeAdd(c.Rules.Keccak256BaseCost, dgSafeMul(words, c.Rules.Keccak256WordCost))
	if total == math.MaxUint64 && dataSize > 0 {
		return 0, ErrGasOverflow
	}
	return total, nil
}

// CalcCopyGas computes the per-word cost for CALLDATACOPY/CODECOPY/
// RETURNDATACOPY/EXTCODECOPY.
func (c *DynamicGasCalculator) CalcCopyGas(dataSize uint64) (uint64, error) {
	total := dgSafeMul(c.Rules.CopyCostPerWord, dgToWordSize(dataSize))
	if total == math.MaxUint64 && dataSize > 0 {
		return 0, ErrGasOverflow
	}
	return total, nil
}

// CalcCreateGas computes CREATE/CREATE2 cost including EIP-3860 initcode
// word pricing and, for CREATE2, the keccak of the initcode.
func (c *DynamicGasCalculator) CalcCreateGas(initCodeSize uint64, isCreate2 bool) (uint64, error) {
	if c.Rules.MaxInitCodeSize > 0 && initCodeSize > c.Rules.MaxInitCodeSize {
		return 0, ErrInitCodeTooLarge
	}
	words := dgToWordSize(initCodeSize)
	gas := dgSafeAdd(c.Rules.CreateBaseCost, dgSafeMul(c.Rules.InitCodeWordCost, words))
	if isCreate2 {
		gas = dgSafeAdd(gas, dgSafeMul(c.Rules.Create2HashWordCost, words))
	}
	if gas == math.MaxUint64 && initCodeSize > 0 {
		return 0, ErrGasOverflow
	}
	return gas, nil
}

// CalcSelfDestructGas computes SELFDESTRUCT's cost: base + cold-access
// surcharge + new-account surcharge when the beneficiary doesn't exist and
// value is transferred.
func (c *DynamicGasCalculator) CalcSelfDestructGas(targetExists, hasValue, coldAccess bool) uint64 {
	gas := c.Rules.SelfDestructBaseCost
	if coldAccess {
		gas += c.Rules.SelfDestructColdAcctCost
	}
	if !targetExists && hasValue {
		gas += c.Rules.SelfDestructNewAcctCost
	}
	return gas
}

func dgSafeAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func dgSafeMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

func dgToWordSize(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}
