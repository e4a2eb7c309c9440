package vm

import "github.com/evmlabs/coreevm/core/types"

// accountAccessCost returns the cost of touching addr's account state
// (BALANCE, EXTCODESIZE, EXTCODECOPY, EXTCODEHASH, and the CALL family),
// selecting flat pre-Berlin pricing or EIP-2929 warm/cold pricing and
// marking the address warm as a side effect.
func accountAccessCost(evm *EVM, addr types.Address) uint64 {
	if !evm.forkRules.IsBerlin {
		if evm.forkRules.IsTangerineWhistle {
			return 700
		}
		return GasExt
	}
	if evm.StateDB.AddressInAccessList(addr) {
		return GasBalanceWarm
	}
	evm.StateDB.AddAddressToAccessList(addr)
	return GasBalanceCold
}

func gasAccountAccess(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(0).Bytes())
	return accountAccessCost(evm, addr), nil
}

func gasAccountAccessPlusCopy(addrIdx int) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		addr := types.BytesToAddress(stack.Back(0).Bytes())
		sizeWord := stack.Back(addrIdx)
		var size uint64
		if sizeWord.IsUint64() {
			size = sizeWord.Uint64()
		} else {
			size = ^uint64(0)
		}
		copyCost, err := evm.gasCalc.CalcCopyGas(size)
		if err != nil {
			return 0, err
		}
		return accountAccessCost(evm, addr) + copyCost, nil
	}
}

func gasCopyWords(sizeIdx int) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		sizeWord := stack.Back(sizeIdx)
		var size uint64
		if sizeWord.IsUint64() {
			size = sizeWord.Uint64()
		} else {
			size = ^uint64(0)
		}
		return evm.gasCalc.CalcCopyGas(size)
	}
}

func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	exp := stack.Back(1)
	byteLen := (exp.BitLen() + 7) / 8
	return evm.gasCalc.CalcExpGas(uint64(byteLen))
}

func gasKeccak256(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	sizeWord := stack.Back(1)
	var size uint64
	if sizeWord.IsUint64() {
		size = sizeWord.Uint64()
	} else {
		size = ^uint64(0)
	}
	return evm.gasCalc.CalcKeccak256Gas(size)
}

func gasLog(n int) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		sizeWord := stack.Back(1)
		var size uint64
		if sizeWord.IsUint64() {
			size = sizeWord.Uint64()
		} else {
			size = ^uint64(0)
		}
		return evm.gasCalc.CalcLogGas(n, size)
	}
}

func gasCreate(isCreate2 bool) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		sizeWord := stack.Back(2)
		var size uint64
		if sizeWord.IsUint64() {
			size = sizeWord.Uint64()
		} else {
			size = ^uint64(0)
		}
		return evm.gasCalc.CalcCreateGas(size, isCreate2)
	}
}

func gasSload(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if !evm.forkRules.IsBerlin {
		if evm.forkRules.IsIstanbul {
			return 800, nil
		}
		if evm.forkRules.IsTangerineWhistle {
			return 200, nil
		}
		return 50, nil
	}
	key := stack.Back(0)
	if _, warm := evm.StateDB.SlotInAccessList(contract.Address, key); warm {
		return GasSloadWarm, nil
	}
	evm.StateDB.AddSlotToAccessList(contract.Address, key)
	return GasSloadCold, nil
}

func gasSstore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	key := stack.Back(0)
	newVal := stack.Back(1)

	if !evm.forkRules.IsBerlin {
		// Pre-Berlin: no access list. Istanbul+ runs the EIP-2200
		// transition table; earlier forks pay a flat set/reset cost.
		if !evm.forkRules.IsIstanbul {
			existing := evm.StateDB.GetState(contract.Address, key)
			if newVal.IsZero() && !existing.IsZero() {
				evm.StateDB.AddRefund(15000)
			}
			if existing.IsZero() && !newVal.IsZero() {
				return GasSstoreSet, nil
			}
			return evm.gasCalc.Rules.SstoreResetGas, nil
		}
		current := evm.StateDB.GetState(contract.Address, key)
		original := evm.StateDB.GetCommittedState(contract.Address, key)
		gas, refund := evm.gasCalc.CalcSStoreGas(&current, &original, newVal, false)
		applyRefundDelta(evm, refund)
		return gas, nil
	}

	_, warm := evm.StateDB.SlotInAccessList(contract.Address, key)
	if !warm {
		evm.StateDB.AddSlotToAccessList(contract.Address, key)
	}
	current := evm.StateDB.GetState(contract.Address, key)
	original := evm.StateDB.GetCommittedState(contract.Address, key)
	gas, refund := evm.gasCalc.CalcSStoreGas(&current, &original, newVal, !warm)
	applyRefundDelta(evm, refund)
	return gas, nil
}

func applyRefundDelta(evm *EVM, delta int64) {
	if delta > 0 {
		evm.StateDB.AddRefund(uint64(delta))
	} else if delta < 0 {
		evm.StateDB.SubRefund(uint64(-delta))
	}
}

func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	beneficiary := types.BytesToAddress(stack.Back(0).Bytes())
	hasValue := !evm.StateDB.GetBalance(contract.Address).IsZero()
	targetExists := evm.StateDB.Exist(beneficiary)

	if !evm.forkRules.IsBerlin {
		if !targetExists && hasValue {
			return 25000, nil
		}
		return 0, nil
	}
	cold := !evm.StateDB.AddressInAccessList(beneficiary)
	if cold {
		evm.StateDB.AddAddressToAccessList(beneficiary)
	}
	// The jump table already charges the base cost as SELFDESTRUCT's
	// constant gas, so only the surcharges are returned here.
	return evm.gasCalc.CalcSelfDestructGas(targetExists, hasValue, cold) - evm.gasCalc.Rules.SelfDestructBaseCost, nil
}

func callValueStipendCost(hasValue bool) uint64 {
	if hasValue {
		return 9000
	}
	return 0
}

func newAccountCost(evm *EVM, target types.Address, hasValue bool) uint64 {
	if hasValue && !evm.StateDB.Exist(target) {
		return 25000
	}
	return 0
}

func gasCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	target := types.BytesToAddress(stack.Back(1).Bytes())
	hasValue := !stack.Back(2).IsZero()
	gas := accountAccessCost(evm, target)
	gas += callValueStipendCost(hasValue)
	gas += newAccountCost(evm, target, hasValue)
	return gas, nil
}

func gasCallCode(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	target := types.BytesToAddress(stack.Back(1).Bytes())
	hasValue := !stack.Back(2).IsZero()
	gas := accountAccessCost(evm, target)
	gas += callValueStipendCost(hasValue)
	return gas, nil
}

func gasDelegateCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	target := types.BytesToAddress(stack.Back(1).Bytes())
	return accountAccessCost(evm, target), nil
}

func gasStaticCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	target := types.BytesToAddress(stack.Back(1).Bytes())
	return accountAccessCost(evm, target), nil
}
