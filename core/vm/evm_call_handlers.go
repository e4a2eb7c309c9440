package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// requestedGas clamps a stack-provided gas word to the EIP-150 63/64ths
// cap and, for value-bearing calls, adds the 2300 gas stipend.
func requestedGas(evm *EVM, contract *Contract, gasWord *uint256.Int, hasValue bool) uint64 {
	var requested uint64
	if gasWord.IsUint64() {
		requested = gasWord.Uint64()
	} else {
		requested = ^uint64(0)
	}
	gas := evm.gasCalc.CalcCallGas(contract.Gas, requested)
	if hasValue {
		gas += CallStipend
	}
	return gas
}

func opCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	gasWord := stack.Pop()
	addrWord := stack.Pop()
	value := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	hasValue := !value.IsZero()
	if contract.IsStatic && hasValue {
		return nil, ErrWriteProtection
	}
	args := memory.Get(int64(inOffset.Uint64()), int64(inSize.Uint64()))
	gas := requestedGas(evm, contract, gasWord, hasValue)
	if !contract.UseGas(gas) {
		return nil, ErrOutOfGas
	}

	ret, returnGas, err := evm.Call(contract.Address, addr, args, gas, new(uint256.Int).Set(value))
	contract.RefundGas(returnGas)
	writeCallResult(stack, memory, outOffset.Uint64(), outSize.Uint64(), ret, err)
	return nil, nil
}

func opCallCode(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	gasWord := stack.Pop()
	addrWord := stack.Pop()
	value := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	hasValue := !value.IsZero()
	args := memory.Get(int64(inOffset.Uint64()), int64(inSize.Uint64()))
	gas := requestedGas(evm, contract, gasWord, hasValue)
	if !contract.UseGas(gas) {
		return nil, ErrOutOfGas
	}

	ret, returnGas, err := evm.CallCode(contract.Address, addr, args, gas, new(uint256.Int).Set(value))
	contract.RefundGas(returnGas)
	writeCallResult(stack, memory, outOffset.Uint64(), outSize.Uint64(), ret, err)
	return nil, nil
}

func opDelegateCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	gasWord := stack.Pop()
	addrWord := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	args := memory.Get(int64(inOffset.Uint64()), int64(inSize.Uint64()))
	gas := requestedGas(evm, contract, gasWord, false)
	if !contract.UseGas(gas) {
		return nil, ErrOutOfGas
	}

	ret, returnGas, err := evm.DelegateCall(contract.Address, contract.CallerAddress, addr, args, gas, contract.Value)
	contract.RefundGas(returnGas)
	writeCallResult(stack, memory, outOffset.Uint64(), outSize.Uint64(), ret, err)
	return nil, nil
}

func opStaticCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	gasWord := stack.Pop()
	addrWord := stack.Pop()
	inOffset, inSize := stack.Pop(), stack.Pop()
	outOffset, outSize := stack.Pop(), stack.Pop()

	addr := types.BytesToAddress(addrWord.Bytes())
	args := memory.Get(int64(inOffset.Uint64()), int64(inSize.Uint64()))
	gas := requestedGas(evm, contract, gasWord, false)
	if !contract.UseGas(gas) {
		return nil, ErrOutOfGas
	}

	ret, returnGas, err := evm.StaticCall(contract.Address, addr, args, gas)
	contract.RefundGas(returnGas)
	writeCallResult(stack, memory, outOffset.Uint64(), outSize.Uint64(), ret, err)
	return nil, nil
}

// writeCallResult copies ret into memory at [outOffset,outOffset+outSize),
// stashes it as the frame's return-data buffer, and pushes the CALL-family
// success flag (1 for success, 0 for a revert or any other error; revert
// data is still copied to memory).
func writeCallResult(stack *Stack, memory *Memory, outOffset, outSize uint64, ret []byte, err error) {
	if err == nil || err == ErrExecutionReverted {
		if len(ret) > 0 {
			memory.Set(outOffset, min64(outSize, uint64(len(ret))), ret)
		}
	}
	if err == nil {
		stack.Push(uint256.NewInt(1))
	} else {
		stack.Push(new(uint256.Int))
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
