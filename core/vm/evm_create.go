package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/crypto"
)

// createAddress computes the address of a contract created with CREATE.
// Per the Yellow Paper: addr = keccak256(rlp([sender, nonce]))[12:]
func createAddress(caller types.Address, nonce uint64) types.Address {
	addrEnc := encodeRLPBytes(caller.Bytes())
	nonceEnc := encodeRLPUint(nonce)
	payload := append(addrEnc, nonceEnc...)
	data := wrapRLPList(payload)
	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}

// create2Address computes the address of a contract created with CREATE2:
// keccak256(0xff ++ caller ++ salt ++ keccak256(initCode))[12:].
func create2Address(caller types.Address, salt *uint256.Int, initCode []byte) types.Address {
	saltBytes := salt.Bytes32()
	initCodeHash := crypto.Keccak256(initCode)

	data := make([]byte, 0, 1+types.AddressLength+32+32)
	data = append(data, 0xff)
	data = append(data, caller.Bytes()...)
	data = append(data, saltBytes[:]...)
	data = append(data, initCodeHash...)

	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}

// encodeRLPBytes encodes a byte slice as an RLP string.
func encodeRLPBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	if len(b) < 56 {
		return append([]byte{byte(0x80 + len(b))}, b...)
	}
	lenBytes := uintToMinBytes(uint64(len(b)))
	header := append([]byte{byte(0xb7 + len(lenBytes))}, lenBytes...)
	return append(header, b...)
}

// encodeRLPUint encodes a uint64 as an RLP integer.
func encodeRLPUint(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	if v < 128 {
		return []byte{byte(v)}
	}
	b := uintToMinBytes(v)
	return append([]byte{byte(0x80 + len(b))}, b...)
}

// wrapRLPList wraps payload bytes in an RLP list header.
func wrapRLPList(payload []byte) []byte {
	if len(payload) < 56 {
		return append([]byte{byte(0xc0 + len(payload))}, payload...)
	}
	lenBytes := uintToMinBytes(uint64(len(payload)))
	header := append([]byte{byte(0xf7 + len(lenBytes))}, lenBytes...)
	return append(header, payload...)
}

// uintToMinBytes encodes v as big-endian bytes with no leading zeros.
func uintToMinBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
		if buf[i] != 0 {
			n = 8 - i
		}
	}
	return buf[8-n:]
}

func opCreate(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if contract.IsStatic {
		return nil, ErrWriteProtection
	}
	value := stack.Pop()
	offset, size := stack.Pop(), stack.Pop()
	input := memory.Get(int64(offset.Uint64()), int64(size.Uint64()))

	gas := contract.Gas - contract.Gas/CallStipendDivisor
	if !contract.UseGas(gas) {
		return nil, ErrOutOfGas
	}

	_, addr, returnGas, err := evm.Create(contract.Address, input, gas, new(uint256.Int).Set(value))
	contract.RefundGas(returnGas)

	if err != nil && err != ErrExecutionReverted {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetBytes(addr.Bytes()))
	}
	return nil, nil
}

func opCreate2(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if contract.IsStatic {
		return nil, ErrWriteProtection
	}
	value := stack.Pop()
	offset, size := stack.Pop(), stack.Pop()
	salt := stack.Pop()
	input := memory.Get(int64(offset.Uint64()), int64(size.Uint64()))

	gas := contract.Gas - contract.Gas/CallStipendDivisor
	if !contract.UseGas(gas) {
		return nil, ErrOutOfGas
	}

	_, addr, returnGas, err := evm.Create2(contract.Address, input, gas, new(uint256.Int).Set(value), salt)
	contract.RefundGas(returnGas)

	if err != nil && err != ErrExecutionReverted {
		stack.Push(new(uint256.Int))
	} else {
		stack.Push(new(uint256.Int).SetBytes(addr.Bytes()))
	}
	return nil, nil
}
