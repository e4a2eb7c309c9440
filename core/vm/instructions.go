package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/crypto"
)

// executionFunc is the signature every opcode handler implements.
type executionFunc func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error)

// --- Arithmetic ---

func opStop(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opAdd(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Add(x, y)
	return nil, nil
}

func opSub(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Sub(x, y)
	return nil, nil
}

func opMul(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mul(x, y)
	return nil, nil
}

func opDiv(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Div(x, y)
	return nil, nil
}

func opSdiv(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SDiv(x, y)
	return nil, nil
}

func opMod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mod(x, y)
	return nil, nil
}

func opSmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SMod(x, y)
	return nil, nil
}

func opAddmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y, z := stack.Pop(), stack.Pop(), stack.Peek()
	z.AddMod(x, y, z)
	return nil, nil
}

func opMulmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y, z := stack.Pop(), stack.Pop(), stack.Peek()
	z.MulMod(x, y, z)
	return nil, nil
}

func opExp(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	base, exponent := stack.Pop(), stack.Peek()
	exponent.Exp(base, exponent)
	return nil, nil
}

func opSignExtend(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	back, num := stack.Pop(), stack.Peek()
	num.ExtendSign(num, back)
	return nil, nil
}

// --- Comparison & bitwise ---

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return new(uint256.Int)
}

func opLt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIsZero(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.And(x, y)
	return nil, nil
}

func opOr(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Or(x, y)
	return nil, nil
}

func opXor(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Xor(x, y)
	return nil, nil
}

func opNot(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	th, val := stack.Pop(), stack.Peek()
	val.Byte(th)
	return nil, nil
}

func opSHL(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, val := stack.Pop(), stack.Peek()
	if shift.LtUint64(256) {
		val.Lsh(val, uint(shift.Uint64()))
	} else {
		val.Clear()
	}
	return nil, nil
}

func opSHR(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, val := stack.Pop(), stack.Peek()
	if shift.LtUint64(256) {
		val.Rsh(val, uint(shift.Uint64()))
	} else {
		val.Clear()
	}
	return nil, nil
}

func opSAR(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, val := stack.Pop(), stack.Peek()
	if shift.GtUint64(255) {
		if val.Sign() >= 0 {
			val.Clear()
		} else {
			val.SetAllOne()
		}
		return nil, nil
	}
	val.SRsh(val, uint(shift.Uint64()))
	return nil, nil
}

// --- Environment ---

func opAddress(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).SetBytes(contract.Address.Bytes()))
}

func opBalance(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	addr := types.BytesToAddress(stack.Peek().Bytes())
	stack.Peek().Set(evm.StateDB.GetBalance(addr))
	return nil, nil
}

func opOrigin(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).SetBytes(evm.TxContext.Origin.Bytes()))
}

func opCaller(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).SetBytes(contract.CallerAddress.Bytes()))
}

func opCallValue(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).Set(contract.Value))
}

func opCalldataLoad(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	if offset, overflow := x.Uint64WithOverflow(); !overflow {
		data := getData(contract.Input, offset, 32)
		x.SetBytes(data)
	} else {
		x.Clear()
	}
	return nil, nil
}

func opCalldataSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(uint64(len(contract.Input))))
}

func opCalldataCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	dataOff, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		dataOff = ^uint64(0)
	}
	data := getData(contract.Input, dataOff, length.Uint64())
	memory.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opCodeSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(uint64(len(contract.Code))))
}

func opCodeCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, codeOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	codeOff, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOff = ^uint64(0)
	}
	data := getData(contract.Code, codeOff, length.Uint64())
	memory.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opGasPrice(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).Set(evm.TxContext.GasPrice))
}

func opExtcodesize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	addr := types.BytesToAddress(x.Bytes())
	x.SetUint64(uint64(evm.StateDB.GetCodeSize(addr)))
	return nil, nil
}

func opExtcodecopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	addrWord, memOffset, codeOffset, length := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	addr := types.BytesToAddress(addrWord.Bytes())
	code := evm.StateDB.GetCode(addr)
	codeOff, overflow := codeOffset.Uint64WithOverflow()
	if overflow {
		codeOff = ^uint64(0)
	}
	data := getData(code, codeOff, length.Uint64())
	memory.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil
}

func opExtcodehash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	addr := types.BytesToAddress(x.Bytes())
	if !evm.StateDB.Exist(addr) || evm.StateDB.Empty(addr) {
		x.Clear()
		return nil, nil
	}
	x.SetBytes(evm.StateDB.GetCodeHash(addr).Bytes())
	return nil, nil
}

func opReturndataSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(uint64(len(evm.returnData))))
}

func opReturndataCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	offset64, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		return nil, ErrOutOfBounds
	}
	length64, overflow := length.Uint64WithOverflow()
	if overflow || offset64+length64 > uint64(len(evm.returnData)) {
		return nil, ErrOutOfBounds
	}
	memory.Set(memOffset.Uint64(), length64, evm.returnData[offset64:offset64+length64])
	return nil, nil
}

// --- Block ---

func opBlockhash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	num := stack.Peek()
	if evm.Context.GetHash == nil || !num.IsUint64() {
		num.Clear()
		return nil, nil
	}
	h := evm.Context.GetHash(num.Uint64())
	num.SetBytes(h.Bytes())
	return nil, nil
}

func opCoinbase(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).SetBytes(evm.Context.Coinbase.Bytes()))
}

func opTimestamp(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(evm.Context.Time))
}

func opNumber(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(evm.Context.BlockNumber))
}

func opPrevRandao(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).SetBytes(evm.Context.PrevRandao.Bytes()))
}

func opGasLimit(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(evm.Context.GasLimit))
}

func opChainID(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(evm.chainID))
}

func opSelfBalance(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).Set(evm.StateDB.GetBalance(contract.Address)))
}

func opBaseFee(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).Set(evm.Context.BaseFee))
}

func opBlobHash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	idx := stack.Peek()
	if idx.IsUint64() && idx.Uint64() < uint64(len(evm.TxContext.BlobHashes)) {
		idx.SetBytes(evm.TxContext.BlobHashes[idx.Uint64()].Bytes())
	} else {
		idx.Clear()
	}
	return nil, nil
}

func opBlobBaseFee(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int).Set(evm.Context.BlobBaseFee))
}

// --- Stack, memory, flow ---

func opPop(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Pop()
	return nil, nil
}

func opMload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	off := x.Uint64()
	x.SetBytes(memory.GetPtr(int64(off), 32))
	return nil, nil
}

func opMstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	mStart, val := stack.Pop(), stack.Pop()
	memory.Set32(mStart.Uint64(), val)
	return nil, nil
}

func opMstore8(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	off, val := stack.Pop(), stack.Pop()
	memory.Set(off.Uint64(), 1, []byte{byte(val.Uint64())})
	return nil, nil
}

func opSload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	loc := stack.Peek()
	if st, ok := evm.Config.Tracer.(StorageTracer); ok {
		_, warm := evm.StateDB.SlotInAccessList(contract.Address, loc)
		val := evm.StateDB.GetState(contract.Address, loc)
		st.CaptureStorageRead(contract.Address, new(uint256.Int).Set(loc), &val, warm, evm.depth)
	}
	val := evm.StateDB.GetState(contract.Address, loc)
	loc.Set(&val)
	return nil, nil
}

func opSstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if contract.IsStatic {
		return nil, ErrWriteProtection
	}
	loc, val := stack.Pop(), stack.Pop()
	if st, ok := evm.Config.Tracer.(StorageTracer); ok {
		_, warm := evm.StateDB.SlotInAccessList(contract.Address, loc)
		old := evm.StateDB.GetState(contract.Address, loc)
		st.CaptureStorageWrite(contract.Address, new(uint256.Int).Set(loc), &old, new(uint256.Int).Set(val), warm, evm.depth)
	}
	evm.StateDB.SetState(contract.Address, loc, val)
	return nil, nil
}

func opJump(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	dest := stack.Pop()
	if !contract.ValidJumpdest(dest) {
		return nil, ErrInvalidJump
	}
	*pc = dest.Uint64()
	return nil, nil
}

func opJumpi(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	dest, cond := stack.Pop(), stack.Pop()
	if !cond.IsZero() {
		if !contract.ValidJumpdest(dest) {
			return nil, ErrInvalidJump
		}
		*pc = dest.Uint64()
		return nil, nil
	}
	*pc++
	return nil, nil
}

func opPc(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(*pc))
}

func opMsize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(uint64(memory.Len())))
}

func opGas(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(uint256.NewInt(contract.Gas))
}

func opJumpdest(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opTload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	loc := stack.Peek()
	val := evm.StateDB.GetTransientState(contract.Address, loc)
	loc.Set(&val)
	return nil, nil
}

func opTstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if contract.IsStatic {
		return nil, ErrWriteProtection
	}
	loc, val := stack.Pop(), stack.Pop()
	evm.StateDB.SetTransientState(contract.Address, loc, val)
	return nil, nil
}

func opMcopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	dst, src, length := stack.Pop(), stack.Pop(), stack.Pop()
	memory.Copy(dst.Uint64(), src.Uint64(), length.Uint64())
	return nil, nil
}

// --- Push, dup, swap ---

func opPush0(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, stack.Push(new(uint256.Int))
}

func opPush1(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	*pc++
	if *pc >= uint64(len(contract.Code)) {
		return nil, stack.Push(new(uint256.Int))
	}
	return nil, stack.Push(uint256.NewInt(uint64(contract.Code[*pc])))
}

func makePush(size int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		start := *pc + 1
		data := getData(contract.Code, start, uint64(size))
		*pc += uint64(size)
		return nil, stack.Push(new(uint256.Int).SetBytes(data))
	}
}

func makeDup(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		stack.Dup(n)
		return nil, nil
	}
}

func makeSwap(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		stack.Swap(n)
		return nil, nil
	}
}

// --- Hash ---

func opKeccak256(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Peek()
	data := memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))
	size.SetBytes(crypto.Keccak256(data))
	return nil, nil
}

// --- Log ---

func makeLog(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		if contract.IsStatic {
			return nil, ErrWriteProtection
		}
		mStart, mSize := stack.Pop(), stack.Pop()
		topics := make([]types.Hash, n)
		for i := 0; i < n; i++ {
			t := stack.Pop()
			topics[i] = types.BytesToHash(t.Bytes())
		}
		data := memory.Get(int64(mStart.Uint64()), int64(mSize.Uint64()))
		logEntry := &types.Log{
			Address: contract.Address,
			Topics:  topics,
			Data:    data,
			Depth:   contract.Depth,
		}
		evm.StateDB.AddLog(logEntry)
		if lt, ok := evm.Config.Tracer.(LogTracer); ok {
			lt.CaptureLog(logEntry)
		}
		return nil, nil
	}
}

// --- Halting ---

func opReturn(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Pop()
	return memory.Get(int64(offset.Uint64()), int64(size.Uint64())), nil
}

func opRevert(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Pop()
	ret := memory.Get(int64(offset.Uint64()), int64(size.Uint64()))
	return ret, ErrExecutionReverted
}

func opInvalid(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, ErrInvalidOpcode
}

func opSelfdestruct(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if contract.IsStatic {
		return nil, ErrWriteProtection
	}
	beneficiary := types.BytesToAddress(stack.Pop().Bytes())
	balance := evm.StateDB.GetBalance(contract.Address)
	evm.StateDB.AddBalance(beneficiary, balance)
	if evm.forkRules.IsCancun {
		evm.StateDB.Selfdestruct6780(contract.Address)
	} else {
		evm.StateDB.SelfDestruct(contract.Address)
	}
	return nil, nil
}

// getData returns len bytes from data starting at offset, zero-padding
// past the end — the Yellow Paper's "infinite zero tape" convention used
// by CALLDATALOAD/CALLDATACOPY/CODECOPY/EXTCODECOPY.
func getData(data []byte, offset, size uint64) []byte {
	out := make([]byte, size)
	if offset >= uint64(len(data)) {
		return out
	}
	end := offset + size
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[offset:end])
	return out
}
