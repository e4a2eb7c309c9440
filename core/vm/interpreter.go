package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/log"
)

// GetHashFunc returns the hash of the ancestor block at the given number,
// or the zero hash if num is out of the last-256-block window BLOCKHASH
// is allowed to see.
type GetHashFunc func(num uint64) types.Hash

// BlockContext carries block-level values that stay constant for every
// transaction executed against the same block.
type BlockContext struct {
	GetHash     GetHashFunc
	Coinbase    types.Address
	GasLimit    uint64
	BlockNumber uint64
	Time        uint64
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
	PrevRandao  types.Hash
}

// TxContext carries transaction-level values.
type TxContext struct {
	Origin     types.Address
	GasPrice   *uint256.Int
	BlobHashes []types.Hash
}

// ForkRules is the set of hardfork activation flags the interpreter and
// gas tables branch on. Each flag is true from its hardfork onward.
type ForkRules struct {
	IsHomestead        bool
	IsTangerineWhistle bool
	IsSpuriousDragon   bool
	IsByzantium        bool
	IsConstantinople   bool
	IsIstanbul         bool
	IsBerlin           bool
	IsLondon           bool
	IsMerge            bool
	IsShanghai         bool
	IsCancun           bool
	IsPrague           bool

	// EIP158 gates empty-account removal (Spurious Dragon).
	EIP158 bool
	// EIP2929 gates warm/cold access-list gas accounting (Berlin).
	EIP2929 bool
	// EIP3529 gates the reduced refund cap and cleared-slot-refund cut
	// (London).
	EIP3529 bool
}

// Config bundles interpreter-wide knobs that don't vary per call.
type Config struct {
	Debug        bool
	Tracer       EVMLogger
	MaxCallDepth int
	NoBaseFee    bool
}

// EVM is the execution context threaded through every opcode handler: the
// active jump table, gas pricing rules, state database, and block/tx
// context for one transaction's execution (which may itself spawn nested
// calls, each sharing this same EVM but at increasing depth).
type EVM struct {
	Context   BlockContext
	TxContext TxContext
	StateDB   StateDB
	Config    Config

	chainID   uint64
	forkRules ForkRules
	jumpTable JumpTable
	gasCalc   *DynamicGasCalculator

	depth      int
	readOnly   bool
	returnData []byte

	abort bool
}

// NewEVM constructs an EVM bound to blockCtx/txCtx/statedb, selecting the
// jump table and gas pricing rules for rules.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, chainID uint64, rules ForkRules, cfg Config) *EVM {
	if cfg.MaxCallDepth == 0 {
		cfg.MaxCallDepth = MaxCallDepth
	}
	return &EVM{
		Context:   blockCtx,
		TxContext: txCtx,
		StateDB:   statedb,
		Config:    cfg,
		chainID:   chainID,
		forkRules: rules,
		jumpTable: SelectJumpTable(rules),
		gasCalc:   NewDynamicGasCalculator(pricingRulesForFork(rules)),
	}
}

// SelectJumpTable returns the jump table for the hardfork described by rules.
func SelectJumpTable(rules ForkRules) JumpTable {
	switch {
	case rules.IsPrague:
		return NewPragueJumpTable()
	case rules.IsCancun:
		return NewCancunJumpTable()
	case rules.IsShanghai:
		return NewShanghaiJumpTable()
	case rules.IsMerge:
		return NewMergeJumpTable()
	case rules.IsLondon:
		return NewLondonJumpTable()
	case rules.IsBerlin:
		return NewBerlinJumpTable()
	case rules.IsIstanbul:
		return NewIstanbulJumpTable()
	case rules.IsConstantinople:
		return NewConstantinopleJumpTable()
	case rules.IsByzantium:
		return NewByzantiumJumpTable()
	case rules.IsSpuriousDragon:
		return NewSpuriousDragonJumpTable()
	case rules.IsTangerineWhistle:
		return NewTangerineWhistleJumpTable()
	case rules.IsHomestead:
		return NewHomesteadJumpTable()
	default:
		return NewFrontierJumpTable()
	}
}

// pricingRulesForFork selects the GasPricingRules matching rules' hardfork,
// layering each EIP's repricing atop the previous fork's values.
func pricingRulesForFork(rules ForkRules) GasPricingRules {
	p := DefaultPricingRules()
	p.EIP2929 = rules.EIP2929
	p.EIP3529 = rules.EIP3529
	if !rules.IsIstanbul {
		p.SstoreSetGas = 20000
		p.SstoreResetGas = 5000
		p.SstoreClearsRef = 15000
	}
	if !rules.EIP3529 {
		p.SstoreClearsRef = 15000
	}
	if !rules.IsTangerineWhistle {
		p.CallGasFraction = 1 // pre-EIP-150: no 63/64 retention rule
	}
	return p
}

// Depth returns the current call depth (0 for the outermost call).
func (evm *EVM) Depth() int { return evm.depth }

// ChainID returns the configured chain ID.
func (evm *EVM) ChainID() uint64 { return evm.chainID }

// ForkRules returns the active hardfork flags.
func (evm *EVM) ForkRules() ForkRules { return evm.forkRules }

// Cancel requests the interpreter halt at the next step boundary, used by
// callers enforcing an external execution timeout.
func (evm *EVM) Cancel() { evm.abort = true }

// Run executes contract's code against input, stepping the interpreter
// until a halting opcode, an error, or gas exhaustion. It returns the
// returned/reverted output bytes and any execution error.
func (evm *EVM) Run(contract *Contract, input []byte) ([]byte, error) {
	contract.Input = input

	var (
		pc     uint64
		op     OpCode
		mem    = NewMemory()
		stack  = NewStack()
		logger = evm.Config.Tracer
	)

	if len(contract.Code) == 0 {
		return nil, nil
	}

	for {
		if evm.abort {
			return nil, ErrExecutionReverted
		}
		if pc >= uint64(len(contract.Code)) {
			return nil, nil
		}
		op = contract.GetOp(pc)
		operation := evm.jumpTable[op]
		if operation == nil {
			return nil, ErrInvalidOpcode
		}

		if err := stack.Require(operation.minStack); err != nil {
			return nil, err
		}
		if stack.Len() > operation.maxStack {
			return nil, ErrStackOverflow
		}

		if operation.writes && contract.IsStatic {
			return nil, ErrWriteProtection
		}

		var memorySize uint64
		if operation.memorySize != nil {
			size, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrGasUintOverflow
			}
			wordSize, overflow := dgToWordSize(size)
			if overflow {
				return nil, ErrGasUintOverflow
			}
			memorySize = wordSize * 32
		}

		cost := operation.constantGas
		if !contract.UseGas(cost) {
			return nil, ErrOutOfGas
		}
		if operation.dynamicGas != nil {
			dynCost, err := operation.dynamicGas(evm, contract, stack, mem, memorySize)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(dynCost) {
				return nil, ErrOutOfGas
			}
			cost += dynCost
		}
		if memorySize > uint64(mem.Len()) {
			mem.Resize(memorySize)
		}

		if logger != nil {
			logger.CaptureState(pc, op, contract.Gas, cost, stack, mem, evm.depth, nil)
		}

		ret, err := operation.execute(&pc, evm, contract, mem, stack)
		if err != nil {
			if logger != nil {
				logger.CaptureState(pc, op, contract.Gas, cost, stack, mem, evm.depth, err)
			}
			if err == ErrExecutionReverted {
				return ret, err
			}
			return nil, err
		}

		if operation.halts {
			return ret, nil
		}
		if !operation.jumps {
			pc++
		}
	}
}

// canTransfer reports whether addr's balance covers amount.
func (evm *EVM) canTransfer(addr types.Address, amount *uint256.Int) bool {
	return evm.StateDB.GetBalance(addr).Cmp(amount) >= 0
}

func (evm *EVM) transfer(from, to types.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	evm.StateDB.SubBalance(from, amount)
	evm.StateDB.AddBalance(to, amount)
}

// traceCallEnter/traceCallExit notify an optional CallTracer of nested
// (depth > 0) CALL-family frames; the outermost frame is covered by
// CaptureStart/CaptureEnd instead.
func (evm *EVM) traceCallEnter(kind OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int) {
	if evm.depth == 0 || evm.Config.Tracer == nil {
		return
	}
	if ct, ok := evm.Config.Tracer.(CallTracer); ok {
		ct.CaptureCallEnter(kind, from, to, input, gas, value, evm.depth)
	}
}

func (evm *EVM) traceCallExit(output []byte, gasUsed uint64, err error) {
	if evm.depth == 0 || evm.Config.Tracer == nil {
		return
	}
	if ct, ok := evm.Config.Tracer.(CallTracer); ok {
		ct.CaptureCallExit(output, gasUsed, err, evm.depth)
	}
}

// resolveCode returns the code to execute for addr, following an EIP-7702
// delegation designator one hop if one is set.
func (evm *EVM) resolveCode(addr types.Address) []byte {
	if evm.forkRules.IsPrague {
		if target, ok := evm.StateDB.GetDelegation(addr); ok {
			return evm.StateDB.GetCode(target)
		}
	}
	return evm.StateDB.GetCode(addr)
}

// Call executes the code at addr as a message call from caller, passing
// value and input, limited to gas. It transfers value before executing,
// snapshotting state so a revert undoes both the transfer and every
// state change the call made.
func (evm *EVM) Call(caller types.Address, addr types.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrCallDepthExceeded
	}
	if value != nil && value.Sign() != 0 && !evm.canTransfer(caller, value) {
		return nil, gas, ErrInsufficientBalance
	}

	if evm.Config.Tracer != nil && evm.depth == 0 {
		evm.Config.Tracer.CaptureStart(caller, addr, false, input, gas, value)
	}

	snapshot := evm.StateDB.Snapshot()
	if !evm.StateDB.Exist(addr) {
		if value == nil || value.IsZero() {
			if evm.forkRules.EIP158 {
				// Calling an empty, non-existent account with zero value is a
				// no-op that creates nothing (EIP-158).
				if evm.Config.Tracer != nil && evm.depth == 0 {
					evm.Config.Tracer.CaptureEnd(nil, 0, nil)
				}
				return nil, gas, nil
			}
		}
		evm.StateDB.CreateAccount(addr)
	}
	if value != nil {
		evm.transfer(caller, addr, value)
	}

	code := evm.resolveCode(addr)
	if len(code) == 0 {
		if evm.Config.Tracer != nil && evm.depth == 0 {
			evm.Config.Tracer.CaptureEnd(nil, 0, nil)
		}
		return nil, gas, nil
	}

	evm.traceCallEnter(CALL, caller, addr, input, gas, value)

	contract := NewContract(caller, addr, value, gas, evm.depth)
	contract.SetCallCode(nil, evm.StateDB.GetCodeHash(addr), code)

	evm.depth++
	ret, err = evm.Run(contract, input)
	evm.depth--
	evm.returnData = ret

	if err != nil {
		if revertErr := evm.StateDB.RevertToSnapshot(snapshot); revertErr != nil {
			log.Default().Error("revert to snapshot failed", "err", revertErr)
		}
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	evm.traceCallExit(ret, gas-contract.Gas, err)
	if evm.Config.Tracer != nil && evm.depth == 0 {
		evm.Config.Tracer.CaptureEnd(ret, gas-contract.Gas, err)
	}
	return ret, contract.Gas, err
}

// CallCode executes addr's code in the caller's own storage context: state
// reads/writes target contract.Address (the caller), not addr.
func (evm *EVM) CallCode(caller types.Address, addr types.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrCallDepthExceeded
	}
	if value != nil && value.Sign() != 0 && !evm.canTransfer(caller, value) {
		return nil, gas, ErrInsufficientBalance
	}

	snapshot := evm.StateDB.Snapshot()
	code := evm.resolveCode(addr)
	evm.traceCallEnter(CALLCODE, caller, addr, input, gas, value)
	contract := NewContract(caller, caller, value, gas, evm.depth)
	contract.SetCallCode(nil, evm.StateDB.GetCodeHash(addr), code)

	evm.depth++
	ret, err = evm.Run(contract, input)
	evm.depth--
	evm.returnData = ret

	if err != nil {
		if revertErr := evm.StateDB.RevertToSnapshot(snapshot); revertErr != nil {
			log.Default().Error("revert to snapshot failed", "err", revertErr)
		}
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	evm.traceCallExit(ret, gas-contract.Gas, err)
	return ret, contract.Gas, err
}

// DelegateCall executes addr's code with the parent frame's caller and
// value preserved (msg.sender and msg.value pass through unchanged).
func (evm *EVM) DelegateCall(caller types.Address, originCaller types.Address, addr types.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrCallDepthExceeded
	}

	snapshot := evm.StateDB.Snapshot()
	code := evm.resolveCode(addr)
	evm.traceCallEnter(DELEGATECALL, originCaller, addr, input, gas, value)
	contract := NewContract(originCaller, caller, value, gas, evm.depth)
	contract.SetCallCode(nil, evm.StateDB.GetCodeHash(addr), code)

	evm.depth++
	ret, err = evm.Run(contract, input)
	evm.depth--
	evm.returnData = ret

	if err != nil {
		if revertErr := evm.StateDB.RevertToSnapshot(snapshot); revertErr != nil {
			log.Default().Error("revert to snapshot failed", "err", revertErr)
		}
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	evm.traceCallExit(ret, gas-contract.Gas, err)
	return ret, contract.Gas, err
}

// StaticCall executes addr's code with writes forbidden: SSTORE, LOG*,
// CREATE*, SELFDESTRUCT, and value-bearing CALL all fail inside it.
func (evm *EVM) StaticCall(caller types.Address, addr types.Address, input []byte, gas uint64) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrCallDepthExceeded
	}

	snapshot := evm.StateDB.Snapshot()
	code := evm.resolveCode(addr)
	evm.traceCallEnter(STATICCALL, caller, addr, input, gas, nil)
	contract := NewContract(caller, addr, new(uint256.Int), gas, evm.depth)
	contract.SetCallCode(nil, evm.StateDB.GetCodeHash(addr), code)
	contract.IsStatic = true

	wasReadOnly := evm.readOnly
	evm.readOnly = true
	evm.depth++
	ret, err = evm.Run(contract, input)
	evm.depth--
	evm.readOnly = wasReadOnly
	evm.returnData = ret

	if err != nil {
		if revertErr := evm.StateDB.RevertToSnapshot(snapshot); revertErr != nil {
			log.Default().Error("revert to snapshot failed", "err", revertErr)
		}
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
	}
	evm.traceCallExit(ret, gas-contract.Gas, err)
	return ret, contract.Gas, err
}

// Create deploys initCode as a new contract owned by caller, at the
// address derived from caller's current nonce.
func (evm *EVM) Create(caller types.Address, initCode []byte, gas uint64, value *uint256.Int) (ret []byte, contractAddr types.Address, leftOverGas uint64, err error) {
	nonce := evm.StateDB.GetNonce(caller)
	contractAddr = createAddress(caller, nonce)
	return evm.create(caller, initCode, gas, value, contractAddr)
}

// Create2 deploys initCode at the CREATE2 address derived from caller,
// salt, and the keccak256 of initCode, giving the deployer an address
// that's predictable before deployment.
func (evm *EVM) Create2(caller types.Address, initCode []byte, gas uint64, value *uint256.Int, salt *uint256.Int) (ret []byte, contractAddr types.Address, leftOverGas uint64, err error) {
	contractAddr = create2Address(caller, salt, initCode)
	return evm.create(caller, initCode, gas, value, contractAddr)
}

func (evm *EVM) create(caller types.Address, initCode []byte, gas uint64, value *uint256.Int, addr types.Address) (ret []byte, contractAddr types.Address, leftOverGas uint64, err error) {
	contractAddr = addr
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, addr, gas, ErrCallDepthExceeded
	}
	if value != nil && value.Sign() != 0 && !evm.canTransfer(caller, value) {
		return nil, addr, gas, ErrInsufficientBalance
	}
	if uint64(len(initCode)) > evm.gasCalc.Rules.MaxInitCodeSize {
		return nil, addr, gas, ErrMaxInitCodeSizeExceeded
	}
	if evm.StateDB.GetNonce(caller)+1 == 0 {
		return nil, addr, gas, ErrNonceUintOverflow
	}
	evm.StateDB.SetNonce(caller, evm.StateDB.GetNonce(caller)+1)

	if evm.StateDB.Exist(addr) && (evm.StateDB.GetNonce(addr) != 0 || len(evm.StateDB.GetCode(addr)) != 0) {
		return nil, addr, gas, ErrContractAddressCollision
	}

	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(addr)
	evm.StateDB.SetNonce(addr, 1)
	if value != nil {
		evm.transfer(caller, addr, value)
	}

	contract := NewContract(caller, addr, value, gas, evm.depth)
	contract.Code = initCode

	if evm.Config.Tracer != nil {
		if ct, ok := evm.Config.Tracer.(CreateTracer); ok {
			ct.CaptureCreateEnter(CREATE, caller, nil, initCode, gas, value, evm.depth)
		}
	}

	evm.depth++
	ret, err = evm.Run(contract, nil)
	evm.depth--
	evm.returnData = ret

	if err == nil && len(ret) > 0 && ret[0] == 0xef {
		err = ErrInvalidCode
	}
	if err == nil && uint64(len(ret)) > MaxCodeSize {
		err = ErrMaxCodeSizeExceeded
	}
	if err == nil {
		codeCost := uint64(len(ret)) * GasCodeDeposit
		if !contract.UseGas(codeCost) {
			err = ErrOutOfGas
		}
	}

	if err != nil {
		if revertErr := evm.StateDB.RevertToSnapshot(snapshot); revertErr != nil {
			log.Default().Error("revert to snapshot failed", "err", revertErr)
		}
		if err != ErrExecutionReverted {
			contract.Gas = 0
		}
		if evm.Config.Tracer != nil {
			if ct, ok := evm.Config.Tracer.(CreateTracer); ok {
				ct.CaptureCreateExit(addr, nil, err, evm.depth)
			}
		}
		return ret, addr, contract.Gas, err
	}

	if evm.Config.Tracer != nil {
		if ct, ok := evm.Config.Tracer.(CreateTracer); ok {
			ct.CaptureCreateExit(addr, ret, nil, evm.depth)
		}
	}
	evm.StateDB.SetCode(addr, ret)
	return ret, addr, contract.Gas, nil
}

// PreWarmAccessList marks sender, recipient (if any), the precompile
// range [1,9], and every address/slot pair from an EIP-2930 access list
// as warm before execution begins, per EIP-2929/2930.
func (evm *EVM) PreWarmAccessList(sender types.Address, dst *types.Address, accessList []AccessTuple) {
	evm.StateDB.AddAddressToAccessList(sender)
	if dst != nil {
		evm.StateDB.AddAddressToAccessList(*dst)
	}
	for i := 1; i <= 9; i++ {
		evm.StateDB.AddAddressToAccessList(types.BytesToAddress([]byte{byte(i)}))
	}
	for _, tuple := range accessList {
		evm.StateDB.AddAddressToAccessList(tuple.Address)
		for _, slot := range tuple.StorageKeys {
			key := new(uint256.Int).SetBytes(slot.Bytes())
			evm.StateDB.AddSlotToAccessList(tuple.Address, key)
		}
	}
}

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     types.Address
	StorageKeys []types.Hash
}
