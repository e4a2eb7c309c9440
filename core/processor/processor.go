// Package processor implements the transaction driver: the one entry point
// (Execute) that ties together intrinsic gas validation, the interpreter
// call/create path, refund application, and the fork request pump. It is
// the "outermost driver" spec §5/§6 describes: it reports unresolved fork
// state as ErrStateUnavailable, and its caller decides whether to retry.
package processor

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/state"
	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/core/vm"
	"github.com/evmlabs/coreevm/log"
)

var processorLog = log.Default().Module("processor")

// Intrinsic gas constants (pre-execution cost of a transaction, charged
// before a single EVM opcode runs).
const (
	TxGas            uint64 = 21000
	TxCreateGas      uint64 = 32000
	TxDataZeroGas    uint64 = 4
	TxDataNonZeroGas uint64 = 16

	TxAccessListAddressGas    uint64 = 2400
	TxAccessListStorageKeyGas uint64 = 1900

	// EIP-7702: per-authorization-entry gas. intrinsicGas charges
	// PerAuthBaseCost for each entry; PerEmptyAuthTarget (a surcharge for an
	// entry whose target account does not exist) is not charged anywhere.
	PerAuthBaseCost    uint64 = 12500
	PerEmptyAuthTarget uint64 = 25000

	InitCodeWordGas uint64 = 2 // EIP-3860
)

var (
	ErrNonceTooLow        = errors.New("processor: nonce too low")
	ErrNonceTooHigh       = errors.New("processor: nonce too high")
	ErrInsufficientFunds  = errors.New("processor: insufficient balance for gas * price + value")
	ErrGasLimitExceeded   = errors.New("processor: transaction gas limit exceeds block gas limit")
	ErrIntrinsicGasTooLow = errors.New("processor: gas limit below intrinsic gas cost")
	ErrNonceMax           = errors.New("processor: sender nonce at uint64 max")

	// ErrStateUnavailable is returned when execution touched an account,
	// slot, or code hash the fork backend could not resolve locally. The
	// caller is expected to drain statedb.Backend().PendingRequests(),
	// answer them against its own transport, feed results back through
	// Backend().Continue, and call Execute again — per spec §4.3/§5, this
	// is the sole suspension point, and the only error the interpreter's
	// own infallible StateDB reads can turn into at the driver boundary.
	ErrStateUnavailable = errors.New("processor: state unavailable, pending fork requests")
)

// Result is the outcome of Execute: `{success, output, gas_used,
// gas_refunded, logs[], created_address?}` plus the execution error. It
// carries no access list and no trace.
type Result struct {
	Success         bool
	Output          []byte
	GasUsed         uint64
	GasRefunded     uint64
	Logs            []*types.Log
	CreatedAddress  *types.Address
	Err             error
}

// Execute validates tx against state at the given hardfork, then runs it to
// completion: intrinsic gas charge, EVM call/create, EIP-3529 refund cap
// application, gas repayment, and a trailing statedb.Finalize() so dirty
// storage is folded and any account emptied (or self-destructed) this tx is
// swept per EIP-161 before the state is handed to the next transaction.
func Execute(tx *types.Transaction, block *types.Block, statedb *state.MemoryStateDB, hardfork vm.Hardfork, tracer vm.EVMLogger) (*Result, error) {
	rules := hardfork.Rules()

	if err := validate(tx, block, statedb); err != nil {
		return nil, err
	}

	igas, err := intrinsicGas(tx, rules)
	if err != nil {
		return nil, err
	}
	if tx.Gas < igas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGasTooLow, tx.Gas, igas)
	}

	preSnapshot := statedb.Snapshot()

	gasPrice := tx.EffectiveGasPrice(block.BaseFee)
	upfrontCost := new(uint256.Int).Mul(gasPrice, uint256.NewInt(tx.Gas))
	statedb.SubBalance(tx.From, upfrontCost)
	statedb.SetNonce(tx.From, tx.Nonce+1)

	snapshot := statedb.Snapshot()

	blockCtx := vm.BlockContext{
		GetHash:     func(num uint64) types.Hash { return block.Hash(num) },
		Coinbase:    block.Coinbase,
		GasLimit:    block.GasLimit,
		BlockNumber: block.Number,
		Time:        block.Time,
		BaseFee:     block.BaseFee,
		BlobBaseFee: block.BlobBaseFee,
		PrevRandao:  block.PrevRandao,
	}
	txCtx := vm.TxContext{
		Origin:     tx.From,
		GasPrice:   gasPrice,
		BlobHashes: tx.BlobHashes,
	}
	evm := vm.NewEVM(blockCtx, txCtx, statedb, chainIDFor(hardfork), rules, vm.Config{
		Tracer:       tracer,
		Debug:        tracer != nil,
		MaxCallDepth: vm.MaxCallDepth,
	})

	var accessList []vm.AccessTuple
	for _, t := range tx.AccessList {
		accessList = append(accessList, vm.AccessTuple{Address: t.Address, StorageKeys: t.StorageKeys})
	}
	if rules.IsBerlin {
		evm.PreWarmAccessList(tx.From, tx.To, accessList)
	}

	gasAvailable := tx.Gas - igas
	var (
		output         []byte
		leftOverGas    uint64
		execErr        error
		createdAddress *types.Address
	)
	if tx.IsContractCreation() {
		var addr types.Address
		output, addr, leftOverGas, execErr = evm.Create(tx.From, tx.Data, gasAvailable, value(tx.Value))
		if execErr == nil {
			createdAddress = &addr
		}
	} else {
		output, leftOverGas, execErr = evm.Call(tx.From, *tx.To, tx.Data, gasAvailable, value(tx.Value))
	}

	if statedb.Unresolved() {
		statedb.ClearUnresolved()
		if revertErr := statedb.RevertToSnapshot(preSnapshot); revertErr != nil {
			return nil, revertErr
		}
		backend := statedb.Backend()
		pending := 0
		if backend != nil {
			pending = len(backend.PendingRequests())
		}
		return nil, fmt.Errorf("%w: %d request(s) queued", ErrStateUnavailable, pending)
	}

	success := execErr == nil
	if !success {
		processorLog.Debug("transaction reverted", "hash_from", tx.From.Hex(), "err", execErr)
		if revertErr := statedb.RevertToSnapshot(snapshot); revertErr != nil {
			return nil, revertErr
		}
	}

	gasUsed := gasAvailable - leftOverGas
	refund := applyRefundCap(statedb.GetRefund(), gasUsed, rules.EIP3529)

	totalGasUsed := igas + gasUsed - refund
	gasRemaining := tx.Gas - totalGasUsed

	// Repay unused gas (at the price actually charged) to the sender, then
	// credit the coinbase with the priority-fee portion actually earned.
	repay := new(uint256.Int).Mul(gasPrice, uint256.NewInt(gasRemaining))
	statedb.AddBalance(tx.From, repay)

	var coinbaseFee *uint256.Int
	if rules.IsLondon && block.BaseFee != nil {
		tip := tx.EffectiveGasPrice(block.BaseFee)
		priorityFee := new(uint256.Int).Sub(tip, block.BaseFee)
		coinbaseFee = new(uint256.Int).Mul(priorityFee, uint256.NewInt(totalGasUsed))
	} else {
		coinbaseFee = new(uint256.Int).Mul(gasPrice, uint256.NewInt(totalGasUsed))
	}
	statedb.AddBalance(block.Coinbase, coinbaseFee)

	logs := statedb.Logs()
	statedb.Finalize()

	return &Result{
		Success:        success,
		Output:         output,
		GasUsed:        totalGasUsed,
		GasRefunded:    refund,
		Logs:           logs,
		CreatedAddress: createdAddress,
		Err:            execErr,
	}, nil
}

func value(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func validate(tx *types.Transaction, block *types.Block, statedb *state.MemoryStateDB) error {
	stateNonce := statedb.GetNonce(tx.From)
	if tx.Nonce < stateNonce {
		return fmt.Errorf("%w: tx %d, state %d", ErrNonceTooLow, tx.Nonce, stateNonce)
	}
	if tx.Nonce > stateNonce {
		return fmt.Errorf("%w: tx %d, state %d", ErrNonceTooHigh, tx.Nonce, stateNonce)
	}
	if tx.Nonce+1 == 0 {
		return ErrNonceMax
	}
	if tx.Gas > block.GasLimit {
		return fmt.Errorf("%w: tx %d, block %d", ErrGasLimitExceeded, tx.Gas, block.GasLimit)
	}

	gasPrice := tx.EffectiveGasPrice(block.BaseFee)
	cost := new(uint256.Int).Mul(gasPrice, uint256.NewInt(tx.Gas))
	cost.Add(cost, value(tx.Value))
	balance := statedb.GetBalance(tx.From)
	if balance.Cmp(cost) < 0 {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientFunds, balance.String(), cost.String())
	}
	return nil
}

// intrinsicGas computes the base gas cost of tx before any EVM opcode runs:
// the flat per-transaction cost, per-byte calldata cost, EIP-2930
// access-list cost, EIP-3860 init-code word cost, and EIP-7702
// authorization-list cost.
func intrinsicGas(tx *types.Transaction, rules vm.ForkRules) (uint64, error) {
	gas := TxGas
	if tx.IsContractCreation() {
		gas += TxCreateGas
	}
	for _, b := range tx.Data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	for _, entry := range tx.AccessList {
		gas += TxAccessListAddressGas
		gas += uint64(len(entry.StorageKeys)) * TxAccessListStorageKeyGas
	}
	if tx.IsContractCreation() && rules.IsShanghai {
		words := (uint64(len(tx.Data)) + 31) / 32
		gas += words * InitCodeWordGas
	}
	for range tx.AuthorizationList {
		gas += PerAuthBaseCost
	}
	return gas, nil
}

// applyRefundCap caps the state's accumulated refund counter at gasUsed/5
// post-London (EIP-3529) or gasUsed/2 pre-London, and returns the capped
// amount actually applied.
func applyRefundCap(refund, gasUsed uint64, eip3529 bool) uint64 {
	var cap_ uint64
	if eip3529 {
		cap_ = gasUsed / 5
	} else {
		cap_ = gasUsed / 2
	}
	if refund > cap_ {
		return cap_
	}
	return refund
}

// chainIDFor returns the chain id the interpreter reports to CHAINID. A
// single fixed id is used since multi-chain configuration is outside this
// module's scope.
func chainIDFor(hardfork vm.Hardfork) uint64 {
	_ = hardfork
	return 1
}
