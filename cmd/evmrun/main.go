// Command evmrun disassembles or executes a single transaction's worth of
// EVM bytecode against an in-memory (optionally fork-backed) state, printing
// the result and, on request, a debug_traceTransaction-style struct log.
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/processor"
	"github.com/evmlabs/coreevm/core/state"
	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/core/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("evmrun", flag.ContinueOnError)

	code := fs.String("code", "", "Hex-encoded bytecode (runtime code for --to, init code for creation)")
	calldata := fs.String("calldata", "", "Hex-encoded call input")
	sender := fs.String("sender", "0x1111111111111111111111111111111111111111", "Hex sender address")
	to := fs.String("to", "", "Hex recipient address; omitted means contract creation")
	value := fs.String("value", "0", "Call value in wei, decimal or 0x-hex")
	gas := fs.Uint64("gas", 1_000_000, "Gas limit for the transaction")
	gasPrice := fs.String("gasprice", "1", "Gas price in wei, decimal or 0x-hex")
	balance := fs.String("balance", "1000000000000000000000", "Sender's starting balance in wei")
	hardfork := fs.String("hardfork", "Cancun", "Active hardfork name")
	disasm := fs.Bool("disasm", false, "Disassemble --code and exit")
	trace := fs.Bool("trace", false, "Print a struct log of every executed step")
	traceMemory := fs.Bool("trace.memory", false, "Capture memory in the struct log (expensive)")
	traceStorage := fs.Bool("trace.storage", false, "Capture storage writes in the struct log (expensive)")
	jsonOut := fs.Bool("json", false, "Print the result (and trace, if enabled) as JSON")
	verbosity := fs.Int("verbosity", 3, "Log level 0-5 (0-1=error, 2=warn, 3=info, 4=debug, 5=trace)")

	forkBlockTag := fs.String("fork.blocktag", "", "Enable a fork backend resolving misses at this block tag (e.g. \"latest\")")
	forkCachePolicy := fs.String("fork.cache", "lru", "Fork cache eviction policy: lru, fifo, unbounded")
	forkCacheCapacity := fs.Int("fork.capacity", 1024, "Fork cache capacity per category (ignored for unbounded)")
	forkResponses := fs.String("fork.responses", "", "Path to a JSON file mapping fork request id -> eth_getProof/eth_getCode response, used to answer pending requests non-interactively")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	setupLogging(*verbosity)

	codeBytes, err := decodeHex(*code)
	if err != nil {
		gethlog.Error("invalid --code", "err", err)
		return 2
	}

	if *disasm {
		for _, line := range vm.Disassemble(codeBytes) {
			fmt.Println(line)
		}
		return 0
	}

	hf, ok := vm.HardforkByName(*hardfork)
	if !ok {
		gethlog.Error("unknown hardfork", "name", *hardfork)
		return 2
	}

	statedb, backend, err := buildState(*forkBlockTag, *forkCachePolicy, *forkCacheCapacity)
	if err != nil {
		gethlog.Error("building state", "err", err)
		return 2
	}

	fromAddr := types.HexToAddress(*sender)
	startBalance, err := parseWord(*balance)
	if err != nil {
		gethlog.Error("invalid --balance", "err", err)
		return 2
	}
	statedb.CreateAccount(fromAddr)
	statedb.AddBalance(fromAddr, startBalance)

	valueWord, err := parseWord(*value)
	if err != nil {
		gethlog.Error("invalid --value", "err", err)
		return 2
	}
	priceWord, err := parseWord(*gasPrice)
	if err != nil {
		gethlog.Error("invalid --gasprice", "err", err)
		return 2
	}
	calldataBytes, err := decodeHex(*calldata)
	if err != nil {
		gethlog.Error("invalid --calldata", "err", err)
		return 2
	}

	var toAddr *types.Address
	data := codeBytes
	if *to != "" {
		addr := types.HexToAddress(*to)
		statedb.CreateAccount(addr)
		statedb.SetCode(addr, codeBytes)
		toAddr = &addr
		data = calldataBytes
	}

	tx := &types.Transaction{
		Type:     types.LegacyTxType,
		From:     fromAddr,
		To:       toAddr,
		Nonce:    statedb.GetNonce(fromAddr),
		Gas:      *gas,
		Value:    valueWord,
		Data:     data,
		GasPrice: priceWord,
	}
	block := &types.Block{
		Number:   1,
		Time:     0,
		GasLimit: *gas * 2,
		Coinbase: types.HexToAddress("0xc0ffee0000000000000000000000000000c0ffee"),
	}

	var tracer *vm.StructuredLogger
	var logger vm.EVMLogger
	if *trace {
		tracer = vm.NewStructuredLogger(vm.StructuredLoggerConfig{EnableMemory: *traceMemory, EnableStorage: *traceStorage})
		logger = tracer
	}

	result, err := executeWithForkRetries(tx, block, statedb, hf, logger, backend, *forkResponses)
	if err != nil {
		gethlog.Error("execution failed", "err", err)
		return 1
	}

	printResult(result, tracer, *jsonOut)
	if !result.Success {
		return 1
	}
	return 0
}

// executeWithForkRetries calls processor.Execute, and on ErrStateUnavailable
// answers outstanding fork requests from responsesPath (a scripted, offline
// stand-in for an actual JSON-RPC transport) before retrying, up to
// state.ForkRetryBudget times, matching spec §4.3/§5's suspend/retry loop.
func executeWithForkRetries(tx *types.Transaction, block *types.Block, statedb *state.MemoryStateDB, hf vm.Hardfork, tracer vm.EVMLogger, backend *state.ForkBackend, responsesPath string) (*processor.Result, error) {
	var responses map[string]json.RawMessage
	if responsesPath != "" {
		buf, err := os.ReadFile(responsesPath)
		if err != nil {
			return nil, fmt.Errorf("reading --fork.responses: %w", err)
		}
		if err := json.Unmarshal(buf, &responses); err != nil {
			return nil, fmt.Errorf("parsing --fork.responses: %w", err)
		}
	}

	for attempt := 0; attempt < state.ForkRetryBudget; attempt++ {
		result, err := processor.Execute(tx, block, statedb, hf, tracer)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, processor.ErrStateUnavailable) || backend == nil {
			return nil, err
		}

		pending := backend.PendingRequests()
		gethlog.Info("fork backend pending requests", "count", len(pending))
		for _, req := range pending {
			key := fmt.Sprintf("%d", req.ID)
			resp, ok := responses[key]
			if !ok {
				return nil, fmt.Errorf("no scripted response for fork request %d (%s %s)", req.ID, req.Kind, req.Address.Hex())
			}
			if err := backend.Continue(req.ID, resp); err != nil {
				return nil, fmt.Errorf("answering fork request %d: %w", req.ID, err)
			}
		}
	}
	return nil, fmt.Errorf("exceeded fork retry budget (%d)", state.ForkRetryBudget)
}

func buildState(blockTag, cachePolicy string, capacity int) (*state.MemoryStateDB, *state.ForkBackend, error) {
	if blockTag == "" {
		return state.NewMemoryStateDB(), nil, nil
	}
	policy, err := parseCachePolicy(cachePolicy)
	if err != nil {
		return nil, nil, err
	}
	backend := state.NewForkBackend(blockTag, policy, capacity)
	return state.NewForkedMemoryStateDB(backend), backend, nil
}

func parseCachePolicy(name string) (state.CachePolicy, error) {
	switch strings.ToLower(name) {
	case "lru":
		return state.CacheLRU, nil
	case "fifo":
		return state.CacheFIFO, nil
	case "unbounded":
		return state.CacheUnbounded, nil
	default:
		return 0, fmt.Errorf("unknown --fork.cache policy %q", name)
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func parseWord(s string) (*uint256.Int, error) {
	w := new(uint256.Int)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if err := w.SetFromHex(s); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err := w.SetFromDecimal(s); err != nil {
		return nil, err
	}
	return w, nil
}

func printResult(r *processor.Result, tracer *vm.StructuredLogger, asJSON bool) {
	if asJSON {
		out := struct {
			Success        bool   `json:"success"`
			Output         string `json:"output"`
			GasUsed        uint64 `json:"gasUsed"`
			GasRefunded    uint64 `json:"gasRefunded"`
			Logs           int    `json:"logCount"`
			CreatedAddress string `json:"createdAddress,omitempty"`
			Err            string `json:"error,omitempty"`
		}{
			Success:     r.Success,
			Output:      "0x" + hex.EncodeToString(r.Output),
			GasUsed:     r.GasUsed,
			GasRefunded: r.GasRefunded,
			Logs:        len(r.Logs),
		}
		if r.CreatedAddress != nil {
			out.CreatedAddress = r.CreatedAddress.Hex()
		}
		if r.Err != nil {
			out.Err = r.Err.Error()
		}
		buf, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(buf))
	} else {
		fmt.Printf("success:      %v\n", r.Success)
		fmt.Printf("output:       0x%x\n", r.Output)
		fmt.Printf("gas used:     %d\n", r.GasUsed)
		fmt.Printf("gas refunded: %d\n", r.GasRefunded)
		fmt.Printf("logs:         %d\n", len(r.Logs))
		if r.CreatedAddress != nil {
			fmt.Printf("created:      %s\n", r.CreatedAddress.Hex())
		}
		if r.Err != nil {
			fmt.Printf("error:        %v\n", r.Err)
		}
	}

	if tracer != nil {
		if asJSON {
			buf, _ := json.MarshalIndent(tracer.GetResult(), "", "  ")
			fmt.Println(string(buf))
		} else {
			fmt.Println(vm.FormatLogs(tracer.GetLogs()))
		}
	}
}

func setupLogging(verbosity int) {
	var lvl slog.Level
	switch {
	case verbosity <= 1:
		lvl = slog.LevelError
	case verbosity == 2:
		lvl = slog.LevelWarn
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 4:
		lvl = slog.LevelDebug
	default:
		lvl = gethlog.LevelTrace
	}
	gethlog.SetDefault(gethlog.NewLogger(gethlog.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
