package vm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// StructuredLog is one step of a debug_traceTransaction-compatible struct
// log: field names and the hex stack encoding must stay bit-exact with
// external debug tooling.
type StructuredLog struct {
	PC      uint64                    `json:"pc"`
	Op      string                    `json:"op"`
	Gas     uint64                    `json:"gas"`
	GasCost uint64                    `json:"gasCost"`
	Depth   int                       `json:"depth"`
	Stack   []string                  `json:"stack"`
	Memory  string                    `json:"memory,omitempty"`
	MemSize int                       `json:"memSize"`
	Storage map[string]string         `json:"storage,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// StructuredLoggerConfig controls which optional data StructuredLogger
// captures at each step; memory and storage snapshots are expensive, so
// both default off.
type StructuredLoggerConfig struct {
	EnableMemory  bool
	EnableStorage bool
}

// ExecutionResult summarises a traced top-level execution in the
// `{"structLogs": [...]}` wire shape external debug tooling expects.
type ExecutionResult struct {
	Gas         uint64          `json:"gas"`
	Failed      bool            `json:"failed"`
	ReturnValue string          `json:"returnValue"`
	StructLogs  []StructuredLog `json:"structLogs"`
}

// StructuredLogger implements EVMLogger, collecting JSON-RPC-compatible
// struct logs with optional memory/storage capture.
type StructuredLogger struct {
	config  StructuredLoggerConfig
	logs    []StructuredLog
	output  []byte
	err     error
	gasUsed uint64
	storage map[types.Address]map[string]string
}

// NewStructuredLogger returns a StructuredLogger configured by cfg.
func NewStructuredLogger(cfg StructuredLoggerConfig) *StructuredLogger {
	return &StructuredLogger{config: cfg, storage: make(map[types.Address]map[string]string)}
}

func (l *StructuredLogger) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int) {
	l.logs = l.logs[:0]
	l.output, l.err, l.gasUsed = nil, nil, 0
	l.storage = make(map[types.Address]map[string]string)
}

func (l *StructuredLogger) CaptureState(pc uint64, op OpCode, gas, cost uint64, stack *Stack, memory *Memory, depth int, err error) {
	entry := StructuredLog{
		PC: pc, Op: op.String(), Gas: gas, GasCost: cost, Depth: depth, MemSize: memory.Len(),
	}
	entry.Stack = hexStack(stack)

	if l.config.EnableMemory && memory.Len() > 0 {
		entry.Memory = fmt.Sprintf("0x%x", memory.Data())
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.logs = append(l.logs, entry)
}

func (l *StructuredLogger) CaptureEnd(output []byte, gasUsed uint64, err error) {
	l.output, l.gasUsed, l.err = output, gasUsed, err
}

// CaptureStorageWrite implements StorageTracer, tracking the running
// per-address storage snapshot the struct log attaches when EnableStorage
// is set.
func (l *StructuredLogger) CaptureStorageWrite(addr types.Address, slot, oldValue, newValue *uint256.Int, wasWarm bool, depth int) {
	if !l.config.EnableStorage {
		return
	}
	if l.storage[addr] == nil {
		l.storage[addr] = make(map[string]string)
	}
	l.storage[addr][types.FormatWordHex(slot.Bytes())] = types.FormatWordHex(newValue.Bytes())
	if len(l.logs) > 0 {
		snap := make(map[string]string, len(l.storage[addr]))
		for k, v := range l.storage[addr] {
			snap[k] = v
		}
		l.logs[len(l.logs)-1].Storage = snap
	}
}

// GetLogs returns the captured struct logs.
func (l *StructuredLogger) GetLogs() []StructuredLog { return l.logs }

// GetResult returns the JSON-RPC-compatible execution result.
func (l *StructuredLogger) GetResult() *ExecutionResult {
	return &ExecutionResult{
		Gas:         l.gasUsed,
		Failed:      l.err != nil,
		ReturnValue: fmt.Sprintf("0x%x", l.output),
		StructLogs:  l.logs,
	}
}

// FormatLogs renders logs as one human-readable line per step.
func FormatLogs(logs []StructuredLog) string {
	var b strings.Builder
	for i, log := range logs {
		fmt.Fprintf(&b, "%-4d  %-14s  gas=%-8d cost=%-6d depth=%d", log.PC, log.Op, log.Gas, log.GasCost, log.Depth)
		if len(log.Stack) > 0 {
			b.WriteString("  stack=[" + strings.Join(log.Stack, ", ") + "]")
		}
		if log.Error != "" {
			fmt.Fprintf(&b, "  err=%q", log.Error)
		}
		if i < len(logs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
