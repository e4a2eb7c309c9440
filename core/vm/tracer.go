package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// EVMLogger is the base hook set every tracer must implement: one call
// around the whole top-level execution, and one per opcode step.
type EVMLogger interface {
	// CaptureStart is called once, at the beginning of a top-level call.
	CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int)
	// CaptureState is called before each opcode executes.
	CaptureState(pc uint64, op OpCode, gas, cost uint64, stack *Stack, memory *Memory, depth int, err error)
	// CaptureEnd is called once, at the end of a top-level call.
	CaptureEnd(output []byte, gasUsed uint64, err error)
}

// CallTracer is an optional extension EVMLogger implementations may also
// satisfy to receive nested CALL/CALLCODE/DELEGATECALL/STATICCALL events.
type CallTracer interface {
	CaptureCallEnter(kind OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int, depth int)
	CaptureCallExit(output []byte, gasUsed uint64, err error, depth int)
}

// CreateTracer is an optional extension for CREATE/CREATE2 events.
type CreateTracer interface {
	CaptureCreateEnter(kind OpCode, from types.Address, salt *uint256.Int, initCode []byte, gas uint64, value *uint256.Int, depth int)
	CaptureCreateExit(addr types.Address, code []byte, err error, depth int)
}

// StorageTracer is an optional extension for SLOAD/SSTORE events.
type StorageTracer interface {
	CaptureStorageRead(addr types.Address, slot *uint256.Int, value *uint256.Int, wasWarm bool, depth int)
	CaptureStorageWrite(addr types.Address, slot, oldValue, newValue *uint256.Int, wasWarm bool, depth int)
}

// LogTracer is an optional extension for LOG0..LOG4 events.
type LogTracer interface {
	CaptureLog(l *types.Log)
}

// EventKind identifies one of the typed trace events spec'd for the tracer
// subscription's push channel.
type EventKind int

const (
	EventTransactionStart EventKind = iota
	EventTransactionEnd
	EventCallEnter
	EventCallExit
	EventCreateEnter
	EventCreateExit
	EventVmStep
	EventStorageRead
	EventStorageWrite
	EventLogEmitted
	EventRevert
	EventInvalidOpcode
	EventOutOfGas
	EventStackError
	EventMemoryError
)

func (k EventKind) String() string {
	switch k {
	case EventTransactionStart:
		return "TransactionStart"
	case EventTransactionEnd:
		return "TransactionEnd"
	case EventCallEnter:
		return "CallEnter"
	case EventCallExit:
		return "CallExit"
	case EventCreateEnter:
		return "CreateEnter"
	case EventCreateExit:
		return "CreateExit"
	case EventVmStep:
		return "VmStep"
	case EventStorageRead:
		return "StorageRead"
	case EventStorageWrite:
		return "StorageWrite"
	case EventLogEmitted:
		return "LogEmitted"
	case EventRevert:
		return "Revert"
	case EventInvalidOpcode:
		return "InvalidOpcode"
	case EventOutOfGas:
		return "OutOfGas"
	case EventStackError:
		return "StackError"
	case EventMemoryError:
		return "MemoryError"
	default:
		return "Unknown"
	}
}

// Severity is the event's log level, independent of its kind.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
)

// TraceEvent is the tracer subscription's wire shape: one struct covers
// every EventKind, with only the fields relevant to that kind populated.
type TraceEvent struct {
	Kind     EventKind
	Severity Severity
	Depth    int

	// VmStep
	PC           uint64
	Op           OpCode
	GasRemaining uint64
	GasCost      uint64
	Stack        []string
	MemSize      int
	ReturnData   []byte

	// TransactionStart/End, CallEnter/Exit, CreateEnter/Exit
	From, To       types.Address
	Value          *uint256.Int
	Input, Output  []byte
	Gas            uint64
	GasUsed        uint64
	GasRefunded    uint64
	Success        bool
	Err            error
	CreatedAddress types.Address
	Salt           *uint256.Int
	Nonce          uint64
	ChainID        uint64

	// StorageRead/Write
	Address  types.Address
	Slot     *uint256.Int
	OldValue *uint256.Int
	NewValue *uint256.Int
	WasWarm  bool

	// LogEmitted
	Topics []types.Hash
	Data   []byte
	Index  uint
}

// EventFilter restricts a TraceEvent stream by depth, address, opcode, and
// kind. A nil/empty set for any dimension means "allow all" on that axis.
type EventFilter struct {
	Depths    map[int]bool
	Addresses map[types.Address]bool
	Opcodes   map[OpCode]bool
	Kinds     map[EventKind]bool
}

// Allow reports whether ev passes every configured dimension of the filter.
func (f *EventFilter) Allow(ev TraceEvent) bool {
	if f == nil {
		return true
	}
	if len(f.Depths) > 0 && !f.Depths[ev.Depth] {
		return false
	}
	if len(f.Kinds) > 0 && !f.Kinds[ev.Kind] {
		return false
	}
	if len(f.Opcodes) > 0 && ev.Kind == EventVmStep && !f.Opcodes[ev.Op] {
		return false
	}
	if len(f.Addresses) > 0 {
		switch ev.Kind {
		case EventCallEnter, EventCallExit, EventCreateEnter, EventCreateExit:
			if !f.Addresses[ev.From] && !f.Addresses[ev.To] {
				return false
			}
		case EventStorageRead, EventStorageWrite, EventLogEmitted:
			if !f.Addresses[ev.Address] {
				return false
			}
		}
	}
	return true
}

// EventTracer implements EVMLogger plus the CallTracer/CreateTracer/
// StorageTracer/LogTracer extensions, collecting every event that passes
// its Filter into an in-memory slice — the tracer subscription's push
// channel made concrete for a non-streaming embedder.
type EventTracer struct {
	Filter *EventFilter
	events []TraceEvent
}

// NewEventTracer returns a tracer collecting every event that passes filter
// (pass nil to collect everything).
func NewEventTracer(filter *EventFilter) *EventTracer {
	return &EventTracer{Filter: filter}
}

func (t *EventTracer) emit(ev TraceEvent) {
	if t.Filter.Allow(ev) {
		t.events = append(t.events, ev)
	}
}

// Events returns every collected event, in emission order.
func (t *EventTracer) Events() []TraceEvent { return t.events }

// Reset clears all collected events so the tracer can be reused.
func (t *EventTracer) Reset() { t.events = nil }

func (t *EventTracer) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int) {
	t.events = t.events[:0]
	t.emit(TraceEvent{Kind: EventTransactionStart, Severity: SeverityInfo, From: from, To: to, Input: input, Gas: gas, Value: value})
}

func (t *EventTracer) CaptureState(pc uint64, op OpCode, gas, cost uint64, stack *Stack, memory *Memory, depth int, err error) {
	ev := TraceEvent{
		Kind: EventVmStep, Severity: SeverityTrace, Depth: depth,
		PC: pc, Op: op, GasRemaining: gas, GasCost: cost, MemSize: memory.Len(),
		Stack: hexStack(stack),
	}
	if err != nil {
		ev.Err = err
		ev.Kind, ev.Severity = classifyStepError(err)
	}
	t.emit(ev)
}

func (t *EventTracer) CaptureEnd(output []byte, gasUsed uint64, err error) {
	t.emit(TraceEvent{Kind: EventTransactionEnd, Severity: SeverityInfo, Output: output, GasUsed: gasUsed, Success: err == nil, Err: err})
}

func (t *EventTracer) CaptureCallEnter(kind OpCode, from, to types.Address, input []byte, gas uint64, value *uint256.Int, depth int) {
	t.emit(TraceEvent{Kind: EventCallEnter, Severity: SeverityDebug, Depth: depth, Op: kind, From: from, To: to, Input: input, Gas: gas, Value: value})
}

func (t *EventTracer) CaptureCallExit(output []byte, gasUsed uint64, err error, depth int) {
	t.emit(TraceEvent{Kind: EventCallExit, Severity: SeverityDebug, Depth: depth, Output: output, GasUsed: gasUsed, Success: err == nil, Err: err})
}

func (t *EventTracer) CaptureCreateEnter(kind OpCode, from types.Address, salt *uint256.Int, initCode []byte, gas uint64, value *uint256.Int, depth int) {
	t.emit(TraceEvent{Kind: EventCreateEnter, Severity: SeverityDebug, Depth: depth, Op: kind, From: from, Salt: salt, Input: initCode, Gas: gas, Value: value})
}

func (t *EventTracer) CaptureCreateExit(addr types.Address, code []byte, err error, depth int) {
	t.emit(TraceEvent{Kind: EventCreateExit, Severity: SeverityDebug, Depth: depth, CreatedAddress: addr, Output: code, Success: err == nil, Err: err})
}

func (t *EventTracer) CaptureStorageRead(addr types.Address, slot *uint256.Int, value *uint256.Int, wasWarm bool, depth int) {
	t.emit(TraceEvent{Kind: EventStorageRead, Severity: SeverityTrace, Depth: depth, Address: addr, Slot: slot, NewValue: value, WasWarm: wasWarm})
}

func (t *EventTracer) CaptureStorageWrite(addr types.Address, slot, oldValue, newValue *uint256.Int, wasWarm bool, depth int) {
	t.emit(TraceEvent{Kind: EventStorageWrite, Severity: SeverityDebug, Depth: depth, Address: addr, Slot: slot, OldValue: oldValue, NewValue: newValue, WasWarm: wasWarm})
}

func (t *EventTracer) CaptureLog(l *types.Log) {
	t.emit(TraceEvent{Kind: EventLogEmitted, Severity: SeverityInfo, Depth: l.Depth, Address: l.Address, Topics: l.Topics, Data: l.Data, Index: l.Index})
}

func classifyStepError(err error) (EventKind, Severity) {
	switch err {
	case ErrExecutionReverted:
		return EventRevert, SeverityWarn
	case ErrInvalidOpcode:
		return EventInvalidOpcode, SeverityError
	case ErrOutOfGas:
		return EventOutOfGas, SeverityError
	case ErrStackOverflow, ErrStackUnderflow:
		return EventStackError, SeverityError
	case ErrOutOfBounds:
		return EventMemoryError, SeverityError
	default:
		return EventVmStep, SeverityError
	}
}

func hexStack(stack *Stack) []string {
	data := stack.Data()
	out := make([]string, len(data))
	for i, v := range data {
		out[i] = types.FormatWordHex(v.Bytes())
	}
	return out
}

// StructLogTracer is a minimal EVMLogger that collects one entry per step,
// the baseline most external debuggers consume before reaching for
// EventTracer's richer stream.
type StructLogTracer struct {
	Logs    []StructLogEntry
	output  []byte
	err     error
	gasUsed uint64
}

// StructLogEntry is a single recorded opcode step.
type StructLogEntry struct {
	Pc      uint64
	Op      OpCode
	Gas     uint64
	GasCost uint64
	Depth   int
	Stack   []*uint256.Int
	MemSize int
	Err     error
}

// NewStructLogTracer returns a new, empty StructLogTracer.
func NewStructLogTracer() *StructLogTracer {
	return &StructLogTracer{}
}

func (t *StructLogTracer) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *uint256.Int) {
	t.Logs = t.Logs[:0]
	t.output, t.err, t.gasUsed = nil, nil, 0
}

func (t *StructLogTracer) CaptureState(pc uint64, op OpCode, gas, cost uint64, stack *Stack, memory *Memory, depth int, err error) {
	data := stack.Data()
	stackCopy := make([]*uint256.Int, len(data))
	for i, v := range data {
		stackCopy[i] = new(uint256.Int).Set(v)
	}
	t.Logs = append(t.Logs, StructLogEntry{
		Pc: pc, Op: op, Gas: gas, GasCost: cost, Depth: depth,
		Stack: stackCopy, MemSize: memory.Len(), Err: err,
	})
}

func (t *StructLogTracer) CaptureEnd(output []byte, gasUsed uint64, err error) {
	t.output, t.gasUsed, t.err = output, gasUsed, err
}

// Output returns the return data from the traced execution.
func (t *StructLogTracer) Output() []byte { return t.output }

// GasUsed returns the total gas consumed by the traced execution.
func (t *StructLogTracer) GasUsed() uint64 { return t.gasUsed }

// Error returns the error from the traced execution, if any.
func (t *StructLogTracer) Error() error { return t.err }
