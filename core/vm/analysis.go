package vm

import "github.com/evmlabs/coreevm/core/types"

// Block is a maximal run of code between JUMPDEST/terminator boundaries:
// a basic block in the control-flow sense, used by disassemblers and
// static-gas estimators that want to reason about code without stepping
// the interpreter.
type Block struct {
	BeginPC       uint64
	Opcodes       []OpCode
	PCs           []uint64
	Hex           []string          // one entry per instruction: opcode name plus hex-rendered PUSH immediate, if any
	PushData      map[uint64][]byte // pc -> immediate bytes, for PUSH ops
	StaticGasCost uint64            // sum of constantGas for every opcode in the block
}

// isTerminator reports whether op ends a basic block: it either halts
// (STOP/RETURN/REVERT/INVALID/SELFDESTRUCT) or transfers control
// unconditionally/conditionally (JUMP/JUMPI).
func isTerminator(op OpCode) bool {
	switch op {
	case STOP, RETURN, REVERT, INVALID, SELFDESTRUCT, JUMP, JUMPI:
		return true
	default:
		return false
	}
}

// AnalyzeBlocks performs a single forward pass over code, skipping PUSH
// immediate-data windows (so jumpdest bytes inside push data are never
// mistaken for block boundaries), and returns the ordered list of basic
// blocks together with the set of valid JUMPDEST positions.
func AnalyzeBlocks(code []byte, jt JumpTable) ([]Block, map[uint64]bool) {
	jumpdests := make(map[uint64]bool)
	var blocks []Block
	var cur *Block

	startBlock := func(pc uint64) {
		blocks = append(blocks, Block{BeginPC: pc, PushData: map[uint64][]byte{}})
		cur = &blocks[len(blocks)-1]
	}
	startBlock(0)

	for i := uint64(0); i < uint64(len(code)); i++ {
		op := OpCode(code[i])
		pc := i

		if op == JUMPDEST {
			jumpdests[pc] = true
			if len(cur.Opcodes) > 0 {
				startBlock(pc)
			}
		}

		cur.Opcodes = append(cur.Opcodes, op)
		cur.PCs = append(cur.PCs, pc)
		if o := jt[op]; o != nil {
			cur.StaticGasCost += o.constantGas
		}

		if op.IsPush() {
			size := op.PushSize()
			end := i + 1 + uint64(size)
			if end > uint64(len(code)) {
				end = uint64(len(code))
			}
			immediate := code[i+1 : end]
			cur.PushData[pc] = immediate
			cur.Hex = append(cur.Hex, op.String()+" "+types.FormatWordHex(immediate))
			i += uint64(size)
			continue
		}
		cur.Hex = append(cur.Hex, op.String())

		if isTerminator(op) && i+1 < uint64(len(code)) {
			startBlock(i + 1)
		}
	}

	return blocks, jumpdests
}

// Disassemble renders code as a flat, human-readable listing: one line per
// opcode ("MNEMONIC immediate"), PUSH immediates rendered as hex.
func Disassemble(code []byte) []string {
	var out []string
	for i := uint64(0); i < uint64(len(code)); i++ {
		op := OpCode(code[i])
		if op.IsPush() {
			size := op.PushSize()
			end := i + 1 + uint64(size)
			if end > uint64(len(code)) {
				end = uint64(len(code))
			}
			out = append(out, op.String()+" "+types.FormatWordHex(code[i+1:end]))
			i += uint64(size)
			continue
		}
		out = append(out, op.String())
	}
	return out
}
