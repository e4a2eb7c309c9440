package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

// Contract is the per-call execution frame: code, gas, and the caller
// context a single Run() invocation operates on.
type Contract struct {
	CallerAddress types.Address
	Address       types.Address
	Code          []byte
	CodeHash      types.Hash
	Input         []byte
	Gas           uint64
	Value         *uint256.Int

	// IsStatic marks a STATICCALL frame: SSTORE, LOG*, CREATE*, and
	// SELFDESTRUCT must fail with ErrWriteProtection.
	IsStatic bool
	// Depth is this frame's call-stack depth (0 for the top-level call).
	Depth int

	jumpdests map[uint64]bool // cached JUMPDEST analysis
}

// NewContract creates a new execution frame.
func NewContract(caller, addr types.Address, value *uint256.Int, gas uint64, depth int) *Contract {
	if value == nil {
		value = new(uint256.Int)
	}
	return &Contract{
		CallerAddress: caller,
		Address:       addr,
		Value:         value,
		Gas:           gas,
		Depth:         depth,
	}
}

// GetOp returns the opcode at position n in the contract's code, or STOP
// past the end (the Yellow Paper's implicit-STOP convention).
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas attempts to consume the given gas, returning false (without
// mutating Gas) if insufficient gas remains.
func (c *Contract) UseGas(gas uint64) bool {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}

// RefundGas adds gas back to the frame, used when a CALL-family child
// returns unused gas to its parent.
func (c *Contract) RefundGas(gas uint64) {
	c.Gas += gas
}

// SetCallCode installs the code to execute for a CALL-type frame.
func (c *Contract) SetCallCode(addr *types.Address, hash types.Hash, code []byte) {
	c.Code = code
	c.CodeHash = hash
	if addr != nil {
		c.Address = *addr
	}
}

// ValidJumpdest reports whether dest is a JUMPDEST opcode that does not
// fall inside a PUSH immediate's data window.
func (c *Contract) ValidJumpdest(dest *uint256.Int) bool {
	if !dest.IsUint64() {
		return false
	}
	udest := dest.Uint64()
	if udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.isCode(udest)
}

// isCode reports whether pos is an opcode byte (not PUSH immediate data),
// lazily computing and caching the jumpdest analysis on first use.
func (c *Contract) isCode(pos uint64) bool {
	if c.jumpdests == nil {
		c.jumpdests = make(map[uint64]bool)
		c.analyzeJumpdests()
	}
	return c.jumpdests[pos]
}

// analyzeJumpdests performs a single forward pass over the code, skipping
// PUSH immediate bytes, and records every JUMPDEST position that is a real
// opcode boundary.
func (c *Contract) analyzeJumpdests() {
	for i := uint64(0); i < uint64(len(c.Code)); i++ {
		op := OpCode(c.Code[i])
		if op == JUMPDEST {
			c.jumpdests[i] = true
		}
		if op.IsPush() {
			i += uint64(op.PushSize())
		}
	}
}
