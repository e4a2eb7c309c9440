package vm_test

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/state"
	"github.com/evmlabs/coreevm/core/types"
	"github.com/evmlabs/coreevm/core/vm"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func newEVM(statedb vm.StateDB, rules vm.ForkRules) *vm.EVM {
	return vm.NewEVM(
		vm.BlockContext{GasLimit: 30_000_000, BlockNumber: 1},
		vm.TxContext{GasPrice: uint256.NewInt(1)},
		statedb,
		1,
		rules,
		vm.Config{},
	)
}

// TestArithmeticSequence is spec's literal scenario: PUSH1 5 PUSH1 10 ADD
// PUSH1 3 MUL -> (5+10)*3 = 45, left on top of the stack at RETURN.
func TestArithmeticSequence(t *testing.T) {
	// PUSH1 0x05 PUSH1 0x0A ADD PUSH1 0x03 MUL
	// PUSH1 0x00 MSTORE PUSH1 0x20 PUSH1 0x00 RETURN
	code := []byte{
		0x60, 0x05,
		0x60, 0x0A,
		0x01,
		0x60, 0x03,
		0x02,
		0x60, 0x00,
		0x52,
		0x60, 0x20,
		0x60, 0x00,
		0xf3,
	}
	s := state.NewMemoryStateDB()
	addr := testAddr(1)
	s.SetCode(addr, code)

	evm := newEVM(s, vm.Cancun.Rules())
	out, _, err := evm.Call(testAddr(0xFF), addr, nil, 1_000_000, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	got := new(uint256.Int).SetBytes(out)
	if got.Uint64() != 45 {
		t.Fatalf("result = %s, want 45", got)
	}
}

// TestInvalidJumpIntoPushData is spec's literal scenario: PUSH1 0x04 JUMP
// PUSH2 0x5B00 STOP — the jump target (pc=4) lands on PUSH2's first
// immediate byte, which happens to equal the JUMPDEST opcode (0x5B) but
// must never be treated as a valid jump destination since it is data, not
// an instruction boundary.
func TestInvalidJumpIntoPushData(t *testing.T) {
	code := []byte{0x60, 0x04, 0x56, 0x61, 0x5B, 0x00, 0x00}
	s := state.NewMemoryStateDB()
	addr := testAddr(1)
	s.SetCode(addr, code)

	evm := newEVM(s, vm.Cancun.Rules())
	_, _, err := evm.Call(testAddr(0xFF), addr, nil, 1_000_000, uint256.NewInt(0))
	if err == nil {
		t.Fatalf("expected a jump into PUSH data to fail")
	}
}

// TestSignedDivisionEdgeCases is spec's literal SDIV scenarios:
// SDIV(MIN_INT256, -1) wraps back to MIN_INT256, and SDIV(x, 0) = 0.
func TestSignedDivisionEdgeCases(t *testing.T) {
	minInt256 := new(uint256.Int).Lsh(uint256.NewInt(1), 255) // 2^255, the two's-complement encoding of MIN_INT256
	negOne := new(uint256.Int).Sub(new(uint256.Int), uint256.NewInt(1))

	t.Run("MIN_INT256/-1", func(t *testing.T) {
		code := buildSDIVCode(minInt256, negOne)
		s := state.NewMemoryStateDB()
		addr := testAddr(1)
		s.SetCode(addr, code)
		evm := newEVM(s, vm.Cancun.Rules())
		out, _, err := evm.Call(testAddr(0xFF), addr, nil, 1_000_000, uint256.NewInt(0))
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		got := new(uint256.Int).SetBytes(out)
		if got.Cmp(minInt256) != 0 {
			t.Fatalf("SDIV(MIN_INT256, -1) = %s, want %s (wraps to itself)", got, minInt256)
		}
	})

	t.Run("x/0", func(t *testing.T) {
		code := buildSDIVCode(uint256.NewInt(42), uint256.NewInt(0))
		s := state.NewMemoryStateDB()
		addr := testAddr(1)
		s.SetCode(addr, code)
		evm := newEVM(s, vm.Cancun.Rules())
		out, _, err := evm.Call(testAddr(0xFF), addr, nil, 1_000_000, uint256.NewInt(0))
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		got := new(uint256.Int).SetBytes(out)
		if !got.IsZero() {
			t.Fatalf("SDIV(x, 0) = %s, want 0", got)
		}
	})
}

// buildSDIVCode assembles PUSH32 b PUSH32 a SDIV, MSTORE, RETURN -- i.e.
// computes SDIV(a, b) (SDIV pops the divisor first, so b is pushed first).
func buildSDIVCode(a, b *uint256.Int) []byte {
	code := []byte{0x7f}
	code = append(code, padTo32(b.Bytes())...)
	code = append(code, 0x7f)
	code = append(code, padTo32(a.Bytes())...)
	code = append(code,
		0x05,       // SDIV
		0x60, 0x00, // PUSH1 0
		0x52,       // MSTORE
		0x60, 0x20, // PUSH1 32
		0x60, 0x00, // PUSH1 0
		0xf3, // RETURN
	)
	return code
}

func padTo32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func TestGasConsumedNeverExceedsProvided(t *testing.T) {
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00} // PUSH1 1 PUSH1 2 ADD STOP
	s := state.NewMemoryStateDB()
	addr := testAddr(1)
	s.SetCode(addr, code)

	evm := newEVM(s, vm.Cancun.Rules())
	const gasProvided = 100_000
	_, leftOver, err := evm.Call(testAddr(0xFF), addr, nil, gasProvided, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if leftOver > gasProvided {
		t.Fatalf("leftover gas %d exceeds provided gas %d", leftOver, gasProvided)
	}
}
