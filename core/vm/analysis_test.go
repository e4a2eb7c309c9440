package vm

import "testing"

func TestAnalyzeBlocksSplitsOnJumpdest(t *testing.T) {
	// PUSH1 0x03 JUMP JUMPDEST STOP
	code := []byte{0x60, 0x03, 0x56, 0x5b, 0x00}
	jt := SelectJumpTable(Cancun.Rules())

	blocks, jumpdests := AnalyzeBlocks(code, jt)
	if !jumpdests[3] {
		t.Fatalf("pc=3 should be a valid jumpdest")
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2 (split at the JUMPDEST)", len(blocks))
	}
	if blocks[0].BeginPC != 0 || blocks[1].BeginPC != 3 {
		t.Fatalf("block boundaries = %d, %d, want 0, 3", blocks[0].BeginPC, blocks[1].BeginPC)
	}
}

func TestAnalyzeBlocksHexMatchesOpcodesAndPushImmediate(t *testing.T) {
	// PUSH1 0x2a ADD STOP
	code := []byte{0x60, 0x2a, 0x01, 0x00}
	jt := SelectJumpTable(Cancun.Rules())

	blocks, _ := AnalyzeBlocks(code, jt)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	block := blocks[0]
	if len(block.Hex) != len(block.Opcodes) {
		t.Fatalf("Hex has %d entries, Opcodes has %d, want equal", len(block.Hex), len(block.Opcodes))
	}
	if want := "PUSH1 0x2a"; block.Hex[0] != want {
		t.Fatalf("Hex[0] = %q, want %q", block.Hex[0], want)
	}
	if want := "ADD"; block.Hex[1] != want {
		t.Fatalf("Hex[1] = %q, want %q", block.Hex[1], want)
	}
}

func TestAnalyzeBlocksSkipsPushDataWhenFindingJumpdests(t *testing.T) {
	// PUSH2 0x5b00 STOP -- both immediate bytes (0x5b, 0x00) are push data;
	// the first (0x5b) coincides with JUMPDEST and must not be recorded
	// as a valid jump target since it sits inside PUSH2's immediate window.
	code := []byte{0x61, 0x5b, 0x00, 0x00}
	jt := SelectJumpTable(Cancun.Rules())

	_, jumpdests := AnalyzeBlocks(code, jt)
	if jumpdests[1] {
		t.Fatalf("pc=1 is push data, must not be recorded as a jumpdest")
	}
}
