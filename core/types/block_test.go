package types

import "testing"

func TestBlockHashNilGetHash(t *testing.T) {
	b := &Block{Number: 10}
	if got := b.Hash(9); got != (Hash{}) {
		t.Fatalf("Hash() with no GetHash should return the zero hash, got %s", got)
	}
}

func TestBlockHashDelegatesToGetHash(t *testing.T) {
	want := HexToHash("0x1234")
	b := &Block{GetHash: func(num uint64) Hash {
		if num == 7 {
			return want
		}
		return Hash{}
	}}
	if got := b.Hash(7); got != want {
		t.Fatalf("Hash(7) = %s, want %s", got, want)
	}
}
