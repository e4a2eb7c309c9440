package vm

import "github.com/holiman/uint256"

// Memory implements the EVM's byte-addressable, word-aligned-expansion
// linear memory.
type Memory struct {
	store       []byte
	lastGasCost uint64
}

// NewMemory returns a new, empty Memory instance.
func NewMemory() *Memory {
	return &Memory{}
}

// Set copies value into memory at the given offset.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes a 32-byte word at the given offset, big-endian and
// zero-padded.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	b := val.Bytes32()
	copy(m.store[offset:offset+32], b[:])
}

// Resize grows memory to the given size (already rounded up to a multiple
// of 32 bytes by the caller's gas accounting).
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Copy implements MCOPY (EIP-5656): an overlap-safe in-memory copy.
func (m *Memory) Copy(dst, src, size uint64) {
	if size == 0 {
		return
	}
	copy(m.store[dst:dst+size], m.store[src:src+size])
}

// Get returns a copy of the memory contents at [offset, offset+size).
// Reads past the end of the backing store return zero bytes rather than
// panicking, matching the post-gas-accounting invariant that memory has
// already been expanded to cover any in-bounds access.
func (m *Memory) Get(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	if offset < int64(len(m.store)) {
		copy(out, m.store[offset:])
	}
	return out
}

// GetPtr returns a direct slice reference to memory at [offset, offset+size).
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Len returns the current length of memory in bytes.
func (m *Memory) Len() int {
	return len(m.store)
}

// Data returns the full backing slice.
func (m *Memory) Data() []byte {
	return m.store
}
