package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmlabs/coreevm/core/types"
)

const stackLimit = 1024

// Stack is the EVM operand stack: at most 1024 256-bit words.
type Stack struct {
	data []*types.Word
}

// NewStack returns a new empty stack.
func NewStack() *Stack {
	return &Stack{data: make([]*types.Word, 0, 16)}
}

// Push pushes a value onto the stack.
func (st *Stack) Push(val *types.Word) error {
	if len(st.data) >= stackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, val)
	return nil
}

// Pop removes and returns the top element.
func (st *Stack) Pop() *types.Word {
	ret := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return ret
}

// Peek returns the top element without removing it.
func (st *Stack) Peek() *types.Word {
	return st.data[len(st.data)-1]
}

// Back returns the nth element from the top (0-indexed: 0 = top).
func (st *Stack) Back(n int) *types.Word {
	return st.data[len(st.data)-1-n]
}

// Swap swaps the top element with the nth element from the top (1-indexed,
// matching SWAP1..SWAP16: n=1 swaps top with the second element).
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the nth element from the top and pushes it (1-indexed,
// matching DUP1..DUP16: n=1 duplicates the top element).
func (st *Stack) Dup(n int) {
	val := new(uint256.Int).Set(st.data[len(st.data)-n])
	st.data = append(st.data, val)
}

// Len returns the number of items on the stack.
func (st *Stack) Len() int {
	return len(st.data)
}

// Require returns ErrStackUnderflow if the stack holds fewer than n items.
func (st *Stack) Require(n int) error {
	if len(st.data) < n {
		return ErrStackUnderflow
	}
	return nil
}

// RequireHeadroom returns ErrStackOverflow if pushing n more items would
// exceed the 1024-item limit.
func (st *Stack) RequireHeadroom(n int) error {
	if len(st.data)+n > stackLimit {
		return ErrStackOverflow
	}
	return nil
}

// Data returns the underlying stack slice (bottom to top).
func (st *Stack) Data() []*types.Word {
	return st.data
}
