package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	HashLength    = 32
	AddressLength = 20
)

// Hash represents a 32-byte Keccak256 hash.
type Hash [HashLength]byte

// Address represents the 20-byte address of an Ethereum account.
type Address [AddressLength]byte

// BytesToHash converts b to a Hash, left-padding if shorter than 32 bytes
// and truncating from the left if longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a "0x"-prefixed (or bare) hex string to a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Bytes returns the 32-byte slice backing the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the "0x"-prefixed hex encoding of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is all-zero.
func (h Hash) IsZero() bool { return h == (Hash{}) }

// BytesToAddress converts b to an Address, left-padding if shorter than
// 20 bytes and truncating from the left if longer.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a "0x"-prefixed (or bare) hex string to an Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

// SetBytes sets the address from a byte slice, left-padding if necessary.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Bytes returns the 20-byte slice backing the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the "0x"-prefixed hex encoding of the address.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the reserved "no account" zero value.
func (a Address) IsZero() bool { return a == (Address{}) }

func fromHex(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// FormatWordHex renders a 32-byte big-endian word the way struct-log JSON
// traces expect ("0x…", no leading zero padding beyond what the value needs).
func FormatWordHex(b []byte) string {
	trimmed := strings.TrimLeft(hex.EncodeToString(b), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return fmt.Sprintf("0x%s", trimmed)
}
