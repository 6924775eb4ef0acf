// Package mem provides the raw-memory primitives the hooking engine is built
// on: byte views over arbitrary addresses, page protection flips, and
// executable allocations placed near a given address. Everything unsafe
// lives here so the layers above can work with plain addresses and errors.
package mem

import (
	"unsafe"
)

// Slice returns a byte view over length bytes of memory starting at addr.
// The view aliases live memory; the caller owns the race.
func Slice(addr uintptr, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}

// Read copies length bytes at addr into fresh memory.
func Read(addr uintptr, length int) []byte {
	out := make([]byte, length)
	copy(out, Slice(addr, length))
	return out
}
