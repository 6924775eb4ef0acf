//go:build !windows

package mem

import (
	"golang.org/x/sys/unix"
)

var pageSize = uintptr(unix.Getpagesize())

// PageStart rounds addr down to its page boundary.
func PageStart(addr uintptr) uintptr {
	return addr &^ (pageSize - 1)
}

// Protect makes every page overlapping [addr, addr+size) writable while
// keeping it readable and executable.
func Protect(addr, size uintptr) error {
	return protectRange(addr, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC)
}

// Reprotect restores read/execute protection on every page overlapping
// [addr, addr+size).
func Reprotect(addr, size uintptr) error {
	return protectRange(addr, size, unix.PROT_READ|unix.PROT_EXEC)
}

func protectRange(addr, size uintptr, prot int) error {
	start := PageStart(addr)
	length := pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	for i := uintptr(0); i < length; i += pageSize {
		if err := unix.Mprotect(Slice(start+i, int(pageSize)), prot); err != nil {
			return err
		}
	}
	return nil
}
