//go:build !windows

package mem

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// NearRange is how far from the requested address an allocation may land and
// still be considered reachable by a rel32 operand with room to spare.
const NearRange = 1 << 30

// ErrNoNearMemory means no executable page could be mapped within NearRange
// of the requested address.
var ErrNoNearMemory = errors.New("no executable memory reachable from target")

// Block is one page-granular executable mapping owned by a single hook.
type Block struct {
	addr uintptr
	size uintptr
}

// Addr returns the first byte of the mapping.
func (b *Block) Addr() uintptr { return b.addr }

// Bytes returns the live view of the whole mapping.
func (b *Block) Bytes() []byte { return Slice(b.addr, int(b.size)) }

// Free unmaps the block. The block must not be used afterwards.
func (b *Block) Free() error {
	return unix.MunmapPtr(unsafe.Pointer(b.addr), b.size)
}

// AllocNear maps size bytes of anonymous read/write/execute memory within
// NearRange of addr. The kernel treats the hint as advisory, so the result
// is checked and the scan continues outward until a reachable page comes
// back or the range is exhausted.
func AllocNear(addr uintptr, size int) (*Block, error) {
	length := (uintptr(size) + pageSize - 1) &^ (pageSize - 1)

	const step = 1 << 24
	base := PageStart(addr)
	for off := uintptr(step); off < NearRange; off += step {
		hints := []uintptr{base + off}
		if base > off {
			hints = append(hints, base-off)
		}
		for _, hint := range hints {
			got, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), length,
				unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
				unix.MAP_PRIVATE|unix.MAP_ANON)
			if err != nil {
				continue
			}
			b := &Block{addr: uintptr(got), size: length}
			if distance(b.addr, addr) < NearRange {
				return b, nil
			}
			// The kernel ignored the hint; give the page back and move on.
			_ = b.Free()
		}
	}
	return nil, errors.Wrapf(ErrNoNearMemory, "within %#x of %#x", uintptr(NearRange), addr)
}

func distance(a, b uintptr) uintptr {
	if a > b {
		return a - b
	}
	return b - a
}
