package detourgo

import (
	"github.com/pkg/errors"

	"github.com/fengyoulin/detourgo/internal/mem"
	"github.com/fengyoulin/detourgo/internal/stw"
)

// codeWrite is one byte flip at a live code address. expect holds the bytes
// that must currently be present; a mismatch aborts before anything is
// touched, and on batch rollback expect is what gets written back.
type codeWrite struct {
	addr   uintptr
	data   []byte
	expect []byte
}

// applyWrites performs a set of code writes as a single atomic event: the
// world is frozen once, every write is verified, applied and re-verified,
// and on a mid-batch failure the writes already applied are rolled back
// before the world resumes. No partially-patched state is ever visible.
func applyWrites(writes []codeWrite) error {
	world, err := stw.Freeze()
	if err != nil {
		return errors.WithMessagef(ErrThreadOperation, "%v", err)
	}
	defer world.Thaw()

	for i, w := range writes {
		if err := writeCode(w); err != nil {
			for j := i - 1; j >= 0; j-- {
				// Restoring bytes that were just verified present; a failure
				// here means the address space itself is broken.
				_ = writeCode(codeWrite{addr: writes[j].addr, data: writes[j].expect})
			}
			return err
		}
	}
	return nil
}

// reprotect restores read/execute protection after a write. Swappable so
// tests can exercise the failure path.
var reprotect = mem.Reprotect

func writeCode(w codeWrite) error {
	if !equalLive(w.addr, w.expect) {
		return errors.WithMessagef(ErrThreadOperation, "live bytes at %#x differ from recorded state", w.addr)
	}
	if err := mem.Protect(w.addr, uintptr(len(w.data))); err != nil {
		return errors.WithMessagef(ErrMemoryProtect, "unprotect %#x: %v", w.addr, err)
	}
	copy(mem.Slice(w.addr, len(w.data)), w.data)
	if err := reprotect(w.addr, uintptr(len(w.data))); err != nil {
		// The page is still writable here; put the previous bytes back so the
		// failure never leaves the new code live and unrecorded.
		if len(w.expect) == 0 {
			return errors.WithMessagef(ErrThreadOperation, "reprotect %#x: %v", w.addr, err)
		}
		copy(mem.Slice(w.addr, len(w.expect)), w.expect)
		if !equalLive(w.addr, w.expect) {
			return errors.WithMessagef(ErrThreadOperation, "reprotect %#x: %v", w.addr, err)
		}
		return errors.WithMessagef(ErrMemoryProtect, "reprotect %#x: %v", w.addr, err)
	}
	if !equalLive(w.addr, w.data) {
		return errors.WithMessagef(ErrThreadOperation, "patch verification failed at %#x", w.addr)
	}
	return nil
}

// equalLive compares live memory against want without allocating; the world
// may be stopped when this runs.
func equalLive(addr uintptr, want []byte) bool {
	live := mem.Slice(addr, len(want))
	for i := range want {
		if live[i] != want[i] {
			return false
		}
	}
	return true
}
