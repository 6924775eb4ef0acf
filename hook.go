package detourgo

import (
	"github.com/fengyoulin/detourgo/internal/mem"
)

// queuedState is a pending transition recorded by QueueEnable/QueueDisable.
type queuedState int

const (
	queueNone queuedState = iota
	queueEnable
	queueDisable
)

// Hook is one installed hook. It is owned by the registry that created it
// and only ever mutated under that registry's lock.
type Hook struct {
	target uintptr
	detour uintptr

	// the exact bytes overwritten by the patch, for restore
	original []byte
	// the patch bytes written on enable
	patch []byte
	// executable block holding the relay and the relocated prologue
	block *mem.Block
	// entry point used to call the unhooked original
	trampoline uintptr

	enabled  bool
	queued   queuedState
	poisoned bool
}

// Trampoline returns the callable entry point that behaves as the unhooked
// original function.
func (h *Hook) Trampoline() uintptr { return h.trampoline }

// Target returns the hooked address.
func (h *Hook) Target() uintptr { return h.target }

// Enabled reports whether the detour patch is currently live.
func (h *Hook) Enabled() bool { return h.enabled }

// current returns the bytes that should be live at the target right now.
func (h *Hook) current() []byte {
	if h.enabled {
		return h.patch
	}
	return h.original
}
