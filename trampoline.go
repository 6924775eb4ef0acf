package detourgo

import (
	"github.com/pkg/errors"

	"github.com/fengyoulin/detourgo/internal/inst"
	"github.com/fengyoulin/detourgo/internal/mem"
)

// decodeWindow bounds the boundary search past the target. No compiler emits
// a prologue that needs more before the first safe cut.
const decodeWindow = 32

// buildTrampoline allocates the hook's executable block near the target and
// fills it with the detour relay, the relocated prologue and a jump back to
// the continuation of the original function. window holds the leading target
// bytes. Returns the block, the trampoline entry point and the cut length.
func buildTrampoline(target, detour uintptr, window []byte) (*mem.Block, uintptr, int, error) {
	cut, err := inst.CutAt(window, disasmMode, patchSize)
	if err != nil {
		return nil, 0, 0, errors.WithMessagef(ErrUnsupportedInstruction, "%v", err)
	}

	// The worst relocated form is a 2-byte Jcc rel8 widened to 6 bytes, a
	// threefold expansion; the block is page-granular anyway.
	need := relaySize + 3*cut + patchSize
	block, err := mem.AllocNear(target, need)
	if err != nil {
		return nil, 0, 0, errors.WithMessagef(ErrAllocation, "%v", err)
	}

	buf := block.Bytes()
	if relay := relayTo(detour); relay != nil {
		copy(buf, relay)
	}
	entry := block.Addr() + relaySize

	w := relaySize
	for off := 0; off < cut; {
		in, err := inst.Decode(window[off:], target+uintptr(off), disasmMode)
		if err != nil {
			_ = block.Free()
			return nil, 0, 0, errors.WithMessagef(ErrUnsupportedInstruction, "%v", err)
		}
		out, err := inst.Relocate(in, window[off:], target+uintptr(off), block.Addr()+uintptr(w))
		if err != nil {
			_ = block.Free()
			return nil, 0, 0, errors.WithMessagef(ErrUnsupportedInstruction, "%v", err)
		}
		copy(buf[w:], out)
		w += len(out)
		off += in.Len
	}

	back, err := jumpRel32(block.Addr()+uintptr(w), target+uintptr(cut))
	if err != nil {
		_ = block.Free()
		return nil, 0, 0, errors.WithMessagef(ErrUnsupportedInstruction, "%v", err)
	}
	copy(buf[w:], back)

	return block, entry, cut, nil
}
