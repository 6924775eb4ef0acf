package detourgo

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	disasmMode = 32
	patchSize  = 5
	// no relay on 386: every address is rel32-reachable
	relaySize = 0
)

func relayTo(detour uintptr) []byte {
	return nil
}

// jumpRel32 encodes JMP rel32 from address from to address to.
func jumpRel32(from, to uintptr) ([]byte, error) {
	disp := int64(to) - int64(from) - patchSize
	if disp > math.MaxInt32 || disp < math.MinInt32 {
		return nil, errors.Errorf("jump from %#x to %#x exceeds rel32 range", from, to)
	}
	seq := make([]byte, patchSize)
	seq[0] = 0xe9
	binary.LittleEndian.PutUint32(seq[1:], uint32(int32(disp)))
	return seq, nil
}

// patchDest returns the address the 5-byte patch should jump to: the detour
// itself, reachable directly in a 32-bit address space.
func patchDest(block uintptr, detour uintptr) uintptr {
	return detour
}
