package detourgo

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	// decode mode passed to the instruction decoder
	disasmMode = 64
	// bytes overwritten at the target: one JMP rel32
	patchSize = 5
	// size reserved for the detour relay at the head of a hook's block
	relaySize = 16
)

// relayTo builds an absolute, register-free jump to the detour:
//
//	FF 25 00 00 00 00   JMP [RIP+0]
//	.quad detour
//
// The 5-byte patch can always reach the relay because the relay lives in the
// hook's own near-allocated block; the relay reaches a detour anywhere.
func relayTo(detour uintptr) []byte {
	seq := make([]byte, 14)
	seq[0] = 0xff
	seq[1] = 0x25
	binary.LittleEndian.PutUint64(seq[6:], uint64(detour))
	return seq
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

// patchDest returns the address the 5-byte patch should jump to: on amd64 the
// relay at the head of the hook's block, so any 64-bit detour is reachable.
func patchDest(block uintptr, detour uintptr) uintptr {
	return block
}
