// Package inst decodes the x86/x86-64 instruction surface found in function
// prologues, far enough to find a safe patch boundary and to rewrite
// PC-relative operands when instructions are moved to a new address.
package inst

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// MaxLen is the longest legal x86 instruction encoding.
const MaxLen = 15

var (
	// ErrDecode means the byte sequence could not be decoded.
	ErrDecode = errors.New("unsupported instruction encoding")
	// ErrShortWindow means the lookahead window ended before the cut point.
	ErrShortWindow = errors.New("no instruction boundary at or past the patch size")
	// ErrUnreachable means a relocated displacement no longer fits its field.
	ErrUnreachable = errors.New("relocated displacement out of range")
)

// Inst is one decoded instruction at a known address.
type Inst struct {
	Len int
	Op  x86asm.Op

	// PC-relative operand, if any. RelLen is the displacement field width in
	// bytes (0 when the instruction is position-independent), RelOff its
	// offset inside the encoding, and Target the absolute destination.
	RelLen int
	RelOff int
	Target uintptr
}

// Decode decodes the instruction at the start of code, which is assumed to
// live at address pc. mode is 32 or 64.
func Decode(code []byte, pc uintptr, mode int) (Inst, error) {
	x, err := x86asm.Decode(code, mode)
	if err != nil {
		return Inst{}, errors.Wrapf(ErrDecode, "at %#x: %v", pc, err)
	}
	// A lone prefix byte decodes "successfully" with no opcode; treat it the
	// same as garbage. int3 is alignment padding past the function end.
	if x.Opcode == 0 && x.Len == 1 && x.Prefix[0] == x86asm.Prefix(code[0]) {
		return Inst{}, errors.Wrapf(ErrDecode, "stray prefix byte %#02x at %#x", code[0], pc)
	}
	if x.Len == 1 && code[0] == 0xcc {
		return Inst{}, errors.Wrapf(ErrDecode, "int3 padding at %#x", pc)
	}

	in := Inst{Len: x.Len, Op: x.Op}
	if x.PCRel > 0 {
		in.RelLen = x.PCRel
		in.RelOff = x.PCRelOff
		next := pc + uintptr(x.Len)
		switch x.PCRel {
		case 1:
			in.Target = next + uintptr(int64(int8(code[x.PCRelOff])))
		case 4:
			disp := int32(binary.LittleEndian.Uint32(code[x.PCRelOff:]))
			in.Target = next + uintptr(int64(disp))
		default:
			// 16-bit relative forms never appear in compiler output.
			return Inst{}, errors.Wrapf(ErrDecode, "%d-byte relative operand at %#x", x.PCRel, pc)
		}
	}
	return in, nil
}

// CutAt walks instruction boundaries from the start of code until the running
// length reaches at least min bytes, and returns that boundary. The window
// handed in bounds the lookahead; running past it, or hitting bytes that do
// not decode, fails rather than guessing.
func CutAt(code []byte, mode int, min int) (int, error) {
	cut := 0
	for cut < min {
		if cut >= len(code) {
			return 0, errors.Wrapf(ErrShortWindow, "boundary search stopped at %d of %d bytes", cut, min)
		}
		in, err := Decode(code[cut:], uintptr(cut), mode)
		if err != nil {
			return 0, err
		}
		cut += in.Len
	}
	return cut, nil
}

// Relocate re-encodes the instruction in, whose original bytes are code and
// whose original address is pc, so that it behaves identically at address
// newpc. Position-independent instructions are returned verbatim. Short
// relative branches are widened to their rel32 forms; rel32 branches and
// RIP-relative operands get their displacement recomputed.
func Relocate(in Inst, code []byte, pc, newpc uintptr) ([]byte, error) {
	if in.RelLen == 0 {
		out := make([]byte, in.Len)
		copy(out, code[:in.Len])
		return out, nil
	}

	switch in.RelLen {
	case 4:
		out := make([]byte, in.Len)
		copy(out, code[:in.Len])
		disp := int64(in.Target) - int64(newpc) - int64(in.Len)
		if disp > math.MaxInt32 || disp < math.MinInt32 {
			return nil, errors.Wrapf(ErrUnreachable, "%v at %#x moved to %#x", in.Op, pc, newpc)
		}
		binary.LittleEndian.PutUint32(out[in.RelOff:], uint32(int32(disp)))
		return out, nil
	case 1:
		wide, err := widenBranch(code[0])
		if err != nil {
			return nil, errors.Wrapf(err, "%v at %#x", in.Op, pc)
		}
		disp := int64(in.Target) - int64(newpc) - int64(len(wide))
		if disp > math.MaxInt32 || disp < math.MinInt32 {
			return nil, errors.Wrapf(ErrUnreachable, "%v at %#x moved to %#x", in.Op, pc, newpc)
		}
		binary.LittleEndian.PutUint32(wide[len(wide)-4:], uint32(int32(disp)))
		return wide, nil
	}
	return nil, errors.Wrapf(ErrDecode, "%v at %#x", in.Op, pc)
}

// widenBranch maps a rel8 branch opcode to its rel32 encoding with room for
// the displacement. JCXZ/JECXZ/JRCXZ and the LOOP family have no rel32 form.
func widenBranch(op byte) ([]byte, error) {
	switch {
	case op == 0xeb: // JMP rel8 -> JMP rel32
		return []byte{0xe9, 0, 0, 0, 0}, nil
	case op >= 0x70 && op <= 0x7f: // Jcc rel8 -> Jcc rel32
		return []byte{0x0f, 0x80 + (op - 0x70), 0, 0, 0, 0}, nil
	}
	return nil, errors.Wrapf(ErrDecode, "relative opcode %#02x has no rel32 form", op)
}
