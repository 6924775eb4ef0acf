package inst

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLengths(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		mode int
		len  int
	}{
		{"push rbp", []byte{0x55}, 64, 1},
		{"mov rbp, rsp", []byte{0x48, 0x89, 0xe5}, 64, 3},
		{"sub rsp, 0x20", []byte{0x48, 0x83, 0xec, 0x20}, 64, 4},
		{"mov eax, imm32", []byte{0xb8, 0x07, 0x00, 0x00, 0x00}, 64, 5},
		{"xor eax, eax", []byte{0x31, 0xc0}, 64, 2},
		{"lea rax, [rax+rbx]", []byte{0x48, 0x8d, 0x04, 0x18}, 64, 4},
		{"ret", []byte{0xc3}, 64, 1},
		{"push ebp (32-bit)", []byte{0x55}, 32, 1},
		{"mov ebp, esp (32-bit)", []byte{0x89, 0xe5}, 32, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode(tt.code, 0x1000, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.len, in.Len)
			assert.Zero(t, in.RelLen)
		})
	}
}

func TestDecodeRelative(t *testing.T) {
	tests := []struct {
		name   string
		code   []byte
		pc     uintptr
		relLen int
		relOff int
		target uintptr
	}{
		{"jmp rel32", []byte{0xe9, 0xfb, 0x00, 0x00, 0x00}, 0x1000, 4, 1, 0x1100},
		{"call rel32", []byte{0xe8, 0xfb, 0x00, 0x00, 0x00}, 0x1000, 4, 1, 0x1100},
		{"je rel8", []byte{0x74, 0x0e}, 0x1000, 1, 1, 0x1010},
		{"jmp rel8", []byte{0xeb, 0x10}, 0x1000, 1, 1, 0x1012},
		{"je rel32", []byte{0x0f, 0x84, 0xfa, 0x00, 0x00, 0x00}, 0x1000, 4, 2, 0x1100},
		{"lea rax, [rip+0x10]", []byte{0x48, 0x8d, 0x05, 0x10, 0x00, 0x00, 0x00}, 0x1000, 4, 3, 0x1017},
		{"jmp rel8 backward", []byte{0xeb, 0xfe}, 0x1000, 1, 1, 0x1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode(tt.code, tt.pc, 64)
			require.NoError(t, err)
			assert.Equal(t, tt.relLen, in.RelLen)
			assert.Equal(t, tt.relOff, in.RelOff)
			assert.Equal(t, tt.target, in.Target)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"int3 padding", []byte{0xcc}},
		{"truncated", []byte{0x0f}},
		{"empty-ish prefix", []byte{0x66}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.code, 0x1000, 64)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
		})
	}
}

func TestCutAt(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		min  int
		cut  int
	}{
		// boundary lands exactly on the patch size
		{
			name: "exact boundary",
			code: []byte{0xb8, 0x07, 0x00, 0x00, 0x00, 0xc3}, // mov eax,7; ret
			min:  5,
			cut:  5,
		},
		// byte 5 falls inside the second instruction; the cut extends
		{
			name: "extend past boundary",
			code: []byte{0x48, 0x83, 0xec, 0x20, 0x31, 0xc0, 0xc3}, // sub rsp,0x20; xor eax,eax; ret
			min:  5,
			cut:  6,
		},
		// mov(2) add(3) ret(1): the boundary after the add satisfies a
		// 5-byte patch; asking for 6 pulls in the ret as well
		{
			name: "mov add ret",
			code: []byte{0x89, 0xf8, 0x48, 0x01, 0xf0, 0xc3}, // mov eax,edi; add rax,rsi; ret
			min:  5,
			cut:  5,
		},
		{
			name: "mov add ret full",
			code: []byte{0x89, 0xf8, 0x48, 0x01, 0xf0, 0xc3},
			min:  6,
			cut:  6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cut, err := CutAt(tt.code, 64, tt.min)
			require.NoError(t, err)
			assert.Equal(t, tt.cut, cut)
			assert.GreaterOrEqual(t, cut, tt.min)
		})
	}
}

func TestCutAtFailures(t *testing.T) {
	// int3 before the patch size is reached
	_, err := CutAt([]byte{0x55, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc}, 64, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	// window ends before the patch size is reached
	_, err = CutAt([]byte{0x55}, 64, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortWindow))
}

func TestRelocateVerbatim(t *testing.T) {
	code := []byte{0x48, 0x89, 0xe5} // mov rbp, rsp
	in, err := Decode(code, 0x1000, 64)
	require.NoError(t, err)
	out, err := Relocate(in, code, 0x1000, 0x9000)
	require.NoError(t, err)
	assert.Equal(t, code, out)
}

func TestRelocateRel32(t *testing.T) {
	// jmp 0x1100, moved from 0x1000 to 0x2000
	code := []byte{0xe9, 0xfb, 0x00, 0x00, 0x00}
	in, err := Decode(code, 0x1000, 64)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x1100), in.Target)

	out, err := Relocate(in, code, 0x1000, 0x2000)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xe9, 0xfb, 0xf0, 0xff, 0xff}, out)

	// decoding the relocated form at its new address lands on the same target
	back, err := Decode(out, 0x2000, 64)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x1100), back.Target)
}

func TestRelocateRIPRelative(t *testing.T) {
	// lea rax, [rip+0x10] at 0x1000 addresses 0x1017
	code := []byte{0x48, 0x8d, 0x05, 0x10, 0x00, 0x00, 0x00}
	in, err := Decode(code, 0x1000, 64)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x1017), in.Target)

	out, err := Relocate(in, code, 0x1000, 0x5000)
	require.NoError(t, err)

	back, err := Decode(out, 0x5000, 64)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x1017), back.Target)
}

func TestRelocateWidensShortBranches(t *testing.T) {
	// je +0x0e at 0x1000 targets 0x1010
	code := []byte{0x74, 0x0e}
	in, err := Decode(code, 0x1000, 64)
	require.NoError(t, err)

	out, err := Relocate(in, code, 0x1000, 0x3000)
	require.NoError(t, err)
	require.Equal(t, 6, len(out))
	assert.Equal(t, []byte{0x0f, 0x84}, out[:2])

	back, err := Decode(out, 0x3000, 64)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x1010), back.Target)

	// jmp rel8 widens to jmp rel32
	code = []byte{0xeb, 0x10}
	in, err = Decode(code, 0x1000, 64)
	require.NoError(t, err)
	out, err = Relocate(in, code, 0x1000, 0x3000)
	require.NoError(t, err)
	require.Equal(t, 5, len(out))
	assert.Equal(t, byte(0xe9), out[0])
}

func TestRelocateRejectsJECXZ(t *testing.T) {
	code := []byte{0xe3, 0x05} // jrcxz +5
	in, err := Decode(code, 0x1000, 64)
	require.NoError(t, err)

	_, err = Relocate(in, code, 0x1000, 0x3000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
}
