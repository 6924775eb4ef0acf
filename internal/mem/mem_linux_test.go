package mem

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceReadRoundTrip(t *testing.T) {
	buf := []byte{0xde, 0xad, 0xbe, 0xef}
	addr := uintptr(reflect.ValueOf(buf).Pointer())

	view := Slice(addr, len(buf))
	assert.Equal(t, buf, view)

	got := Read(addr, len(buf))
	assert.Equal(t, buf, got)

	// Read copies; mutating the source must not show through.
	buf[0] = 0x00
	assert.Equal(t, byte(0xde), got[0])
}

func TestPageStart(t *testing.T) {
	assert.Equal(t, uintptr(0), PageStart(pageSize-1))
	assert.Equal(t, pageSize, PageStart(pageSize))
	assert.Equal(t, pageSize, PageStart(pageSize+1))
}

func TestAllocNear(t *testing.T) {
	anchor := uintptr(reflect.ValueOf(TestAllocNear).Pointer())

	b, err := AllocNear(anchor, 64)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Free()) }()

	assert.NotZero(t, b.Addr())
	assert.Equal(t, b.Addr(), PageStart(b.Addr()))
	assert.True(t, distance(b.Addr(), anchor) < NearRange, "allocation landed out of rel32 reach")
	assert.GreaterOrEqual(t, len(b.Bytes()), 64)

	// The mapping is writable without a protection flip.
	copy(b.Bytes(), []byte{0x90, 0x90, 0xc3})
	assert.Equal(t, byte(0xc3), b.Bytes()[2])
}

func TestProtectReprotect(t *testing.T) {
	anchor := uintptr(reflect.ValueOf(TestProtectReprotect).Pointer())

	b, err := AllocNear(anchor, int(pageSize)+16)
	require.NoError(t, err)
	defer b.Free()

	require.NoError(t, Reprotect(b.Addr(), 16))
	require.NoError(t, Protect(b.Addr(), 16))
	b.Bytes()[0] = 0xc3

	// A range straddling a page boundary flips both pages.
	require.NoError(t, Protect(b.Addr()+pageSize-8, 16))
	require.NoError(t, Reprotect(b.Addr()+pageSize-8, 16))
}

func TestIsExecutable(t *testing.T) {
	code := uintptr(reflect.ValueOf(TestIsExecutable).Pointer())
	ok, err := IsExecutable(code)
	require.NoError(t, err)
	assert.True(t, ok)

	heap := make([]byte, 8)
	ok, err = IsExecutable(uintptr(reflect.ValueOf(heap).Pointer()))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsExecutable(0)
	require.NoError(t, err)
	assert.False(t, ok)
}
