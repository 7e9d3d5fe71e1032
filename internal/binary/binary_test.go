package binary

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderReadByte(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)

	p, err := r.PeekByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), p)
	assert.Equal(t, 1, r.Position())

	_, _ = r.ReadByte()
	assert.True(t, r.EOF())

	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReaderReadBytes(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	r := NewReader(data)

	got, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
	assert.Equal(t, 2, r.Len())

	_, err = r.ReadBytes(10)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = r.ReadBytes(-1)
	assert.Error(t, err)
}

func TestLEB128RoundTrip(t *testing.T) {
	w := NewWriter()
	u32s := []uint32{0, 1, 127, 128, 624485, math.MaxUint32}
	s32s := []int32{0, -1, 63, -64, 64, math.MinInt32, math.MaxInt32}
	s64s := []int64{0, -1, math.MinInt64, math.MaxInt64, -123456}
	u64s := []uint64{0, 1 << 35, math.MaxUint64}

	for _, v := range u32s {
		w.WriteU32(v)
	}
	for _, v := range s32s {
		w.WriteS32(v)
	}
	for _, v := range s64s {
		w.WriteS64(v)
	}
	for _, v := range u64s {
		w.WriteU64(v)
	}

	r := NewReader(w.Bytes())
	for _, want := range u32s {
		got, err := r.ReadU32()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, want := range s32s {
		got, err := r.ReadS32()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, want := range s64s {
		got, err := r.ReadS64()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, want := range u64s {
		got, err := r.ReadU64()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.True(t, r.EOF())
}

func TestReadU32Overflow(t *testing.T) {
	_, err := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}).ReadU32()
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}).ReadU32()
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = NewReader([]byte{0x80}).ReadU32()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFixedWidth(t *testing.T) {
	w := NewWriter()
	w.WriteU16LE(0xBEEF)
	w.WriteU32LE(0xDEADBEEF)
	w.WriteU64LE(0x0102030405060708)
	w.WriteF32(1.5)
	w.WriteF64(-2.25)
	w.WriteName("héllo")
	w.WriteVec([]byte{9, 8})

	r := NewReader(w.Bytes())
	u16, err := r.ReadU16LE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), u16)
	u32, _ := r.ReadU32LE()
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	u64, _ := r.ReadU64LE()
	assert.Equal(t, uint64(0x0102030405060708), u64)
	f32, _ := r.ReadF32()
	assert.Equal(t, float32(1.5), f32)
	f64, _ := r.ReadF64()
	assert.Equal(t, -2.25, f64)
	name, err := r.ReadName()
	require.NoError(t, err)
	assert.Equal(t, "héllo", name)
	n, err := r.ReadCount(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReadNameRejectsInvalidUTF8(t *testing.T) {
	_, err := NewReader([]byte{2, 0xC3, 0x28}).ReadName()
	assert.ErrorContains(t, err, "invalid UTF-8")
}

func TestReadCountRejectsOversizedVector(t *testing.T) {
	_, err := NewReader([]byte{100, 1, 2}).ReadCount(1)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{1})
	_, _ = r.ReadByte()
	err := r.WrapError("header", io.ErrUnexpectedEOF)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Position)
	assert.Equal(t, "header at position 1: unexpected EOF", err.Error())
}
