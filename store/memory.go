package store

import (
	"encoding/binary"

	"github.com/wippyai/wasm-preparsed/errors"
	"github.com/wippyai/wasm-preparsed/wasm"
)

// Memory is a linear memory. All accessors are bounds-checked and safe on a
// nil receiver, which behaves as a zero-sized memory.
type Memory struct {
	buf      []byte
	maxPages uint32
}

// NewMemory allocates minPages pages and allows growth up to maxPages.
func NewMemory(minPages, maxPages uint32) *Memory {
	return &Memory{
		buf:      make([]byte, int(minPages)*wasm.PageSize),
		maxPages: maxPages,
	}
}

// Size returns the memory size in bytes. A memory of 65536 pages is 2^32
// bytes, so the result does not fit in uint32.
func (m *Memory) Size() uint64 {
	if m == nil {
		return 0
	}
	return uint64(len(m.buf))
}

// Pages returns the memory size in pages.
func (m *Memory) Pages() uint32 {
	if m == nil {
		return 0
	}
	return uint32(len(m.buf) / wasm.PageSize)
}

// MaxPages returns the growth limit in pages.
func (m *Memory) MaxPages() uint32 {
	if m == nil {
		return 0
	}
	return m.maxPages
}

// Grow adds delta pages and returns the previous page count. It reports
// false, leaving the memory unchanged, when the limit would be exceeded.
func (m *Memory) Grow(delta uint32) (uint32, bool) {
	if m == nil {
		return 0, false
	}
	prev := m.Pages()
	if uint64(prev)+uint64(delta) > uint64(m.maxPages) {
		return prev, false
	}
	if delta == 0 {
		return prev, true
	}
	grown := make([]byte, (int(prev)+int(delta))*wasm.PageSize)
	copy(grown, m.buf)
	m.buf = grown
	return prev, true
}

// Bytes returns the backing slice. It is invalidated by Grow.
func (m *Memory) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.buf
}

func (m *Memory) check(offset, length uint32) error {
	var size uint64
	if m != nil {
		size = uint64(len(m.buf))
	}
	if uint64(offset)+uint64(length) > size {
		return errors.MemoryOutOfBounds(uint64(offset), uint64(length), size)
	}
	return nil
}

// Read returns a view of length bytes at offset. The view aliases guest
// memory and is invalidated by Grow.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	end := uint64(offset) + uint64(length)
	return m.buf[offset:end:end], nil
}

// ReadString copies length bytes at offset into a string.
func (m *Memory) ReadString(offset, length uint32) (string, error) {
	b, err := m.Read(offset, length)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Write copies data to offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if uint64(len(data)) > uint64(^uint32(0)) {
		return errors.MemoryOutOfBounds(uint64(offset), uint64(len(data)), m.Size())
	}
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	copy(m.buf[offset:], data)
	return nil
}

// ReadU8 reads one byte.
func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

// ReadU16 reads a little-endian uint16.
func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[offset:]), nil
}

// ReadU32 reads a little-endian uint32.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

// ReadU64 reads a little-endian uint64.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

// WriteU8 writes one byte.
func (m *Memory) WriteU8(offset uint32, v uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = v
	return nil
}

// WriteU16 writes a little-endian uint16.
func (m *Memory) WriteU16(offset uint32, v uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[offset:], v)
	return nil
}

// WriteU32 writes a little-endian uint32.
func (m *Memory) WriteU32(offset uint32, v uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], v)
	return nil
}

// WriteU64 writes a little-endian uint64.
func (m *Memory) WriteU64(offset uint32, v uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], v)
	return nil
}
