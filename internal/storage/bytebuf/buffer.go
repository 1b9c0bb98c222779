// Package bytebuf is a growable byte store with a single read/write cursor.
//
// Reads never panic on short input: every Read* returns ok=false instead. A
// failed read may still have moved the cursor, so callers must treat the
// first failure as terminal for the whole parse.
package bytebuf

import (
	"encoding/binary"
	"math"
)

// MaxVarUintLen is the longest encoding of a 32-bit varuint.
const MaxVarUintLen = 5

const growSlack = 4096

// Buffer holds bytes [0, Len()) and a cursor in [0, Len()].
type Buffer struct {
	data   []byte // len(data) is the capacity
	length int
	pos    int
}

// New returns an empty buffer with room for capacity bytes.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Wrap returns a buffer reading over b without copying it.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b[:len(b):len(b)], length: len(b)}
}

func (b *Buffer) Len() int       { return b.length }
func (b *Buffer) Cap() int       { return len(b.data) }
func (b *Buffer) Pos() int       { return b.pos }
func (b *Buffer) Remaining() int { return b.length - b.pos }

// Seek moves the cursor. It fails outside [0, Len()].
func (b *Buffer) Seek(pos int) bool {
	if pos < 0 || pos > b.length {
		return false
	}
	b.pos = pos
	return true
}

// Bytes returns a copy of the written bytes.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, b.length)
	copy(out, b.data[:b.length])
	return out
}

// Detach returns the written bytes without copying when the buffer is filled
// to capacity, and a copy otherwise. The buffer must not be written after.
func (b *Buffer) Detach() []byte {
	if b.length == len(b.data) {
		return b.data
	}
	return b.Bytes()
}

// PeekByte returns the unread byte at offset from the cursor.
func (b *Buffer) PeekByte(offset int) (byte, bool) {
	i := b.pos + offset
	if offset < 0 || i >= b.length {
		return 0, false
	}
	return b.data[i], true
}

// Slice returns a view over the next count bytes and moves past them. The
// view shares storage with b; its capacity is clipped so writes that grow the
// view reallocate instead of touching bytes after the window.
func (b *Buffer) Slice(count int) (*Buffer, bool) {
	if count < 0 || b.Remaining() < count {
		return nil, false
	}
	start := b.pos
	b.pos += count
	return &Buffer{data: b.data[start : start+count : start+count], length: count}, true
}

// SliceCopy is Slice with an independent copy of the bytes.
func (b *Buffer) SliceCopy(count int) (*Buffer, bool) {
	v, ok := b.Slice(count)
	if !ok {
		return nil, false
	}
	return Wrap(v.Bytes()), true
}

// ensure makes room for n bytes at the cursor.
func (b *Buffer) ensure(n int) {
	need := b.pos + n
	if need <= len(b.data) {
		return
	}
	capacity := len(b.data)
	grown := 2 * capacity
	if need-capacity > capacity {
		grown = max(2*capacity, need+growSlack)
	}
	data := make([]byte, grown)
	copy(data, b.data[:b.length])
	b.data = data
}

// advance moves the cursor after a write and extends the length behind it.
func (b *Buffer) advance(n int) {
	b.pos += n
	if b.pos > b.length {
		b.length = b.pos
	}
}

// take returns the next n unread bytes, or false if fewer remain.
func (b *Buffer) take(n int) ([]byte, bool) {
	if b.Remaining() < n {
		return nil, false
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p, true
}

func (b *Buffer) WriteBytes(p []byte) {
	b.ensure(len(p))
	copy(b.data[b.pos:], p)
	b.advance(len(p))
}

func (b *Buffer) ReadBytes(n int) ([]byte, bool) {
	if n < 0 {
		return nil, false
	}
	p, ok := b.take(n)
	if !ok {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, p)
	return out, true
}

func (b *Buffer) WriteUint8(v uint8) {
	b.ensure(1)
	b.data[b.pos] = v
	b.advance(1)
}

func (b *Buffer) WriteInt8(v int8) { b.WriteUint8(uint8(v)) }

func (b *Buffer) WriteUint16(v uint16) {
	b.ensure(2)
	binary.LittleEndian.PutUint16(b.data[b.pos:], v)
	b.advance(2)
}

func (b *Buffer) WriteInt16(v int16) { b.WriteUint16(uint16(v)) }

func (b *Buffer) WriteUint32(v uint32) {
	b.ensure(4)
	binary.LittleEndian.PutUint32(b.data[b.pos:], v)
	b.advance(4)
}

func (b *Buffer) WriteInt32(v int32) { b.WriteUint32(uint32(v)) }

func (b *Buffer) WriteUint64(v uint64) {
	b.ensure(8)
	binary.LittleEndian.PutUint64(b.data[b.pos:], v)
	b.advance(8)
}

func (b *Buffer) WriteInt64(v int64)     { b.WriteUint64(uint64(v)) }
func (b *Buffer) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }
func (b *Buffer) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

func (b *Buffer) ReadUint8() (uint8, bool) {
	p, ok := b.take(1)
	if !ok {
		return 0, false
	}
	return p[0], true
}

func (b *Buffer) ReadInt8() (int8, bool) {
	v, ok := b.ReadUint8()
	return int8(v), ok
}

func (b *Buffer) ReadUint16() (uint16, bool) {
	p, ok := b.take(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(p), true
}

func (b *Buffer) ReadInt16() (int16, bool) {
	v, ok := b.ReadUint16()
	return int16(v), ok
}

func (b *Buffer) ReadUint32() (uint32, bool) {
	p, ok := b.take(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p), true
}

func (b *Buffer) ReadInt32() (int32, bool) {
	v, ok := b.ReadUint32()
	return int32(v), ok
}

func (b *Buffer) ReadUint64() (uint64, bool) {
	p, ok := b.take(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(p), true
}

func (b *Buffer) ReadInt64() (int64, bool) {
	v, ok := b.ReadUint64()
	return int64(v), ok
}

func (b *Buffer) ReadFloat32() (float32, bool) {
	v, ok := b.ReadUint32()
	return math.Float32frombits(v), ok
}

func (b *Buffer) ReadFloat64() (float64, bool) {
	v, ok := b.ReadUint64()
	return math.Float64frombits(v), ok
}
