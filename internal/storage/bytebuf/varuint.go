package bytebuf

import "encoding/binary"

// VarUintLen is the encoded size of v: 1 to 5 bytes.
func VarUintLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// WriteVarUint writes v as little-endian base-128 groups, high bit set on
// every byte but the last.
func (b *Buffer) WriteVarUint(v uint32) {
	var tmp [MaxVarUintLen]byte
	n := binary.PutUvarint(tmp[:], uint64(v))
	b.WriteBytes(tmp[:n])
}

// ReadVarUint fails when input runs out mid-sequence, when more than
// MaxVarUintLen groups would be needed, or when the fifth group carries bits
// above 32.
func (b *Buffer) ReadVarUint() (uint32, bool) {
	var v uint32
	for i := 0; i < MaxVarUintLen; i++ {
		c, ok := b.ReadUint8()
		if !ok {
			return 0, false
		}
		if i == MaxVarUintLen-1 && c > 0x0F {
			return 0, false
		}
		v |= uint32(c&0x7F) << (7 * i)
		if c&0x80 == 0 {
			return v, true
		}
	}
	return 0, false
}

// StringLen is the encoded size of s.
func StringLen(s string) int {
	return VarUintLen(uint32(len(s))) + len(s)
}

// WriteString writes the UTF-8 byte count as a varuint followed by the bytes.
func (b *Buffer) WriteString(s string) {
	b.WriteVarUint(uint32(len(s)))
	b.ensure(len(s))
	copy(b.data[b.pos:], s)
	b.advance(len(s))
}

func (b *Buffer) ReadString() (string, bool) {
	n, ok := b.ReadVarUint()
	if !ok {
		return "", false
	}
	if uint64(n) > uint64(b.Remaining()) {
		return "", false
	}
	p, _ := b.take(int(n))
	return string(p), true
}
