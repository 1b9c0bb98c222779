// Package chunk frames typed, versioned payloads:
//
//	varuint(type) · varuint(version) · varuint(size) · size bytes
//
// The set of chunk kinds is closed; Read dispatches on (type, version) and
// rejects every pair it does not know.
package chunk

import (
	"fmt"

	"voxelbody.ai/internal/storage/bytebuf"
)

type Type uint32

const (
	TypeMetaData             Type = 1
	TypeMaterialIndexTable   Type = 2
	TypeMacroContentNodes    Type = 3
	TypeMacroMaterialNodes   Type = 4
	TypeContentLeafProvider  Type = 5
	TypeContentLeafOctree    Type = 6
	TypeMaterialLeafProvider Type = 7
	TypeMaterialLeafOctree   Type = 8
	TypeDataProvider         Type = 9
	TypeEOF                  Type = 0xFFFF
)

func (t Type) String() string {
	switch t {
	case TypeMetaData:
		return "MetaData"
	case TypeMaterialIndexTable:
		return "MaterialIndexTable"
	case TypeMacroContentNodes:
		return "MacroContentNodes"
	case TypeMacroMaterialNodes:
		return "MacroMaterialNodes"
	case TypeContentLeafProvider:
		return "ContentLeafProvider"
	case TypeContentLeafOctree:
		return "ContentLeafOctree"
	case TypeMaterialLeafProvider:
		return "MaterialLeafProvider"
	case TypeMaterialLeafOctree:
		return "MaterialLeafOctree"
	case TypeDataProvider:
		return "DataProvider"
	case TypeEOF:
		return "EOF"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Versions emitted by the writer.
const (
	VersionMetaData           = 1
	VersionMaterialIndexTable = 1
	VersionDataProvider       = 2
	VersionMacroNodes         = 2
	VersionLeaf               = 3
	VersionEOF                = 1
)

// Format carries the container-level settings payload codecs depend on.
type Format struct {
	Version       int
	AccessGridLod int
}

// Chunk is implemented only by the payload types of this package.
type Chunk interface {
	Type() Type
	Version() uint32
	// payloadSize is the value of the size field.
	payloadSize(f Format) int
	writePayload(b *bytebuf.Buffer, f Format)
}

// Header is the envelope preceding a payload.
type Header struct {
	Type    Type
	Version uint32
	Size    uint32
}

func (h Header) encodedLen() int {
	return bytebuf.VarUintLen(uint32(h.Type)) + bytebuf.VarUintLen(h.Version) + bytebuf.VarUintLen(h.Size)
}

func header(c Chunk, f Format) Header {
	return Header{Type: c.Type(), Version: c.Version(), Size: uint32(c.payloadSize(f))}
}

// Size is the number of bytes Write produces for c, envelope included.
func Size(c Chunk, f Format) int {
	return header(c, f).encodedLen() + writtenPayloadSize(c, f)
}

// writtenPayloadSize differs from payloadSize only for macro tables carrying
// access fields, which are written but not counted in the size field.
func writtenPayloadSize(c Chunk, f Format) int {
	if m, ok := c.(*MacroNodes); ok {
		return m.encodedSize(f)
	}
	return c.payloadSize(f)
}

// Write appends the envelope and payload of c at the cursor.
func Write(b *bytebuf.Buffer, c Chunk, f Format) {
	h := header(c, f)
	b.WriteVarUint(uint32(h.Type))
	b.WriteVarUint(h.Version)
	b.WriteVarUint(h.Size)
	c.writePayload(b, f)
}

func readHeader(b *bytebuf.Buffer) (Header, bool) {
	var (
		h  Header
		t  uint32
		ok bool
	)
	if t, ok = b.ReadVarUint(); !ok {
		return h, false
	}
	h.Type = Type(t)
	if h.Version, ok = b.ReadVarUint(); !ok {
		return h, false
	}
	if h.Size, ok = b.ReadVarUint(); !ok {
		return h, false
	}
	return h, true
}
