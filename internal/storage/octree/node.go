// Package octree encodes the flat node tables that describe a sparse voxel
// octree: the whole-body macro tables and the local trees stored in leaves.
package octree

// Node is one macro node. Access is only carried on the wire for nodes whose
// LOD sits at the access grid level of a format-2 file; elsewhere it is
// ignored on write and zero on read.
type Node struct {
	Key       uint64
	ChildMask uint8
	Data      uint64
	Access    uint16
}

// LocalNode is one node of a leaf's local octree, keyed relative to the leaf.
type LocalNode struct {
	Key       uint32
	ChildMask uint8
	Data      uint64
}

const (
	// LegacyRecordSize is a macro record with a 32-bit key.
	LegacyRecordSize = 4 + 1 + 8
	// RecordSize is a macro record with a 64-bit key, access field excluded.
	RecordSize = 8 + 1 + 8
	// AccessSize is the optional trailing access field.
	AccessSize = 2
	// LocalRecordSize is a leaf-local record.
	LocalRecordSize = 4 + 1 + 8

	// accessLodOffset relates a node LOD to the access grid LOD that tags it.
	accessLodOffset = 5
)

// Lod is the level of detail stored in the top 4 bits of a key.
func Lod(key uint64) int { return int(key >> 60) }

// KeyWithLod replaces the LOD nibble of key.
func KeyWithLod(key uint64, lod int) uint64 {
	return key&^(0xF<<60) | uint64(lod&0xF)<<60
}

// RemapKey32 spreads a legacy 32-bit key over the 64-bit layout: bits 0-9 stay
// at 0, bits 10-17 move to 20, bits 18-27 move to 40 and the LOD nibble in
// bits 28-31 moves to 60.
func RemapKey32(k uint32) uint64 {
	v := uint64(k)
	return v&0x3FF |
		(v>>10)&0xFF<<20 |
		(v>>18)&0x3FF<<40 |
		(v>>28)&0xF<<60
}
