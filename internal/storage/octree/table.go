package octree

import "voxelbody.ai/internal/storage/bytebuf"

// Layout selects the record shape of a macro node table.
type Layout struct {
	// LegacyKeys reads 32-bit keys and remaps them with RemapKey32.
	LegacyKeys bool
	// AccessGridLod > 0 enables the trailing access field on nodes whose
	// LOD + 5 equals it. Only format-2 files with version-2 tables set it.
	AccessGridLod int
}

// HasAccess reports whether the node keyed by key carries an access field.
func (l Layout) HasAccess(key uint64) bool {
	return l.AccessGridLod > 0 && !l.LegacyKeys && Lod(key)+accessLodOffset == l.AccessGridLod
}

func (l Layout) recordSize() int {
	if l.LegacyKeys {
		return LegacyRecordSize
	}
	return RecordSize
}

// DeclaredSize is the size a table chunk advertises: records only.
func DeclaredSize(nodes []Node, l Layout) int {
	return len(nodes) * l.recordSize()
}

// EncodedSize is the number of bytes WriteTable produces.
func EncodedSize(nodes []Node, l Layout) int {
	n := DeclaredSize(nodes, l)
	if l.AccessGridLod <= 0 {
		return n
	}
	for _, node := range nodes {
		if l.HasAccess(node.Key) {
			n += AccessSize
		}
	}
	return n
}

// WriteTable writes nodes in order with 64-bit keys.
func WriteTable(b *bytebuf.Buffer, nodes []Node, l Layout) {
	for _, n := range nodes {
		b.WriteUint64(n.Key)
		b.WriteUint8(n.ChildMask)
		b.WriteUint64(n.Data)
		if l.HasAccess(n.Key) {
			b.WriteUint16(n.Access)
		}
	}
}

// ReadTable consumes b entirely. Without access fields the payload must be a
// whole number of records.
func ReadTable(b *bytebuf.Buffer, l Layout) ([]Node, bool) {
	size := l.recordSize()
	if l.AccessGridLod <= 0 || l.LegacyKeys {
		if b.Remaining()%size != 0 {
			return nil, false
		}
	}
	nodes := make([]Node, 0, b.Remaining()/size)
	for b.Remaining() > 0 {
		var (
			n  Node
			ok bool
		)
		if l.LegacyKeys {
			var k uint32
			if k, ok = b.ReadUint32(); !ok {
				return nil, false
			}
			n.Key = RemapKey32(k)
		} else if n.Key, ok = b.ReadUint64(); !ok {
			return nil, false
		}
		if n.ChildMask, ok = b.ReadUint8(); !ok {
			return nil, false
		}
		if n.Data, ok = b.ReadUint64(); !ok {
			return nil, false
		}
		if l.HasAccess(n.Key) {
			if n.Access, ok = b.ReadUint16(); !ok {
				return nil, false
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, true
}

// LegacyAccessWindow returns the true payload length of a format-2,
// version-2 node table whose writer counted only the 17-byte records in the
// chunk size. b is positioned at the payload start and is not moved.
//
// The scan walks 17-byte strides; whenever the stride's key byte 7 has the
// access LOD in its high nibble, the window grows by 2 and the scan skips the
// access field. This mirrors how those files were produced and is not a
// general resynchronisation scheme.
func LegacyAccessWindow(b *bytebuf.Buffer, declared, accessGridLod int) int {
	tag := accessGridLod - accessLodOffset
	window := declared
	for i := 0; i < window; i += RecordSize {
		hi, ok := b.PeekByte(i + 7)
		if !ok {
			break
		}
		if int(hi>>4) == tag {
			window += AccessSize
			i += AccessSize
		}
	}
	return window
}

// LocalTableSize is the encoded size of a leaf-local table.
func LocalTableSize(nodes []LocalNode) int {
	return len(nodes) * LocalRecordSize
}

func WriteLocalTable(b *bytebuf.Buffer, nodes []LocalNode) {
	for _, n := range nodes {
		b.WriteUint32(n.Key)
		b.WriteUint8(n.ChildMask)
		b.WriteUint64(n.Data)
	}
}

// ReadLocalTable consumes b entirely; a partial trailing record rejects it.
func ReadLocalTable(b *bytebuf.Buffer) ([]LocalNode, bool) {
	if b.Remaining()%LocalRecordSize != 0 {
		return nil, false
	}
	nodes := make([]LocalNode, b.Remaining()/LocalRecordSize)
	for i := range nodes {
		var ok bool
		if nodes[i].Key, ok = b.ReadUint32(); !ok {
			return nil, false
		}
		if nodes[i].ChildMask, ok = b.ReadUint8(); !ok {
			return nil, false
		}
		if nodes[i].Data, ok = b.ReadUint64(); !ok {
			return nil, false
		}
	}
	return nodes, true
}
