package chunk

import "voxelbody.ai/internal/storage/bytebuf"

// MetaData describes the body bounds and leaf depth.
type MetaData struct {
	LeafLodCount    int32
	SizeX           int32
	SizeY           int32
	SizeZ           int32
	DefaultMaterial uint8
}

func (*MetaData) Type() Type             { return TypeMetaData }
func (*MetaData) Version() uint32        { return VersionMetaData }
func (*MetaData) payloadSize(Format) int { return 4*4 + 1 }

func (m *MetaData) writePayload(b *bytebuf.Buffer, _ Format) {
	b.WriteInt32(m.LeafLodCount)
	b.WriteInt32(m.SizeX)
	b.WriteInt32(m.SizeY)
	b.WriteInt32(m.SizeZ)
	b.WriteUint8(m.DefaultMaterial)
}

func readMetaData(b *bytebuf.Buffer) (*MetaData, bool) {
	m := &MetaData{}
	var ok bool
	if m.LeafLodCount, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if m.SizeX, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if m.SizeY, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if m.SizeZ, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if m.DefaultMaterial, ok = b.ReadUint8(); !ok {
		return nil, false
	}
	return m, true
}

// MaterialEntry maps a sparse material index to its name.
type MaterialEntry struct {
	Index int32
	Name  string
}

// MaterialIndexTable is the only place material names are stored; every other
// material reference is an index into it.
type MaterialIndexTable struct {
	Materials []MaterialEntry
}

func (*MaterialIndexTable) Type() Type      { return TypeMaterialIndexTable }
func (*MaterialIndexTable) Version() uint32 { return VersionMaterialIndexTable }

func (t *MaterialIndexTable) payloadSize(Format) int {
	n := 4
	for _, m := range t.Materials {
		n += 4 + bytebuf.StringLen(m.Name)
	}
	return n
}

func (t *MaterialIndexTable) writePayload(b *bytebuf.Buffer, _ Format) {
	b.WriteInt32(int32(len(t.Materials)))
	for _, m := range t.Materials {
		b.WriteInt32(m.Index)
		b.WriteString(m.Name)
	}
}

func readMaterialIndexTable(b *bytebuf.Buffer) (*MaterialIndexTable, bool) {
	count, ok := b.ReadInt32()
	if !ok || count < 0 {
		return nil, false
	}
	// Each entry is at least 5 bytes; reject counts the payload cannot hold.
	if int64(count)*5 > int64(b.Remaining()) {
		return nil, false
	}
	t := &MaterialIndexTable{Materials: make([]MaterialEntry, count)}
	for i := range t.Materials {
		if t.Materials[i].Index, ok = b.ReadInt32(); !ok {
			return nil, false
		}
		if t.Materials[i].Name, ok = b.ReadString(); !ok {
			return nil, false
		}
	}
	return t, true
}

// EOF terminates the chunk stream.
type EOF struct{}

func (*EOF) Type() Type                           { return TypeEOF }
func (*EOF) Version() uint32                      { return VersionEOF }
func (*EOF) payloadSize(Format) int               { return 0 }
func (*EOF) writePayload(*bytebuf.Buffer, Format) {}
