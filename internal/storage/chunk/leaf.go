package chunk

import (
	"voxelbody.ai/internal/storage/bytebuf"
	"voxelbody.ai/internal/storage/octree"
)

// Leaf is ProviderLeaf or OctreeLeaf.
type Leaf interface {
	Chunk
	LeafChannel() Channel
	LeafKey() uint64
}

// ProviderLeaf leaves the whole subtree under Key to the data provider.
type ProviderLeaf struct {
	Channel Channel
	Key     uint64
}

func (l *ProviderLeaf) Type() Type {
	if l.Channel == Material {
		return TypeMaterialLeafProvider
	}
	return TypeContentLeafProvider
}

func (*ProviderLeaf) Version() uint32        { return VersionLeaf }
func (l *ProviderLeaf) LeafChannel() Channel { return l.Channel }
func (l *ProviderLeaf) LeafKey() uint64      { return l.Key }
func (*ProviderLeaf) payloadSize(Format) int { return 8 }

func (l *ProviderLeaf) writePayload(b *bytebuf.Buffer, _ Format) {
	b.WriteUint64(l.Key)
}

func readProviderLeaf(b *bytebuf.Buffer, ch Channel) (*ProviderLeaf, bool) {
	key, ok := b.ReadUint64()
	if !ok {
		return nil, false
	}
	return &ProviderLeaf{Channel: ch, Key: key}, true
}

// OctreeLeaf stores an explicit local octree under Key.
type OctreeLeaf struct {
	Channel    Channel
	Key        uint64
	TreeHeight int32
	Default    uint8
	Nodes      []octree.LocalNode
}

func (l *OctreeLeaf) Type() Type {
	if l.Channel == Material {
		return TypeMaterialLeafOctree
	}
	return TypeContentLeafOctree
}

func (*OctreeLeaf) Version() uint32        { return VersionLeaf }
func (l *OctreeLeaf) LeafChannel() Channel { return l.Channel }
func (l *OctreeLeaf) LeafKey() uint64      { return l.Key }

func (l *OctreeLeaf) payloadSize(Format) int {
	return 8 + 4 + 1 + octree.LocalTableSize(l.Nodes)
}

func (l *OctreeLeaf) writePayload(b *bytebuf.Buffer, _ Format) {
	b.WriteUint64(l.Key)
	b.WriteInt32(l.TreeHeight)
	b.WriteUint8(l.Default)
	octree.WriteLocalTable(b, l.Nodes)
}

func readOctreeLeaf(b *bytebuf.Buffer, ch Channel) (*OctreeLeaf, bool) {
	l := &OctreeLeaf{Channel: ch}
	var ok bool
	if l.Key, ok = b.ReadUint64(); !ok {
		return nil, false
	}
	if l.TreeHeight, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if l.Default, ok = b.ReadUint8(); !ok {
		return nil, false
	}
	if l.Nodes, ok = octree.ReadLocalTable(b); !ok {
		return nil, false
	}
	return l, true
}
