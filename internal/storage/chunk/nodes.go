package chunk

import (
	"voxelbody.ai/internal/storage/bytebuf"
	"voxelbody.ai/internal/storage/octree"
)

// Channel tells the content tables and leaves from the material ones.
type Channel uint8

const (
	Content Channel = iota
	Material
)

func (c Channel) String() string {
	if c == Material {
		return "material"
	}
	return "content"
}

// MacroNodes is the coarse whole-body octree of one channel.
type MacroNodes struct {
	Channel Channel
	Nodes   []octree.Node
}

func (m *MacroNodes) Type() Type {
	if m.Channel == Material {
		return TypeMacroMaterialNodes
	}
	return TypeMacroContentNodes
}

func (*MacroNodes) Version() uint32 { return VersionMacroNodes }

// writeLayout is the layout of a current-version table in a file of format f.
func writeLayout(f Format) octree.Layout {
	return tableLayout(f, VersionMacroNodes)
}

func tableLayout(f Format, version uint32) octree.Layout {
	l := octree.Layout{LegacyKeys: version == 1}
	if hasAccessFields(f, version) {
		l.AccessGridLod = f.AccessGridLod
	}
	return l
}

func hasAccessFields(f Format, version uint32) bool {
	return f.Version == 2 && version == 2
}

func (m *MacroNodes) payloadSize(f Format) int {
	return octree.DeclaredSize(m.Nodes, writeLayout(f))
}

func (m *MacroNodes) encodedSize(f Format) int {
	return octree.EncodedSize(m.Nodes, writeLayout(f))
}

func (m *MacroNodes) writePayload(b *bytebuf.Buffer, f Format) {
	octree.WriteTable(b, m.Nodes, writeLayout(f))
}

func readMacroNodes(b *bytebuf.Buffer, ch Channel, version uint32, f Format) (*MacroNodes, bool) {
	nodes, ok := octree.ReadTable(b, tableLayout(f, version))
	if !ok {
		return nil, false
	}
	return &MacroNodes{Channel: ch, Nodes: nodes}, true
}
