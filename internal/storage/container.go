// Package storage reads and writes octree body containers: the "Octree"
// magic, a format version, and an ordered chunk stream ending in EOF.
package storage

import (
	"slices"

	"voxelbody.ai/internal/storage/chunk"
	"voxelbody.ai/internal/storage/octree"
)

const (
	// Magic opens every uncompressed container.
	Magic = "Octree"

	FormatVersion1 = 1
	FormatVersion2 = 2

	// DefaultAccessGridLod applies to format-1 files, which do not store it.
	DefaultAccessGridLod = 10
)

// Container is a decoded body. Decoded containers are not mutated by this
// package; use Clone before editing one that may be shared.
type Container struct {
	FormatVersion int
	AccessGridLod uint16

	Meta          *chunk.MetaData
	Materials     *chunk.MaterialIndexTable
	Provider      *chunk.DataProvider
	MacroContent  *chunk.MacroNodes
	MacroMaterial *chunk.MacroNodes

	ContentLeaves  []chunk.Leaf
	MaterialLeaves []chunk.Leaf
}

func (c *Container) format() chunk.Format {
	f := chunk.Format{Version: c.FormatVersion, AccessGridLod: DefaultAccessGridLod}
	if c.FormatVersion == FormatVersion2 {
		f.AccessGridLod = int(c.AccessGridLod)
	}
	return f
}

// Clone returns a deep copy.
func (c *Container) Clone() *Container {
	out := *c
	if c.Meta != nil {
		m := *c.Meta
		out.Meta = &m
	}
	if c.Materials != nil {
		out.Materials = &chunk.MaterialIndexTable{Materials: slices.Clone(c.Materials.Materials)}
	}
	if c.Provider != nil {
		out.Provider = &chunk.DataProvider{Provider: cloneProvider(c.Provider.Provider)}
	}
	out.MacroContent = cloneMacro(c.MacroContent)
	out.MacroMaterial = cloneMacro(c.MacroMaterial)
	out.ContentLeaves = cloneLeaves(c.ContentLeaves)
	out.MaterialLeaves = cloneLeaves(c.MaterialLeaves)
	return &out
}

func cloneProvider(p chunk.Provider) chunk.Provider {
	switch p := p.(type) {
	case *chunk.ShapeProvider:
		v := *p
		return &v
	case *chunk.PlanetProvider:
		v := *p
		return &v
	}
	return p
}

func cloneMacro(m *chunk.MacroNodes) *chunk.MacroNodes {
	if m == nil {
		return nil
	}
	return &chunk.MacroNodes{Channel: m.Channel, Nodes: slices.Clone(m.Nodes)}
}

func cloneLeaves(leaves []chunk.Leaf) []chunk.Leaf {
	if leaves == nil {
		return nil
	}
	out := make([]chunk.Leaf, len(leaves))
	for i, l := range leaves {
		switch l := l.(type) {
		case *chunk.ProviderLeaf:
			v := *l
			out[i] = &v
		case *chunk.OctreeLeaf:
			v := *l
			v.Nodes = slices.Clone(l.Nodes)
			out[i] = &v
		}
	}
	return out
}

// Summary is a flat description of a container for listings and catalogs.
type Summary struct {
	FormatVersion      int     `json:"format_version" cbor:"1,keyasint"`
	AccessGridLod      int     `json:"access_grid_lod" cbor:"2,keyasint"`
	Size               [3]int  `json:"size" cbor:"3,keyasint"`
	LeafLodCount       int     `json:"leaf_lod_count" cbor:"4,keyasint"`
	Materials          int     `json:"materials" cbor:"5,keyasint"`
	Provider           string  `json:"provider" cbor:"6,keyasint"`
	Seed               int32   `json:"seed" cbor:"7,keyasint"`
	ProviderSize       float32 `json:"provider_size" cbor:"8,keyasint"`
	MacroContentNodes  int     `json:"macro_content_nodes" cbor:"9,keyasint"`
	MacroMaterialNodes int     `json:"macro_material_nodes" cbor:"10,keyasint"`
	ContentLeaves      int     `json:"content_leaves" cbor:"11,keyasint"`
	MaterialLeaves     int     `json:"material_leaves" cbor:"12,keyasint"`
	OctreeLeaves       int     `json:"octree_leaves" cbor:"13,keyasint"`
	RootLod            int     `json:"root_lod" cbor:"14,keyasint"`
}

// Summarize expects a validated container.
func Summarize(c *Container) Summary {
	s := Summary{
		FormatVersion:      c.FormatVersion,
		AccessGridLod:      c.format().AccessGridLod,
		Size:               [3]int{int(c.Meta.SizeX), int(c.Meta.SizeY), int(c.Meta.SizeZ)},
		LeafLodCount:       int(c.Meta.LeafLodCount),
		Materials:          len(c.Materials.Materials),
		MacroContentNodes:  len(c.MacroContent.Nodes),
		MacroMaterialNodes: len(c.MacroMaterial.Nodes),
		ContentLeaves:      len(c.ContentLeaves),
		MaterialLeaves:     len(c.MaterialLeaves),
	}
	switch p := c.Provider.Provider.(type) {
	case *chunk.ShapeProvider:
		s.Provider = chunk.ProviderShape.String()
		s.Seed = p.Seed
		s.ProviderSize = p.Size
	case *chunk.PlanetProvider:
		s.Provider = chunk.ProviderPlanet.String()
		s.Seed = p.Seed
		s.ProviderSize = p.Radius
	}
	for _, leaves := range [][]chunk.Leaf{c.ContentLeaves, c.MaterialLeaves} {
		for _, l := range leaves {
			if _, ok := l.(*chunk.OctreeLeaf); ok {
				s.OctreeLeaves++
			}
		}
	}
	if len(c.ContentLeaves) > 0 {
		s.RootLod = octree.Lod(c.ContentLeaves[0].LeafKey())
	}
	return s
}
