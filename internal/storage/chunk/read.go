package chunk

import (
	"fmt"

	"voxelbody.ai/internal/storage/bytebuf"
	"voxelbody.ai/internal/storage/octree"
)

// Read decodes the chunk at the cursor. The payload is decoded from a view
// bounded by the size field, so a payload codec can never read into the next
// chunk, and every payload except EOF must use the whole view. On failure the
// returned error says which chunk was rejected.
func Read(b *bytebuf.Buffer, f Format) (Chunk, error) {
	start := b.Pos()
	h, ok := readHeader(b)
	if !ok {
		return nil, fmt.Errorf("chunk header at offset %d: truncated", start)
	}

	size := int(h.Size)
	if isMacroTable(h.Type) && hasAccessFields(f, h.Version) {
		size = octree.LegacyAccessWindow(b, size, f.AccessGridLod)
	}
	view, ok := b.Slice(size)
	if !ok {
		return nil, fmt.Errorf("%s v%d at offset %d: size %d exceeds remaining %d bytes",
			h.Type, h.Version, start, size, b.Remaining())
	}

	c, known, ok := decode(view, h, f)
	switch {
	case !known:
		return nil, fmt.Errorf("%s v%d at offset %d: unsupported chunk type/version", h.Type, h.Version, start)
	case !ok:
		return nil, fmt.Errorf("%s v%d at offset %d: malformed payload", h.Type, h.Version, start)
	case h.Type != TypeEOF && view.Remaining() != 0:
		return nil, fmt.Errorf("%s v%d at offset %d: malformed payload: %d of %d bytes unused",
			h.Type, h.Version, start, view.Remaining(), size)
	}
	return c, nil
}

func isMacroTable(t Type) bool {
	return t == TypeMacroContentNodes || t == TypeMacroMaterialNodes
}

// decode is the complete (type, version) table. known is false for pairs
// this reader does not accept.
func decode(b *bytebuf.Buffer, h Header, f Format) (c Chunk, known, ok bool) {
	switch h.Type {
	case TypeMetaData:
		if h.Version != 1 {
			return nil, false, false
		}
		return wrap(readMetaData(b))
	case TypeMaterialIndexTable:
		if h.Version != 1 {
			return nil, false, false
		}
		return wrap(readMaterialIndexTable(b))
	case TypeDataProvider:
		if h.Version != 2 {
			return nil, false, false
		}
		return wrap(readDataProvider(b))
	case TypeMacroContentNodes, TypeMacroMaterialNodes:
		if h.Version != 1 && h.Version != 2 {
			return nil, false, false
		}
		ch := Content
		if h.Type == TypeMacroMaterialNodes {
			ch = Material
		}
		return wrap(readMacroNodes(b, ch, h.Version, f))
	case TypeContentLeafProvider, TypeMaterialLeafProvider:
		if h.Version != 2 && h.Version != 3 {
			return nil, false, false
		}
		ch := Content
		if h.Type == TypeMaterialLeafProvider {
			ch = Material
		}
		return wrap(readProviderLeaf(b, ch))
	case TypeContentLeafOctree, TypeMaterialLeafOctree:
		if h.Version != 2 && h.Version != 3 {
			return nil, false, false
		}
		ch := Content
		if h.Type == TypeMaterialLeafOctree {
			ch = Material
		}
		return wrap(readOctreeLeaf(b, ch))
	case TypeEOF:
		return &EOF{}, true, true
	default:
		return nil, false, false
	}
}

// wrap turns a typed (payload, ok) result into a Chunk without leaking a
// typed nil pointer into the interface.
func wrap[T Chunk](c T, ok bool) (Chunk, bool, bool) {
	if !ok {
		return nil, true, false
	}
	return c, true, true
}
