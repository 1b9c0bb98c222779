package storage

import (
	"fmt"

	"voxelbody.ai/internal/storage/bytebuf"
	"voxelbody.ai/internal/storage/chunk"
)

// chunks lists the payload chunks of c in stream order, EOF excluded.
func (c *Container) chunks() []chunk.Chunk {
	out := make([]chunk.Chunk, 0, 5+len(c.ContentLeaves)+len(c.MaterialLeaves))
	out = append(out, c.Meta, c.Materials, c.Provider, c.MacroContent, c.MacroMaterial)
	for _, l := range c.ContentLeaves {
		out = append(out, l)
	}
	for _, l := range c.MaterialLeaves {
		out = append(out, l)
	}
	return out
}

func headerSize(c *Container) int {
	n := len(Magic) + bytebuf.VarUintLen(uint32(c.FormatVersion))
	if c.FormatVersion == FormatVersion2 {
		n += 2
	}
	return n
}

// Size is the exact length of Encode(c).
func Size(c *Container) int {
	f := c.format()
	n := headerSize(c)
	for _, ch := range c.chunks() {
		n += chunk.Size(ch, f)
	}
	return n + chunk.Size(&chunk.EOF{}, f)
}

// Encode serializes c into a buffer allocated once at its exact size. c must
// hold every required chunk; Validate reports what is missing.
func Encode(c *Container) ([]byte, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}
	f := c.format()
	b := bytebuf.New(Size(c))
	b.WriteBytes([]byte(Magic))
	b.WriteVarUint(uint32(c.FormatVersion))
	if c.FormatVersion == FormatVersion2 {
		b.WriteUint16(c.AccessGridLod)
	}
	for _, ch := range c.chunks() {
		chunk.Write(b, ch, f)
	}
	chunk.Write(b, &chunk.EOF{}, f)
	return b.Detach(), nil
}

// Validate checks that c holds every chunk a container requires.
func Validate(c *Container) error {
	if problems := missing(c, true); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidContainer, problems[0])
	}
	return nil
}

func missing(c *Container, eof bool) []string {
	var out []string
	if c.FormatVersion != FormatVersion1 && c.FormatVersion != FormatVersion2 {
		out = append(out, fmt.Sprintf("unsupported format version %d", c.FormatVersion))
	}
	if c.Meta == nil {
		out = append(out, "missing MetaData chunk")
	}
	if c.Materials == nil {
		out = append(out, "missing MaterialIndexTable chunk")
	}
	if c.Provider == nil || c.Provider.Provider == nil {
		out = append(out, "missing DataProvider chunk")
	}
	if c.MacroContent == nil {
		out = append(out, "missing MacroContentNodes chunk")
	}
	if c.MacroMaterial == nil {
		out = append(out, "missing MacroMaterialNodes chunk")
	}
	if len(c.ContentLeaves) == 0 {
		out = append(out, "no content leaf")
	}
	if len(c.MaterialLeaves) == 0 {
		out = append(out, "no material leaf")
	}
	if !eof {
		out = append(out, "missing EOF chunk")
	}
	if c.MacroContent != nil && c.MacroContent.Channel != chunk.Content {
		out = append(out, "macro content table has the material channel")
	}
	if c.MacroMaterial != nil && c.MacroMaterial.Channel != chunk.Material {
		out = append(out, "macro material table has the content channel")
	}
	for _, l := range c.ContentLeaves {
		if l.LeafChannel() != chunk.Content {
			out = append(out, "material leaf in the content leaf list")
			break
		}
	}
	for _, l := range c.MaterialLeaves {
		if l.LeafChannel() != chunk.Material {
			out = append(out, "content leaf in the material leaf list")
			break
		}
	}
	return out
}
