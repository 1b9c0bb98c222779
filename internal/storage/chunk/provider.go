package chunk

import "voxelbody.ai/internal/storage/bytebuf"

// ProviderType selects the sub-codec of a DataProvider payload.
type ProviderType int32

const (
	ProviderPlanet ProviderType = 10036
	ProviderShape  ProviderType = 10042
)

func (p ProviderType) String() string {
	switch p {
	case ProviderPlanet:
		return "planet"
	case ProviderShape:
		return "shape"
	default:
		return "unknown"
	}
}

// Provider is ShapeProvider or PlanetProvider.
type Provider interface {
	ProviderType() ProviderType
	size() int
	write(b *bytebuf.Buffer)
}

// ShapeProvider generates an asteroid from composite shapes.
type ShapeProvider struct {
	Seed          int32
	Generator     int32
	Size          float32
	GeneratorSeed int32
	// Reserved must be zero; readers reject anything else.
	Reserved uint32
}

func (*ShapeProvider) ProviderType() ProviderType { return ProviderShape }
func (*ShapeProvider) size() int                  { return 5 * 4 }

func (p *ShapeProvider) write(b *bytebuf.Buffer) {
	b.WriteInt32(p.Seed)
	b.WriteInt32(p.Generator)
	b.WriteFloat32(p.Size)
	b.WriteInt32(p.GeneratorSeed)
	b.WriteUint32(p.Reserved)
}

func readShapeProvider(b *bytebuf.Buffer) (*ShapeProvider, bool) {
	p := &ShapeProvider{}
	var ok bool
	if p.Seed, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if p.Generator, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if p.Size, ok = b.ReadFloat32(); !ok {
		return nil, false
	}
	if p.GeneratorSeed, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if p.Reserved, ok = b.ReadUint32(); !ok || p.Reserved != 0 {
		return nil, false
	}
	return p, true
}

// PlanetProvider defers to a named external planet generator.
type PlanetProvider struct {
	Seed          int32
	Radius        float32
	GeneratorName string
}

func (*PlanetProvider) ProviderType() ProviderType { return ProviderPlanet }
func (p *PlanetProvider) size() int                { return 4 + 4 + bytebuf.StringLen(p.GeneratorName) }

func (p *PlanetProvider) write(b *bytebuf.Buffer) {
	b.WriteInt32(p.Seed)
	b.WriteFloat32(p.Radius)
	b.WriteString(p.GeneratorName)
}

func readPlanetProvider(b *bytebuf.Buffer) (*PlanetProvider, bool) {
	p := &PlanetProvider{}
	var ok bool
	if p.Seed, ok = b.ReadInt32(); !ok {
		return nil, false
	}
	if p.Radius, ok = b.ReadFloat32(); !ok {
		return nil, false
	}
	if p.GeneratorName, ok = b.ReadString(); !ok {
		return nil, false
	}
	return p, true
}

// DataProvider marks the body as procedurally generated.
type DataProvider struct {
	Provider Provider
}

func (*DataProvider) Type() Type      { return TypeDataProvider }
func (*DataProvider) Version() uint32 { return VersionDataProvider }

func (d *DataProvider) payloadSize(Format) int { return 4 + d.Provider.size() }

func (d *DataProvider) writePayload(b *bytebuf.Buffer, _ Format) {
	b.WriteInt32(int32(d.Provider.ProviderType()))
	d.Provider.write(b)
}

func readDataProvider(b *bytebuf.Buffer) (*DataProvider, bool) {
	t, ok := b.ReadInt32()
	if !ok {
		return nil, false
	}
	switch ProviderType(t) {
	case ProviderShape:
		p, ok := readShapeProvider(b)
		if !ok {
			return nil, false
		}
		return &DataProvider{Provider: p}, true
	case ProviderPlanet:
		p, ok := readPlanetProvider(b)
		if !ok {
			return nil, false
		}
		return &DataProvider{Provider: p}, true
	default:
		return nil, false
	}
}
