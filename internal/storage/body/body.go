// Package body builds minimal containers for bodies that are generated
// entirely at runtime: no explicit voxels, one provider leaf per channel.
package body

import (
	"errors"
	"fmt"
	"math"

	"voxelbody.ai/internal/storage"
	"voxelbody.ai/internal/storage/chunk"
	"voxelbody.ai/internal/storage/octree"
)

const (
	// BaseExtent is the smallest body edge in voxels.
	BaseExtent = 32
	// MaxDoublings keeps the doubling count inside the 4-bit key LOD.
	MaxDoublings = 15
	// LeafLodCount is the depth of a leaf below its macro cell.
	LeafLodCount = 4
)

var ErrBodyTooLarge = errors.New("body too large")

// Extent returns the smallest BaseExtent·2^n >= size and n.
func Extent(size float64) (extent int, doublings int, err error) {
	if math.IsNaN(size) || size < 0 {
		return 0, 0, fmt.Errorf("invalid body size %v", size)
	}
	extent = BaseExtent
	for float64(extent) < size {
		if doublings == MaxDoublings {
			return 0, 0, fmt.Errorf("%w: size %v exceeds %d", ErrBodyTooLarge, size, BaseExtent<<MaxDoublings)
		}
		extent *= 2
		doublings++
	}
	return extent, doublings, nil
}

// RootKey is the key of the whole-body cell: LOD only, path zero.
func RootKey(doublings int) uint64 {
	return octree.KeyWithLod(0, doublings)
}

// Options are the container-level settings shared by both factories.
type Options struct {
	FormatVersion int
	AccessGridLod uint16
	Materials     []chunk.MaterialEntry
}

func (o Options) withDefaults() Options {
	if o.FormatVersion == 0 {
		o.FormatVersion = storage.FormatVersion2
	}
	if o.AccessGridLod == 0 {
		o.AccessGridLod = storage.DefaultAccessGridLod
	}
	return o
}

type AsteroidParams struct {
	Seed          int32
	Size          float64
	Generator     int32
	GeneratorSeed int32
}

// NewAsteroid returns a container deferring the whole asteroid to the shape
// generator.
func NewAsteroid(p AsteroidParams, opts Options) (*storage.Container, error) {
	extent, doublings, err := Extent(p.Size)
	if err != nil {
		return nil, err
	}
	provider := &chunk.ShapeProvider{
		Seed:          p.Seed,
		Generator:     p.Generator,
		Size:          float32(p.Size),
		GeneratorSeed: p.GeneratorSeed,
	}
	return newProcedural(extent, doublings, provider, opts), nil
}

type PlanetParams struct {
	Seed          int32
	Radius        float64
	GeneratorName string
}

// NewPlanet returns a container deferring the whole planet to the named
// generator. The extent covers the diameter.
func NewPlanet(p PlanetParams, opts Options) (*storage.Container, error) {
	if p.GeneratorName == "" {
		return nil, errors.New("planet generator name is required")
	}
	extent, doublings, err := Extent(2 * p.Radius)
	if err != nil {
		return nil, err
	}
	provider := &chunk.PlanetProvider{
		Seed:          p.Seed,
		Radius:        float32(p.Radius),
		GeneratorName: p.GeneratorName,
	}
	return newProcedural(extent, doublings, provider, opts), nil
}

func newProcedural(extent, doublings int, provider chunk.Provider, opts Options) *storage.Container {
	opts = opts.withDefaults()
	root := RootKey(doublings)
	materials := append([]chunk.MaterialEntry{}, opts.Materials...)
	return &storage.Container{
		FormatVersion: opts.FormatVersion,
		AccessGridLod: opts.AccessGridLod,
		Meta: &chunk.MetaData{
			LeafLodCount: LeafLodCount,
			SizeX:        int32(extent),
			SizeY:        int32(extent),
			SizeZ:        int32(extent),
		},
		Materials:      &chunk.MaterialIndexTable{Materials: materials},
		Provider:       &chunk.DataProvider{Provider: provider},
		MacroContent:   &chunk.MacroNodes{Channel: chunk.Content, Nodes: []octree.Node{}},
		MacroMaterial:  &chunk.MacroNodes{Channel: chunk.Material, Nodes: []octree.Node{}},
		ContentLeaves:  []chunk.Leaf{&chunk.ProviderLeaf{Channel: chunk.Content, Key: root}},
		MaterialLeaves: []chunk.Leaf{&chunk.ProviderLeaf{Channel: chunk.Material, Key: root}},
	}
}
