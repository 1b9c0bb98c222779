package storage

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"voxelbody.ai/internal/storage/bytebuf"
	"voxelbody.ai/internal/storage/chunk"
	"voxelbody.ai/internal/storage/octree"
)

func sampleContainer() *Container {
	return &Container{
		FormatVersion: FormatVersion2,
		AccessGridLod: 9,
		Meta:          &chunk.MetaData{LeafLodCount: 4, SizeX: 256, SizeY: 256, SizeZ: 256, DefaultMaterial: 1},
		Materials:     &chunk.MaterialIndexTable{Materials: []chunk.MaterialEntry{{Index: 1, Name: "Stone"}, {Index: 4, Name: "Nickel"}}},
		Provider:      &chunk.DataProvider{Provider: &chunk.ShapeProvider{Seed: 3, Generator: 1, Size: 200, GeneratorSeed: 4}},
		MacroContent: &chunk.MacroNodes{Channel: chunk.Content, Nodes: []octree.Node{
			{Key: octree.KeyWithLod(0, 4), ChildMask: 0xFF, Data: 0xAA, Access: 0x1234},
			{Key: octree.KeyWithLod(1, 3), ChildMask: 0x01, Data: 0xBB},
		}},
		MacroMaterial: &chunk.MacroNodes{Channel: chunk.Material, Nodes: []octree.Node{
			{Key: octree.KeyWithLod(0, 4), ChildMask: 0, Data: 1, Access: 7},
		}},
		ContentLeaves: []chunk.Leaf{
			&chunk.ProviderLeaf{Channel: chunk.Content, Key: octree.KeyWithLod(5, 0)},
			&chunk.OctreeLeaf{Channel: chunk.Content, Key: octree.KeyWithLod(6, 0), TreeHeight: 4, Default: 0xFF,
				Nodes: []octree.LocalNode{{Key: 0, ChildMask: 0x0F, Data: 9}, {Key: 1, ChildMask: 0, Data: 10}}},
		},
		MaterialLeaves: []chunk.Leaf{
			&chunk.ProviderLeaf{Channel: chunk.Material, Key: octree.KeyWithLod(5, 0)},
		},
	}
}

func TestEncode_RoundTripAndExactSize(t *testing.T) {
	for _, version := range []int{FormatVersion1, FormatVersion2} {
		c := sampleContainer()
		c.FormatVersion = version
		if version == FormatVersion1 {
			c.AccessGridLod = DefaultAccessGridLod
			// format 1 carries no access fields
			c.MacroContent.Nodes[0].Access = 0
			c.MacroMaterial.Nodes[0].Access = 0
		}
		data, err := Encode(c)
		if err != nil {
			t.Fatalf("v%d Encode: %v", version, err)
		}
		if len(data) != Size(c) || cap(data) != len(data) {
			t.Fatalf("v%d: encoded %d bytes (cap %d), Size=%d", version, len(data), cap(data), Size(c))
		}
		got, err := Decode(data, t.Logf)
		if err != nil {
			t.Fatalf("v%d Decode: %v", version, err)
		}
		if !reflect.DeepEqual(got, c) {
			t.Fatalf("v%d mismatch:\n got %+v\nwant %+v", version, got, c)
		}
	}
}

func TestEncode_HeaderLayout(t *testing.T) {
	data, err := Encode(sampleContainer())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{'O', 'c', 't', 'r', 'e', 'e', 2, 9, 0, byte(chunk.TypeMetaData), 1, 17}
	if !bytes.HasPrefix(data, want) {
		t.Fatalf("header % x, want prefix % x", data[:len(want)], want)
	}
	eof := []byte{0xFF, 0xFF, 0x03, 1, 0}
	if !bytes.HasSuffix(data, eof) {
		t.Fatalf("tail % x, want EOF chunk % x", data[len(data)-len(eof):], eof)
	}
}

func TestEncode_AccessFieldsCountedInSize(t *testing.T) {
	c := sampleContainer()
	withAccess := Size(c)
	c.AccessGridLod = 0
	if Size(c) != withAccess-2*octree.AccessSize {
		t.Fatalf("Size with access=%d without=%d", withAccess, Size(c))
	}
}

func TestEncode_RejectsIncomplete(t *testing.T) {
	c := sampleContainer()
	c.Provider = nil
	if _, err := Encode(c); !errors.Is(err, ErrInvalidContainer) {
		t.Fatalf("err=%v", err)
	}
	c = sampleContainer()
	c.ContentLeaves = append(c.ContentLeaves, &chunk.ProviderLeaf{Channel: chunk.Material})
	if _, err := Encode(c); !errors.Is(err, ErrInvalidContainer) {
		t.Fatalf("misfiled leaf: err=%v", err)
	}
}

// writeStream builds a container stream from an explicit chunk list.
func writeStream(chunks ...chunk.Chunk) []byte {
	f := chunk.Format{Version: 2, AccessGridLod: 10}
	b := bytebuf.New(0)
	b.WriteBytes([]byte(Magic))
	b.WriteVarUint(2)
	b.WriteUint16(10)
	for _, c := range chunks {
		chunk.Write(b, c, f)
	}
	return b.Bytes()
}

func TestDecode_ValidatorCompleteness(t *testing.T) {
	all := []chunk.Chunk{
		&chunk.MetaData{SizeX: 32, SizeY: 32, SizeZ: 32},
		&chunk.MaterialIndexTable{},
		&chunk.DataProvider{Provider: &chunk.PlanetProvider{Radius: 10, GeneratorName: "Moon"}},
		&chunk.MacroNodes{Channel: chunk.Content},
		&chunk.MacroNodes{Channel: chunk.Material},
		&chunk.ProviderLeaf{Channel: chunk.Content},
		&chunk.OctreeLeaf{Channel: chunk.Material, TreeHeight: 1},
		&chunk.EOF{},
	}
	if _, err := Decode(writeStream(all...), nil); err != nil {
		t.Fatalf("complete stream: %v", err)
	}

	for skip := range all {
		var chunks []chunk.Chunk
		for i, c := range all {
			if i != skip {
				chunks = append(chunks, c)
			}
		}
		var diag []string
		logf := func(format string, args ...any) { diag = append(diag, fmt.Sprintf(format, args...)) }
		_, err := Decode(writeStream(chunks...), logf)
		if !errors.Is(err, ErrInvalidContainer) {
			t.Fatalf("without %s: err=%v", all[skip].Type(), err)
		}
		if len(diag) == 0 {
			t.Fatalf("without %s: no diagnostics", all[skip].Type())
		}
	}
}

func TestDecode_DuplicateMacroTableLogged(t *testing.T) {
	c := sampleContainer()
	f := c.format()
	b := bytebuf.New(0)
	b.WriteBytes([]byte(Magic))
	b.WriteVarUint(uint32(c.FormatVersion))
	b.WriteUint16(c.AccessGridLod)
	for _, ch := range c.chunks() {
		chunk.Write(b, ch, f)
	}
	replacement := &chunk.MacroNodes{Channel: chunk.Material, Nodes: []octree.Node{}}
	chunk.Write(b, replacement, f)
	chunk.Write(b, &chunk.EOF{}, f)

	var lines []string
	logf := func(format string, args ...any) { lines = append(lines, fmt.Sprintf(format, args...)) }
	got, err := Decode(b.Bytes(), logf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got.MacroMaterial, replacement) {
		t.Fatalf("later table did not win: %+v", got.MacroMaterial)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "duplicate") || !strings.Contains(lines[0], replacement.Type().String()) {
		t.Fatalf("log lines = %q", lines)
	}
}

func TestDecode_StopsAtFirstBadChunk(t *testing.T) {
	data := writeStream(
		&chunk.MetaData{},
		&chunk.MaterialIndexTable{},
	)
	w := bytebuf.New(0)
	w.WriteBytes(data)
	w.WriteVarUint(77) // unknown type
	w.WriteVarUint(1)
	w.WriteVarUint(0)
	var diag []string
	_, err := Decode(w.Bytes(), func(format string, args ...any) { diag = append(diag, fmt.Sprintf(format, args...)) })
	if !errors.Is(err, ErrInvalidContainer) || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(strings.Join(diag, "\n"), "missing EOF chunk") {
		t.Fatalf("diagnostics %q lack the missing EOF line", diag)
	}
}

func TestDecode_BadHeader(t *testing.T) {
	cases := map[string][]byte{
		"empty":      nil,
		"bad magic":  []byte("Octopus\x02"),
		"no version": []byte(Magic),
		"version 0":  append([]byte(Magic), 0),
		"version 3":  append([]byte(Magic), 3),
		"no lod":     append([]byte(Magic), 2, 10),
	}
	for name, data := range cases {
		if _, err := Decode(data, nil); !errors.Is(err, ErrInvalidContainer) {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
}

func TestDecodeAny(t *testing.T) {
	c := sampleContainer()
	raw, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// toy "compression": reversed bytes
	reverse := func(p []byte) []byte {
		out := make([]byte, len(p))
		for i := range p {
			out[len(p)-1-i] = p[i]
		}
		return out
	}

	calls := 0
	d := DecompressorFunc(func(p []byte) ([]byte, error) {
		calls++
		return reverse(p), nil
	})
	if _, err := DecodeAny(raw, d, nil); err != nil || calls != 0 {
		t.Fatalf("raw: err=%v calls=%d", err, calls)
	}
	got, err := DecodeAny(reverse(raw), d, nil)
	if err != nil || calls != 1 {
		t.Fatalf("compressed: err=%v calls=%d", err, calls)
	}
	if !reflect.DeepEqual(got, c) {
		t.Fatalf("compressed round trip mismatch")
	}

	failing := DecompressorFunc(func([]byte) ([]byte, error) { return nil, errors.New("boom") })
	if _, err := DecodeAny([]byte("garbage"), failing, nil); !errors.Is(err, ErrInvalidContainer) {
		t.Fatalf("failing decompressor: err=%v", err)
	}
	if _, err := DecodeAny([]byte("garbage"), nil, nil); !errors.Is(err, ErrInvalidContainer) {
		t.Fatalf("no decompressor: err=%v", err)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	c := sampleContainer()
	d := c.Clone()
	if !reflect.DeepEqual(c, d) {
		t.Fatalf("clone differs")
	}
	d.Meta.SizeX = 1
	d.MacroContent.Nodes[0].Data = 0
	d.ContentLeaves[1].(*chunk.OctreeLeaf).Nodes[0].Data = 0
	d.Provider.Provider.(*chunk.ShapeProvider).Seed = 0
	d.Materials.Materials[0].Name = "x"
	if !reflect.DeepEqual(c, sampleContainer()) {
		t.Fatalf("mutating the clone changed the original")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleContainer())
	if s.Provider != "shape" || s.Seed != 3 || s.Materials != 2 || s.OctreeLeaves != 1 ||
		s.ContentLeaves != 2 || s.MaterialLeaves != 1 || s.MacroContentNodes != 2 || s.AccessGridLod != 9 {
		t.Fatalf("summary=%+v", s)
	}
}
