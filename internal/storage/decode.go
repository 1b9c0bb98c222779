package storage

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"voxelbody.ai/internal/storage/bytebuf"
	"voxelbody.ai/internal/storage/chunk"
)

// ErrInvalidContainer wraps every decode failure.
var ErrInvalidContainer = errors.New("not a valid octree container")

// Logf receives one human-readable line per decode step or failure. It never
// affects the outcome; nil discards.
type Logf func(format string, args ...any)

func (l Logf) printf(format string, args ...any) {
	if l != nil {
		l(format, args...)
	}
}

// Decompressor turns a compressed container back into raw bytes.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

type DecompressorFunc func(data []byte) ([]byte, error)

func (f DecompressorFunc) Decompress(data []byte) ([]byte, error) { return f(data) }

// HasMagic reports whether data starts like an uncompressed container.
func HasMagic(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Magic))
}

// DecodeAny decodes raw containers directly; anything else is passed once
// through d and the result decoded. A decompression failure is reported as
// ErrInvalidContainer.
func DecodeAny(data []byte, d Decompressor, logf Logf) (*Container, error) {
	if HasMagic(data) {
		return Decode(data, logf)
	}
	if d == nil {
		logf.printf("octree: missing %q header and no decompressor", Magic)
		return nil, fmt.Errorf("%w: missing %q header", ErrInvalidContainer, Magic)
	}
	raw, err := d.Decompress(data)
	if err != nil {
		logf.printf("octree: decompress: %v", err)
		return nil, fmt.Errorf("%w: decompress: %v", ErrInvalidContainer, err)
	}
	return Decode(raw, logf)
}

// Decode parses an uncompressed container. It either returns a container
// holding every required chunk or fails as a whole.
func Decode(data []byte, logf Logf) (*Container, error) {
	b := bytebuf.Wrap(data)
	c, err := readHeader(b)
	if err != nil {
		logf.printf("octree: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}
	f := c.format()

	var (
		eof     bool
		lastErr error
	)
	for !eof {
		ch, err := chunk.Read(b, f)
		if err != nil {
			logf.printf("octree: %v", err)
			lastErr = err
			break
		}
		switch ch := ch.(type) {
		case *chunk.MetaData:
			if c.Meta != nil {
				logf.printf("octree: duplicate %s chunk replaces the earlier one", ch.Type())
			}
			c.Meta = ch
		case *chunk.MaterialIndexTable:
			if c.Materials != nil {
				logf.printf("octree: duplicate %s chunk replaces the earlier one", ch.Type())
			}
			c.Materials = ch
		case *chunk.DataProvider:
			if c.Provider != nil {
				logf.printf("octree: duplicate %s chunk replaces the earlier one", ch.Type())
			}
			c.Provider = ch
		case *chunk.MacroNodes:
			slot := &c.MacroContent
			if ch.Channel == chunk.Material {
				slot = &c.MacroMaterial
			}
			if *slot != nil {
				logf.printf("octree: duplicate %s chunk replaces the earlier one", ch.Type())
			}
			*slot = ch
		case *chunk.ProviderLeaf:
			c.addLeaf(ch)
		case *chunk.OctreeLeaf:
			c.addLeaf(ch)
		case *chunk.EOF:
			eof = true
		default:
			// chunk.Read only returns the types above.
			panic(fmt.Sprintf("storage: unhandled chunk %T", ch))
		}
	}

	problems := missing(c, eof)
	for _, p := range problems {
		logf.printf("octree: %s", p)
	}
	if len(problems) > 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContainer, lastErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidContainer, strings.Join(problems, "; "))
	}
	if b.Remaining() > 0 {
		logf.printf("octree: %d bytes after EOF ignored", b.Remaining())
	}
	return c, nil
}

func (c *Container) addLeaf(l chunk.Leaf) {
	if l.LeafChannel() == chunk.Material {
		c.MaterialLeaves = append(c.MaterialLeaves, l)
	} else {
		c.ContentLeaves = append(c.ContentLeaves, l)
	}
}

func readHeader(b *bytebuf.Buffer) (*Container, error) {
	magic, ok := b.ReadBytes(len(Magic))
	if !ok || string(magic) != Magic {
		return nil, fmt.Errorf("missing %q header", Magic)
	}
	version, ok := b.ReadVarUint()
	if !ok {
		return nil, errors.New("truncated format version")
	}
	c := &Container{FormatVersion: int(version), AccessGridLod: DefaultAccessGridLod}
	switch version {
	case FormatVersion1:
	case FormatVersion2:
		if c.AccessGridLod, ok = b.ReadUint16(); !ok {
			return nil, errors.New("truncated access grid lod")
		}
	default:
		return nil, fmt.Errorf("unsupported format version %d", version)
	}
	return c, nil
}
