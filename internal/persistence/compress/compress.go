// Package compress wraps container bytes for storage and transfer. Readers
// never need to know the codec: Decompress identifies the frame by its magic.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"voxelbody.ai/internal/storage"
)

// Codec names a compression algorithm. Values are stable config strings.
type Codec string

const (
	None Codec = "none"
	Zstd Codec = "zstd"
	LZ4  Codec = "lz4"
)

// ParseCodec accepts "", "none", "zstd" and "lz4"; "" means zstd.
func ParseCodec(name string) (Codec, error) {
	switch Codec(name) {
	case "":
		return Zstd, nil
	case None, Zstd, LZ4:
		return Codec(name), nil
	default:
		return "", fmt.Errorf("unknown compression codec %q", name)
	}
}

// Ext is the file name suffix for a codec.
func (c Codec) Ext() string {
	switch c {
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}

	ErrUnknownFrame = errors.New("unrecognised compression frame")
)

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder: " + err.Error())
	}
}

// Compress returns data framed by codec. None returns data unchanged.
func Compress(data []byte, codec Codec) ([]byte, error) {
	switch codec {
	case None:
		return data, nil
	case Zstd, "":
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression codec %q", codec)
	}
}

// Detect reports the codec of a frame, or None when it is not compressed.
func Detect(data []byte) Codec {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	case bytes.HasPrefix(data, lz4Magic):
		return LZ4
	default:
		return None
	}
}

// Decompress unwraps a zstd or lz4 frame.
func Decompress(data []byte) ([]byte, error) {
	switch Detect(data) {
	case Zstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case LZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	default:
		return nil, ErrUnknownFrame
	}
}

// Auto accepts any frame Decompress knows.
var Auto storage.Decompressor = storage.DecompressorFunc(Decompress)
