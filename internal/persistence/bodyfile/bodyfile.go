// Package bodyfile stores one container per file, optionally compressed.
package bodyfile

import (
	"fmt"
	"os"
	"path/filepath"

	"voxelbody.ai/internal/persistence/compress"
	"voxelbody.ai/internal/persistence/digest"
	"voxelbody.ai/internal/storage"
)

// Ext is the suffix of an uncompressed body file.
const Ext = ".octree"

type Info struct {
	Digest      digest.Hash
	Codec       compress.Codec
	EncodedSize int
	StoredSize  int
}

// FileName is "<name>.octree" plus the codec suffix.
func FileName(name string, codec compress.Codec) string {
	return name + Ext + codec.Ext()
}

// Write encodes c, compresses it with codec and replaces path atomically.
func Write(path string, c *storage.Container, codec compress.Codec) (Info, error) {
	raw, err := storage.Encode(c)
	if err != nil {
		return Info{}, err
	}
	data, err := compress.Compress(raw, codec)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Digest:      digest.Container(raw),
		Codec:       codec,
		EncodedSize: len(raw),
		StoredSize:  len(data),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Info{}, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Info{}, err
	}
	return info, nil
}

// Read loads a raw or compressed body file.
func Read(path string, logf storage.Logf) (*storage.Container, Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, err
	}
	info := Info{Codec: compress.Detect(data), StoredSize: len(data)}

	raw := data
	unwrap := storage.DecompressorFunc(func(p []byte) ([]byte, error) {
		out, err := compress.Decompress(p)
		raw = out
		return out, err
	})
	c, err := storage.DecodeAny(data, unwrap, logf)
	if err != nil {
		return nil, info, fmt.Errorf("%s: %w", path, err)
	}
	info.EncodedSize = len(raw)
	info.Digest = digest.Container(raw)
	return c, info, nil
}
