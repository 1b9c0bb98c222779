package bodyfile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"voxelbody.ai/internal/persistence/compress"
	"voxelbody.ai/internal/storage"
	"voxelbody.ai/internal/storage/body"
)

func TestWriteRead(t *testing.T) {
	c, err := body.NewPlanet(body.PlanetParams{Seed: 4, Radius: 120, GeneratorName: "Alien"}, body.Options{})
	if err != nil {
		t.Fatalf("NewPlanet: %v", err)
	}
	dir := t.TempDir()
	var digests []string
	for _, codec := range []compress.Codec{compress.None, compress.Zstd, compress.LZ4} {
		path := filepath.Join(dir, "bodies", FileName("alien", codec))
		info, err := Write(path, c, codec)
		if err != nil {
			t.Fatalf("%s Write: %v", codec, err)
		}
		if info.EncodedSize != storage.Size(c) {
			t.Fatalf("%s: EncodedSize=%d Size=%d", codec, info.EncodedSize, storage.Size(c))
		}
		st, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if int(st.Size()) != info.StoredSize {
			t.Fatalf("%s: file %d bytes, StoredSize=%d", codec, st.Size(), info.StoredSize)
		}

		got, rinfo, err := Read(path, t.Logf)
		if err != nil {
			t.Fatalf("%s Read: %v", codec, err)
		}
		if !reflect.DeepEqual(got, c) {
			t.Fatalf("%s: round trip mismatch", codec)
		}
		if rinfo.Digest != info.Digest || rinfo.Codec != codec || rinfo.EncodedSize != info.EncodedSize {
			t.Fatalf("%s: read info %+v, write info %+v", codec, rinfo, info)
		}
		digests = append(digests, info.Digest.String())
	}
	if digests[0] != digests[1] || digests[1] != digests[2] {
		t.Fatalf("digest depends on codec: %v", digests)
	}
	if _, err := os.Stat(filepath.Join(dir, "bodies", FileName("alien", compress.Zstd)+".tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestRead_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.octree")
	if err := os.WriteFile(path, []byte("not a body"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := Read(path, nil); !errors.Is(err, storage.ErrInvalidContainer) {
		t.Fatalf("err=%v", err)
	}
}
