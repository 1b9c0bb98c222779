package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"voxelbody.ai/internal/persistence/bodyfile"
)

type Meta struct {
	Name        string `json:"name"`
	Digest      string `json:"digest"`
	Codec       string `json:"codec"`
	EncodedSize int    `json:"encoded_size"`
	StoredSize  int    `json:"stored_size"`
	File        string `json:"file"`
	ArchivedAt  string `json:"archived_at"`
}

// ArchiveBody copies the body file at path into
// `dataDir/archives/<name>/<digest16>.octree[.ext]` before it is overwritten.
// A missing path is not an error: there is nothing to keep (archived=false).
// An existing archive with the same digest is left untouched.
func ArchiveBody(dataDir, name, path string, info bodyfile.Info) (archivedPath string, archived bool, err error) {
	if name == "" {
		return "", false, fmt.Errorf("archive: empty body name")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}

	archiveDir := filepath.Join(dataDir, "archives", name)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(archiveDir, bodyfile.FileName(info.Digest.Short(), info.Codec))
	if _, err := os.Stat(dst); err == nil {
		return dst, false, nil
	}
	if err := copyFile(path, dst); err != nil {
		return "", false, err
	}

	meta := Meta{
		Name:        name,
		Digest:      info.Digest.String(),
		Codec:       string(info.Codec),
		EncodedSize: info.EncodedSize,
		StoredSize:  info.StoredSize,
		File:        filepath.Base(dst),
		ArchivedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, info.Digest.Short()+".json"), b, 0o644)
	}
	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
