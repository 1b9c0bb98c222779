package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"voxelbody.ai/internal/persistence/bodyfile"
	"voxelbody.ai/internal/persistence/compress"
	"voxelbody.ai/internal/persistence/digest"
	persistlog "voxelbody.ai/internal/persistence/log"
	"voxelbody.ai/internal/storage"
)

func inspectCmd(args []string, out io.Writer) error {
	var (
		asJSON  bool
		dataDir string
	)
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	fs.BoolVar(&asJSON, "json", false, "print the summary as JSON")
	fs.StringVar(&dataDir, "data", "", "data directory for decode diagnostics (optional)")
	if done, err := parse(fs, args, out); done || err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: inspect needs a file", errUsage)
	}
	diag := openDiagnostics(dataDir)
	defer diag.Close()

	var failed int
	for _, path := range fs.Args() {
		var tr persistlog.Trace
		c, info, err := bodyfile.Read(path, tr.Logf)
		recordDecode(diag, "inspect", path, info, &tr, err)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", path, err)
			for _, l := range tr.Lines() {
				fmt.Fprintf(out, "  %s\n", l)
			}
			continue
		}
		s := storage.Summarize(c)
		if asJSON {
			b, _ := json.MarshalIndent(struct {
				Path        string          `json:"path"`
				Digest      string          `json:"digest"`
				Codec       string          `json:"codec"`
				EncodedSize int             `json:"encoded_size"`
				StoredSize  int             `json:"stored_size"`
				Summary     storage.Summary `json:"summary"`
			}{path, info.Digest.String(), string(info.Codec), info.EncodedSize, info.StoredSize, s}, "", "  ")
			fmt.Fprintln(out, string(b))
			continue
		}
		fmt.Fprintf(out, "%s\n", path)
		fmt.Fprintf(out, "  digest     %s\n", info.Digest)
		fmt.Fprintf(out, "  stored     %s (%s), encoded %s\n", humanize.IBytes(uint64(info.StoredSize)), info.Codec, humanize.IBytes(uint64(info.EncodedSize)))
		fmt.Fprintf(out, "  format     v%d access_grid_lod=%d\n", s.FormatVersion, s.AccessGridLod)
		fmt.Fprintf(out, "  size       %dx%dx%d leaf_lod_count=%d root_lod=%d\n", s.Size[0], s.Size[1], s.Size[2], s.LeafLodCount, s.RootLod)
		fmt.Fprintf(out, "  provider   %s seed=%d size=%g\n", s.Provider, s.Seed, s.ProviderSize)
		fmt.Fprintf(out, "  materials  %d\n", s.Materials)
		fmt.Fprintf(out, "  macro      content=%d material=%d\n", s.MacroContentNodes, s.MacroMaterialNodes)
		fmt.Fprintf(out, "  leaves     content=%d material=%d octree=%d\n", s.ContentLeaves, s.MaterialLeaves, s.OctreeLeaves)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to decode", failed, fs.NArg())
	}
	return nil
}

func verifyCmd(args []string, out io.Writer) error {
	var dataDir string
	fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	fs.StringVar(&dataDir, "data", "", "data directory for decode diagnostics (optional)")
	if done, err := parse(fs, args, out); done || err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: verify needs a file", errUsage)
	}
	diag := openDiagnostics(dataDir)
	defer diag.Close()

	var failed int
	for _, path := range fs.Args() {
		var tr persistlog.Trace
		info, err := verifyFile(path, tr.Logf)
		recordDecode(diag, "verify", path, info, &tr, err)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "ok   %s %s %s\n", path, humanize.IBytes(uint64(info.EncodedSize)), info.Digest.Short())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed verification", failed, fs.NArg())
	}
	return nil
}

var errRoundTrip = errors.New("re-encoding differs")

// verifyFile decodes path, encodes the result again and requires the exact
// same bytes and the predicted size.
func verifyFile(path string, logf storage.Logf) (bodyfile.Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bodyfile.Info{}, err
	}
	info := bodyfile.Info{Codec: compress.Detect(data), StoredSize: len(data)}
	raw := data
	if !storage.HasMagic(data) {
		if raw, err = compress.Decompress(data); err != nil {
			return info, fmt.Errorf("%w: %v", storage.ErrInvalidContainer, err)
		}
	}
	info.EncodedSize = len(raw)
	info.Digest = digest.Container(raw)

	c, err := storage.Decode(raw, logf)
	if err != nil {
		return info, err
	}
	again, err := storage.Encode(c)
	if err != nil {
		return info, err
	}
	if n := storage.Size(c); n != len(again) {
		return info, fmt.Errorf("size predicted %d, encoded %d", n, len(again))
	}
	if !bytes.Equal(raw, again) {
		return info, fmt.Errorf("%w: %d bytes in, %d bytes out", errRoundTrip, len(raw), len(again))
	}
	return info, nil
}

func openDiagnostics(dataDir string) *persistlog.DecodeLogger {
	if dataDir == "" {
		return nil
	}
	return persistlog.NewDecodeLogger(dataDir)
}

func recordDecode(l *persistlog.DecodeLogger, op, path string, info bodyfile.Info, tr *persistlog.Trace, err error) {
	ev := persistlog.DecodeEvent{
		Op:          op,
		Path:        path,
		Codec:       string(info.Codec),
		EncodedSize: info.EncodedSize,
		OK:          err == nil,
		Lines:       tr.Lines(),
	}
	if info.Digest != (digest.Hash{}) {
		ev.Digest = info.Digest.String()
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if werr := l.Record(ev); werr != nil {
		fmt.Fprintln(os.Stderr, "decode log:", werr)
	}
}
