package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"voxelbody.ai/internal/config"
	"voxelbody.ai/internal/persistence/archive"
	"voxelbody.ai/internal/persistence/bodyfile"
	"voxelbody.ai/internal/persistence/compress"
	"voxelbody.ai/internal/persistence/digest"
	"voxelbody.ai/internal/persistence/indexdb"
	"voxelbody.ai/internal/persistence/r2s3"
	"voxelbody.ai/internal/storage"
)

func buildCmd(args []string, out io.Writer, logger *log.Logger) error {
	var (
		configPath string
		only       []string
	)
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	fs.StringVar(&configPath, "config", "./bodies.yaml", "bodies config path")
	fs.StringSliceVar(&only, "only", nil, "build only these body names")
	if done, err := parse(fs, args, out); done || err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return buildAll(context.Background(), cfg, only, logger)
}

type builder struct {
	cfg    config.Config
	logger *log.Logger
	index  *indexdb.SQLiteIndex
	mirror *r2s3.Mirror
}

func buildAll(ctx context.Context, cfg config.Config, only []string, logger *log.Logger) error {
	b := &builder{cfg: cfg, logger: logger}
	if !cfg.Index.Disabled {
		idx, err := indexdb.OpenSQLite(cfg.Index.Path)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		b.index = idx
		defer func() {
			if err := idx.Close(); err != nil {
				logger.Printf("index close: %v", err)
			}
			if st := idx.Stats(); st.DropTotal > 0 || st.WriteFailTotal > 0 {
				logger.Printf("index dropped=%d failed=%d", st.DropTotal, st.WriteFailTotal)
			}
		}()
	}
	if cfg.R2.Enabled() {
		client, err := r2s3.New(cfg.R2.Endpoint, cfg.R2.Bucket, cfg.R2.AccessKeyID, cfg.R2.SecretAccessKey)
		if err != nil {
			return fmt.Errorf("r2: %w", err)
		}
		b.mirror = r2s3.NewMirror(client, cfg.R2.Prefix, cfg.R2.Workers, cfg.R2.QueueCapacity, 5*time.Second, logger)
		defer func() {
			b.mirror.Close()
			st := b.mirror.Stats()
			logger.Printf("r2 mirror uploaded=%d failed=%d dropped=%d", st.UploadSuccessTotal, st.UploadFailTotal, st.DroppedTotal)
		}()
	}

	want := map[string]bool{}
	for _, n := range only {
		want[n] = true
	}
	var failed int
	for _, spec := range cfg.Bodies {
		if len(want) > 0 && !want[spec.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.buildOne(spec); err != nil {
			failed++
			logger.Printf("body %s: %v", spec.Name, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d bodies failed", failed)
	}
	return nil
}

func (b *builder) buildOne(spec config.BodySpec) error {
	c, err := b.cfg.Build(spec)
	if err != nil {
		return err
	}
	raw, err := storage.Encode(c)
	if err != nil {
		return err
	}
	sum := digest.Container(raw)
	codec := b.cfg.Codec()
	path := filepath.Join(b.cfg.DataDir, "bodies", bodyfile.FileName(spec.Name, codec))

	if prev, ok := b.previous(path); ok {
		if prev.Digest == sum {
			b.logger.Printf("body %s unchanged digest=%s", spec.Name, sum.Short())
			return nil
		}
		archived, _, err := archive.ArchiveBody(b.cfg.DataDir, spec.Name, path, prev)
		if err != nil {
			return fmt.Errorf("archive previous: %w", err)
		}
		b.logger.Printf("body %s archived previous=%s to %s", spec.Name, prev.Digest.Short(), archived)
	}

	info, err := bodyfile.Write(path, c, codec)
	if err != nil {
		return err
	}
	b.logger.Printf("body %s wrote %s encoded=%s stored=%s digest=%s",
		spec.Name, path, humanize.IBytes(uint64(info.EncodedSize)), humanize.IBytes(uint64(info.StoredSize)), info.Digest.Short())

	b.index.RecordBody(indexdb.BodyRow{
		Name:          spec.Name,
		Kind:          spec.Kind,
		Seed:          int64(spec.Seed),
		Extent:        int(c.Meta.SizeX),
		FormatVersion: c.FormatVersion,
		Digest:        info.Digest.String(),
		Codec:         string(info.Codec),
		EncodedSize:   info.EncodedSize,
		StoredSize:    info.StoredSize,
		Path:          path,
		Summary:       storage.Summarize(c),
	})
	b.mirror.Enqueue(r2s3.Upload{Name: spec.Name, Path: path, Info: info})
	return nil
}

// previous describes the file currently at path. A file that no longer
// decodes is still archived, named by the digest of its stored bytes.
func (b *builder) previous(path string) (bodyfile.Info, bool) {
	_, info, err := bodyfile.Read(path, nil)
	if err == nil {
		return info, true
	}
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return bodyfile.Info{}, false
	}
	b.logger.Printf("previous %s does not decode: %v", path, err)
	codec := compress.Detect(data)
	return bodyfile.Info{Digest: digest.Container(data), Codec: codec, StoredSize: len(data)}, true
}
