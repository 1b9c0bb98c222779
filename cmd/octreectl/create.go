package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"voxelbody.ai/internal/persistence/bodyfile"
	"voxelbody.ai/internal/persistence/compress"
	"voxelbody.ai/internal/storage"
	"voxelbody.ai/internal/storage/body"
)

type commonFlags struct {
	name          string
	out           string
	codec         string
	formatVersion int
	accessGridLod uint16
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.name, "name", "", "body name (file name stem)")
	fs.StringVar(&c.out, "out", "", "output path (default ./<name>.octree[.zst|.lz4])")
	fs.StringVar(&c.codec, "codec", "zstd", "compression: zstd, lz4 or none")
	fs.IntVar(&c.formatVersion, "format", storage.FormatVersion2, "container format version (1 or 2)")
	fs.Uint16Var(&c.accessGridLod, "access-grid-lod", storage.DefaultAccessGridLod, "access grid LOD (format 2 only)")
}

func (c *commonFlags) resolve() (compress.Codec, string, error) {
	if strings.TrimSpace(c.name) == "" {
		return "", "", fmt.Errorf("%w: missing --name", errUsage)
	}
	codec, err := compress.ParseCodec(c.codec)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", errUsage, err)
	}
	out := c.out
	if out == "" {
		out = bodyfile.FileName(c.name, codec)
	}
	return codec, out, nil
}

func (c *commonFlags) options() body.Options {
	return body.Options{FormatVersion: c.formatVersion, AccessGridLod: c.accessGridLod}
}

func asteroidCmd(args []string, out io.Writer) error {
	var (
		common        commonFlags
		seed          int32
		size          float64
		generator     int32
		generatorSeed int32
	)
	fs := pflag.NewFlagSet("asteroid", pflag.ContinueOnError)
	common.add(fs)
	fs.Int32Var(&seed, "seed", 0, "provider seed")
	fs.Float64Var(&size, "size", 0, "requested diameter in voxels")
	fs.Int32Var(&generator, "generator", 0, "shape generator index")
	fs.Int32Var(&generatorSeed, "generator-seed", 0, "shape generator seed")
	if done, err := parse(fs, args, out); done || err != nil {
		return err
	}
	codec, path, err := common.resolve()
	if err != nil {
		return err
	}
	c, err := body.NewAsteroid(body.AsteroidParams{
		Seed:          seed,
		Size:          size,
		Generator:     generator,
		GeneratorSeed: generatorSeed,
	}, common.options())
	if err != nil {
		return err
	}
	return writeBody(out, path, c, codec)
}

func planetCmd(args []string, out io.Writer) error {
	var (
		common        commonFlags
		seed          int32
		radius        float64
		generatorName string
	)
	fs := pflag.NewFlagSet("planet", pflag.ContinueOnError)
	common.add(fs)
	fs.Int32Var(&seed, "seed", 0, "provider seed")
	fs.Float64Var(&radius, "radius", 0, "planet radius in voxels")
	fs.StringVar(&generatorName, "generator-name", "", "planet generator definition name")
	if done, err := parse(fs, args, out); done || err != nil {
		return err
	}
	codec, path, err := common.resolve()
	if err != nil {
		return err
	}
	c, err := body.NewPlanet(body.PlanetParams{
		Seed:          seed,
		Radius:        radius,
		GeneratorName: generatorName,
	}, common.options())
	if err != nil {
		return err
	}
	return writeBody(out, path, c, codec)
}

func writeBody(out io.Writer, path string, c *storage.Container, codec compress.Codec) error {
	info, err := bodyfile.Write(path, c, codec)
	if err != nil {
		return err
	}
	s := storage.Summarize(c)
	fmt.Fprintf(out, "wrote %s: %s extent=%d root_lod=%d encoded=%s stored=%s digest=%s\n",
		path, s.Provider, s.Size[0], s.RootLod,
		humanize.IBytes(uint64(info.EncodedSize)), humanize.IBytes(uint64(info.StoredSize)), info.Digest.Short())
	return nil
}
