// Package config loads bodies.yaml: where body files live, how they are
// encoded and which procedural bodies to build.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelbody.ai/internal/persistence/compress"
	"voxelbody.ai/internal/storage"
	"voxelbody.ai/internal/storage/body"
	"voxelbody.ai/internal/storage/chunk"
)

const (
	EnvR2AccessKeyID     = "OCTREE_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "OCTREE_R2_SECRET_ACCESS_KEY"

	KindAsteroid = "asteroid"
	KindPlanet   = "planet"
)

//go:embed bodies.schema.json
var schemaJSON string

type Config struct {
	DataDir       string         `yaml:"data_dir"`
	FormatVersion int            `yaml:"format_version"`
	AccessGridLod int            `yaml:"access_grid_lod"`
	Compression   string         `yaml:"compression"`
	Index         IndexConfig    `yaml:"index"`
	R2            R2Config       `yaml:"r2"`
	Materials     []MaterialSpec `yaml:"materials,omitempty"`
	Bodies        []BodySpec     `yaml:"bodies"`
}

type IndexConfig struct {
	// Path defaults to <data_dir>/index.db.
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type R2Config struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Workers         int    `yaml:"workers"`
	QueueCapacity   int    `yaml:"queue_capacity"`
}

// Enabled reports whether bodies should be mirrored.
func (r R2Config) Enabled() bool { return r.Endpoint != "" || r.Bucket != "" }

type MaterialSpec struct {
	Index int32  `yaml:"index"`
	Name  string `yaml:"name"`
}

type BodySpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Seed int32  `yaml:"seed"`

	// asteroid
	Size          float64 `yaml:"size,omitempty"`
	Generator     int32   `yaml:"generator,omitempty"`
	GeneratorSeed int32   `yaml:"generator_seed,omitempty"`

	// planet
	Radius        float64 `yaml:"radius,omitempty"`
	GeneratorName string  `yaml:"generator_name,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.applyEnv()
		cfg.Normalize()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := validateSchema(b); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.applyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DataDir:       "./data",
		FormatVersion: storage.FormatVersion2,
		AccessGridLod: storage.DefaultAccessGridLod,
		Compression:   string(compress.Zstd),
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvR2AccessKeyID)); v != "" {
		c.R2.AccessKeyID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvR2SecretAccessKey)); v != "" {
		c.R2.SecretAccessKey = v
	}
}

// Normalize fills derived defaults. Load calls it.
func (c *Config) Normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.FormatVersion == 0 {
		c.FormatVersion = storage.FormatVersion2
	}
	if c.AccessGridLod == 0 {
		c.AccessGridLod = storage.DefaultAccessGridLod
	}
	c.Compression = strings.ToLower(strings.TrimSpace(c.Compression))
	if c.Compression == "" {
		c.Compression = string(compress.Zstd)
	}
	if c.Index.Path == "" {
		c.Index.Path = filepath.Join(c.DataDir, "index.db")
	}
	c.R2.Prefix = strings.Trim(c.R2.Prefix, "/")
	if c.R2.Workers <= 0 {
		c.R2.Workers = 2
	}
	if c.R2.QueueCapacity <= 0 {
		c.R2.QueueCapacity = 256
	}
	for i := range c.Bodies {
		c.Bodies[i].Kind = strings.ToLower(strings.TrimSpace(c.Bodies[i].Kind))
	}
}

func (c Config) Validate() error {
	if c.FormatVersion != storage.FormatVersion1 && c.FormatVersion != storage.FormatVersion2 {
		return fmt.Errorf("format_version %d: want 1 or 2", c.FormatVersion)
	}
	if c.AccessGridLod < 0 || c.AccessGridLod > 0xFFFF {
		return fmt.Errorf("access_grid_lod %d out of range", c.AccessGridLod)
	}
	if _, err := compress.ParseCodec(c.Compression); err != nil {
		return err
	}
	if c.R2.Enabled() {
		if c.R2.Endpoint == "" || c.R2.Bucket == "" {
			return fmt.Errorf("r2: endpoint and bucket are both required")
		}
		if c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" {
			return fmt.Errorf("r2: credentials missing (set %s and %s)", EnvR2AccessKeyID, EnvR2SecretAccessKey)
		}
	}
	seen := map[string]bool{}
	for i, b := range c.Bodies {
		if b.Name == "" || strings.ContainsAny(b.Name, `/\`) || b.Name == "." || b.Name == ".." {
			return fmt.Errorf("bodies[%d]: invalid name %q", i, b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("bodies[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true
		switch b.Kind {
		case KindAsteroid:
			if b.Size <= 0 {
				return fmt.Errorf("bodies[%d] %s: asteroid needs size > 0", i, b.Name)
			}
		case KindPlanet:
			if b.Radius <= 0 {
				return fmt.Errorf("bodies[%d] %s: planet needs radius > 0", i, b.Name)
			}
			if strings.TrimSpace(b.GeneratorName) == "" {
				return fmt.Errorf("bodies[%d] %s: planet needs generator_name", i, b.Name)
			}
		default:
			return fmt.Errorf("bodies[%d] %s: unknown kind %q", i, b.Name, b.Kind)
		}
	}
	return nil
}

// Codec is the configured compression. Validate guarantees it parses.
func (c Config) Codec() compress.Codec {
	codec, _ := compress.ParseCodec(c.Compression)
	return codec
}

// BodyOptions are the factory options shared by every configured body.
func (c Config) BodyOptions() body.Options {
	opts := body.Options{
		FormatVersion: c.FormatVersion,
		AccessGridLod: uint16(c.AccessGridLod),
	}
	if len(c.Materials) > 0 {
		opts.Materials = make([]chunk.MaterialEntry, len(c.Materials))
		for i, m := range c.Materials {
			opts.Materials[i] = chunk.MaterialEntry{Index: m.Index, Name: m.Name}
		}
	}
	return opts
}

// Build creates the container for one configured body.
func (c Config) Build(b BodySpec) (*storage.Container, error) {
	switch b.Kind {
	case KindAsteroid:
		return body.NewAsteroid(body.AsteroidParams{
			Seed:          b.Seed,
			Size:          b.Size,
			Generator:     b.Generator,
			GeneratorSeed: b.GeneratorSeed,
		}, c.BodyOptions())
	case KindPlanet:
		return body.NewPlanet(body.PlanetParams{
			Seed:          b.Seed,
			Radius:        b.Radius,
			GeneratorName: b.GeneratorName,
		}, c.BodyOptions())
	default:
		return nil, fmt.Errorf("unknown body kind %q", b.Kind)
	}
}

var bodiesSchema = jsonschema.MustCompileString("bodies.schema.json", schemaJSON)

// validateSchema checks the raw document, so unknown keys and wrong types are
// reported before defaults hide them.
func validateSchema(doc []byte) error {
	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	j, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("not representable as JSON: %w", err)
	}
	var inst any
	if err := json.Unmarshal(j, &inst); err != nil {
		return err
	}
	return bodiesSchema.Validate(inst)
}
