package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelbody.ai/internal/config"
	"voxelbody.ai/internal/persistence/bodyfile"
	"voxelbody.ai/internal/persistence/digest"
	"voxelbody.ai/internal/persistence/indexdb"
	"voxelbody.ai/internal/storage"
)

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	if err := run(nil, &out, discard()); !errors.Is(err, errUsage) {
		t.Fatalf("no args: %v", err)
	}
	if err := run([]string{"frobnicate"}, &out, discard()); !errors.Is(err, errUsage) {
		t.Fatalf("unknown: %v", err)
	}
	if err := run([]string{"asteroid", "--size", "10"}, &out, discard()); !errors.Is(err, errUsage) {
		t.Fatalf("missing name: %v", err)
	}
	if err := run([]string{"help"}, &out, discard()); err != nil {
		t.Fatalf("help: %v", err)
	}
}

func TestAsteroidInspectVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rock.octree.lz4")
	var out bytes.Buffer
	err := run([]string{"asteroid", "--name", "rock", "--size", "100", "--seed", "3", "--codec", "lz4", "--out", path}, &out, discard())
	if err != nil {
		t.Fatalf("asteroid: %v", err)
	}
	if !strings.Contains(out.String(), "extent=128") {
		t.Fatalf("asteroid output: %q", out.String())
	}

	out.Reset()
	if err := run([]string{"inspect", "--data", dir, path}, &out, discard()); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"provider   shape seed=3 size=100", "size       128x128x128", "(lz4)"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out.String())
		}
	}
	if m, _ := filepath.Glob(filepath.Join(dir, "diagnostics", "decode-*.jsonl.zst")); len(m) != 1 {
		t.Fatalf("diagnostics files=%v", m)
	}

	out.Reset()
	if err := run([]string{"verify", path}, &out, discard()); err != nil {
		t.Fatalf("verify: %v\n%s", err, out.String())
	}
	if !strings.HasPrefix(out.String(), "ok ") {
		t.Fatalf("verify output: %q", out.String())
	}
}

func TestVerify_DetectsTrailingBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moon.octree")
	var out bytes.Buffer
	err := run([]string{"planet", "--name", "moon", "--radius", "50", "--generator-name", "Moon", "--codec", "none", "--out", path}, &out, discard())
	if err != nil {
		t.Fatalf("planet: %v", err)
	}
	if _, err := verifyFile(path, nil); err != nil {
		t.Fatalf("verify clean file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(path, append(data, 0xAA), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := verifyFile(path, nil); !errors.Is(err, errRoundTrip) {
		t.Fatalf("trailing byte: %v", err)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := verifyFile(path, nil); !errors.Is(err, storage.ErrInvalidContainer) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestBuildAll(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := filepath.Join(dataDir, "bodies.yaml")
	writeCfg := func(seed string) {
		doc := "data_dir: " + dataDir + "\nbodies:\n" +
			"  - {name: ceres, kind: asteroid, seed: " + seed + ", size: 900}\n" +
			"  - {name: alien, kind: planet, seed: 2, radius: 300, generator_name: Alien}\n"
		if err := os.WriteFile(cfgPath, []byte(doc), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	build := func() {
		t.Helper()
		cfg, err := config.Load(cfgPath)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if err := buildAll(context.Background(), cfg, nil, discard()); err != nil {
			t.Fatalf("buildAll: %v", err)
		}
	}

	writeCfg("1")
	build()
	ceres := filepath.Join(dataDir, "bodies", "ceres.octree.zst")
	_, first, err := bodyfile.Read(ceres, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	// Unchanged config: nothing archived.
	build()
	if _, err := os.Stat(filepath.Join(dataDir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archive written for an unchanged body")
	}

	writeCfg("2")
	build()
	archived := filepath.Join(dataDir, "archives", "ceres", first.Digest.Short()+".octree.zst")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("previous body not archived: %v", err)
	}

	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	row, err := idx.Lookup(context.Background(), "ceres")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	hist, err := idx.History(context.Background(), "ceres")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if row.Digest == first.Digest.String() || row.Seed != 2 || row.Extent != 1024 || row.Summary.Provider != "shape" {
		t.Fatalf("row=%+v", row)
	}
	if len(hist) != 2 || hist[0] != first.Digest.String() {
		t.Fatalf("history=%v", hist)
	}

	var out bytes.Buffer
	if err := run([]string{"list", "--data", dataDir}, &out, discard()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "alien") || !strings.Contains(out.String(), row.Digest[:16]) {
		t.Fatalf("list output:\n%s", out.String())
	}
}

func TestList_FlagsMalformedDigest(t *testing.T) {
	dataDir := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	good := digest.Container([]byte("body"))
	idx.RecordBody(indexdb.BodyRow{Name: "good", Kind: "asteroid", Digest: good.String(), Codec: "zstd", Path: "good.octree.zst"})
	idx.RecordBody(indexdb.BodyRow{Name: "bad", Kind: "asteroid", Digest: "zz-not-hex", Codec: "zstd", Path: "bad.octree.zst"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var out bytes.Buffer
	if err := run([]string{"list", "--data", dataDir}, &out, discard()); err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, line := range strings.Split(out.String(), "\n") {
		switch {
		case strings.HasPrefix(line, "good "):
			if !strings.Contains(line, good.Short()) {
				t.Fatalf("good row: %q", line)
			}
		case strings.HasPrefix(line, "bad "):
			if !strings.Contains(line, "invalid") || strings.Contains(line, "zz-not-hex") {
				t.Fatalf("bad row: %q", line)
			}
		}
	}
	if !strings.Contains(out.String(), "invalid") {
		t.Fatalf("list output:\n%s", out.String())
	}
}
