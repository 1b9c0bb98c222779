package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"voxelbody.ai/internal/persistence/digest"
	"voxelbody.ai/internal/persistence/indexdb"
)

func listCmd(args []string, out io.Writer) error {
	var dataDir, indexPath string
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	fs.StringVar(&dataDir, "data", "./data", "data directory")
	fs.StringVar(&indexPath, "index", "", "index path (default <data>/index.db)")
	if done, err := parse(fs, args, out); done || err != nil {
		return err
	}
	if indexPath == "" {
		indexPath = filepath.Join(dataDir, "index.db")
	}
	if _, err := os.Stat(indexPath); err != nil {
		return fmt.Errorf("no index at %s: run build first", indexPath)
	}
	idx, err := indexdb.OpenSQLite(indexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	rows, err := idx.Bodies(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSEED\tEXTENT\tFORMAT\tSTORED\tDIGEST\tRECORDED\tPATH")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\tv%d\t%s\t%s\t%s\t%s\n",
			r.Name, r.Kind, r.Seed, r.Extent, r.FormatVersion, humanize.IBytes(uint64(r.StoredSize)), shortDigest(r.Digest), r.RecordedAt, r.Path)
	}
	return tw.Flush()
}

// shortDigest abbreviates a recorded digest; rows whose digest does not parse
// are flagged rather than truncated.
func shortDigest(s string) string {
	h, err := digest.Parse(s)
	if err != nil {
		return "invalid"
	}
	return h.Short()
}
