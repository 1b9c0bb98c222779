package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/pflag"
)

// errUsage marks bad invocations; main exits 2 for them.
var errUsage = errors.New("usage")

func main() {
	logger := log.New(os.Stdout, "[octreectl] ", log.LstdFlags|log.Lmicroseconds)
	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, logger *log.Logger) error {
	if len(args) == 0 {
		printUsage(out)
		return fmt.Errorf("%w: missing command", errUsage)
	}
	switch args[0] {
	case "asteroid":
		return asteroidCmd(args[1:], out)
	case "planet":
		return planetCmd(args[1:], out)
	case "inspect":
		return inspectCmd(args[1:], out)
	case "verify":
		return verifyCmd(args[1:], out)
	case "build":
		return buildCmd(args[1:], out, logger)
	case "list":
		return listCmd(args[1:], out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `octreectl builds and checks octree body containers.

Usage:
  octreectl asteroid --name NAME --size N [--seed S] [--generator G] [--generator-seed GS] [--out PATH] [--codec zstd|lz4|none]
  octreectl planet   --name NAME --radius R --generator-name GEN [--seed S] [--out PATH] [--codec zstd|lz4|none]
  octreectl inspect  [--json] [--data DIR] FILE...
  octreectl verify   [--data DIR] FILE...
  octreectl build    [--config bodies.yaml]
  octreectl list     [--data DIR] [--index PATH]
`)
}

// parse runs fs over args. -h prints the flag set and succeeds with done=true.
func parse(fs *pflag.FlagSet, args []string, out io.Writer) (done bool, err error) {
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", errUsage, err)
	}
	return false, nil
}
