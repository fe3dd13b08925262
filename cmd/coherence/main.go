// Command coherence drives the cache-coherence simulator from the command
// line (spec.md §6): coherence <protocol> <input_name> <cache_size_bytes>
// <associativity> <block_size_bytes>. Invoked with no arguments, it runs the
// built-in configuration and trace pair embedded below.
package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/ehrlich-b/cachesim"
	"github.com/ehrlich-b/cachesim/internal/logging"
	"github.com/ehrlich-b/cachesim/internal/trace"
)

//go:embed builtin/*.data
var builtinTraces embed.FS

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if err := run(*verbose, flag.Args()); err != nil {
		logging.Error("run failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(verbose bool, args []string) error {
	logConfig := logging.DefaultConfig()
	if verbose {
		logConfig.Level = logging.LevelDebug
	}
	logging.SetDefault(logging.NewLogger(logConfig))

	spec, traces, err := resolveInput(args)
	if err != nil {
		return err
	}

	rep, err := cachesim.Run(context.Background(), spec, traces, nil)
	if err != nil {
		return err
	}
	rep.Print(os.Stdout)
	return nil
}

// resolveInput implements spec.md §6's two call shapes: no arguments uses
// the built-in config and embedded trace pair; five positional arguments
// name a protocol, an input trace name, and the cache geometry.
func resolveInput(args []string) (cachesim.SystemSpec, [][]cachesim.Instr, error) {
	if len(args) == 0 {
		spec := cachesim.DefaultSystemSpec(cachesim.MESI)
		fsys, err := fs.Sub(builtinTraces, "builtin")
		if err != nil {
			return cachesim.SystemSpec{}, nil, err
		}
		traces, err := trace.LoadFS(fsys, cachesim.DefaultInputName)
		if err != nil {
			return cachesim.SystemSpec{}, nil, err
		}
		return spec, traces, nil
	}

	if len(args) != 5 {
		return cachesim.SystemSpec{}, nil, errors.New(
			"usage: coherence <protocol> <input_name> <cache_size_bytes> <associativity> <block_size_bytes>")
	}

	protocol, err := cachesim.ParseProtocol(args[0])
	if err != nil {
		return cachesim.SystemSpec{}, nil, err
	}
	cacheSize, err := parseUint32(args[2], "cache_size_bytes")
	if err != nil {
		return cachesim.SystemSpec{}, nil, err
	}
	assoc, err := parseUint32(args[3], "associativity")
	if err != nil {
		return cachesim.SystemSpec{}, nil, err
	}
	blockSize, err := parseUint32(args[4], "block_size_bytes")
	if err != nil {
		return cachesim.SystemSpec{}, nil, err
	}

	spec, err := cachesim.NewSystemSpec(protocol,
		cachesim.DefaultWordSize, cachesim.DefaultAddressSize, blockSize,
		cacheSize, assoc, cachesim.DefaultMemLat, cachesim.DefaultBusWordTfLat)
	if err != nil {
		return cachesim.SystemSpec{}, nil, err
	}

	traces, err := trace.Load(".", args[1])
	if err != nil {
		return cachesim.SystemSpec{}, nil, err
	}
	return spec, traces, nil
}

func parseUint32(s, field string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return uint32(n), nil
}
