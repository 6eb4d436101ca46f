// Package main is a one-shot command line search over magic-state factory
// parameters. It evaluates a preset (or a JSON search space), writes the
// successful points to a CSV file and prints the best factory and the
// qubit/error frontier.
//
// Usage:
//
//	factory-search -preset one-level -out ./results
//	factory-search -preset error-rate-scaling -pphys 1e-3,1e-4 -workers 8
//	factory-search -space space.json -precision 256 -cache ./data/cache.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/database"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/frontier"
	"github.com/aristath/magicfactory/internal/modules/noise"
	"github.com/aristath/magicfactory/internal/modules/results"
	"github.com/aristath/magicfactory/internal/modules/search"
	"github.com/aristath/magicfactory/pkg/logger"
)

// options are the parsed command line flags.
type options struct {
	preset    string
	spaceFile string
	pphys     []float64
	workers   int
	precision uint
	qubitCap  int
	outDir    string
	cachePath string
	logLevel  string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("factory-search", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts      options
		pphysList string
		precision int
	)
	fs.StringVar(&opts.preset, "preset", search.PresetOneLevel, "built-in search to run ("+presetNames()+")")
	fs.StringVar(&opts.spaceFile, "space", "", "JSON file with an explicit search space (overrides -preset)")
	fs.StringVar(&pphysList, "pphys", "", "comma-separated physical error rates replacing the search's own")
	fs.IntVar(&opts.workers, "workers", 0, "parallel simulations (0 = logical CPU count)")
	fs.IntVar(&precision, "precision", int(noise.DefaultPrecision), "working precision in bits")
	fs.IntVar(&opts.qubitCap, "qubit-cap", 0, "one-level qubit budget (0 = preset default)")
	fs.StringVar(&opts.outDir, "out", ".", "directory for the CSV output")
	fs.StringVar(&opts.cachePath, "cache", "", "SQLite estimate cache to reuse across runs (optional)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if precision < int(noise.MinPrecision) {
		return opts, fmt.Errorf("-precision %d is below the minimum %d", precision, noise.MinPrecision)
	}
	opts.precision = uint(precision)

	if pphysList != "" {
		for _, raw := range strings.Split(pphysList, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || v <= 0 || v >= 1 {
				return opts, fmt.Errorf("-pphys value %q must be a probability in (0, 1)", raw)
			}
			opts.pphys = append(opts.pphys, v)
		}
	}
	return opts, nil
}

func presetNames() string {
	presets := search.Presets()
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

// buildRequest turns the options into a search request.
func buildRequest(opts options) (search.Request, error) {
	var space search.Space
	if opts.spaceFile != "" {
		raw, err := os.ReadFile(opts.spaceFile)
		if err != nil {
			return search.Request{}, fmt.Errorf("failed to read search space: %w", err)
		}
		if err := json.Unmarshal(raw, &space); err != nil {
			return search.Request{}, fmt.Errorf("failed to parse search space %s: %w", opts.spaceFile, err)
		}
	} else {
		preset, err := search.LookupPreset(opts.preset)
		if err != nil {
			return search.Request{}, err
		}
		space = preset.Space
	}
	if len(opts.pphys) > 0 {
		space.PPhys = opts.pphys
	}
	return search.Request{Space: &space, QubitCap: opts.qubitCap, Workers: opts.workers}, nil
}

func openCache(path string, log zerolog.Logger) (distillation.Cache, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileCache,
		Name:    database.CacheName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate cache: %w", err)
	}
	log.Info().Str("path", db.Path()).Msg("Using estimate cache")
	return results.NewCache(db), func() { db.Close() }, nil
}

// run executes one search and reports to stdout. It returns the path of the
// written CSV.
func run(ctx context.Context, opts options, stdout io.Writer, log zerolog.Logger) (string, error) {
	req, err := buildRequest(opts)
	if err != nil {
		return "", err
	}

	cache, closeCache, err := openCache(opts.cachePath, log)
	if err != nil {
		return "", err
	}
	defer closeCache()

	svc := distillation.NewService(opts.precision, cache, log)
	runner := search.NewRunner(svc, nil, nil, search.RunnerConfig{Workers: opts.workers}, log)

	summary, err := runner.Run(ctx, req)
	if summary == nil {
		return "", err
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return "", err
	}
	// An interrupted search still writes what it evaluated

	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	proto := summary.Run.Protocol
	path := filepath.Join(opts.outDir, results.FileName(results.FileStem(proto), summary.Run.StartedAt))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	written, err := results.WriteCSV(f, proto, summary.Rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}

	report(stdout, summary, written, path)
	return path, ctx.Err()
}

func report(w io.Writer, summary *search.Summary, written int, path string) {
	run := summary.Run
	fmt.Fprintf(w, "%s: %d points evaluated, %d rejected, %d rows written to %s\n",
		run.Protocol, run.Completed, run.Failed, written, path)

	if summary.Best == nil {
		fmt.Fprintln(w, "No factory satisfied the search.")
		return
	}
	fmt.Fprintf(w, "\nBest factory (rating %.3f):\n", summary.BestRating)
	best := results.Factories([]results.Row{*summary.Best})[0]
	fmt.Fprint(w, best.String())

	hull := frontier.LowerHull(results.Factories(summary.Rows))
	fmt.Fprintf(w, "\nFrontier (%d factories):\n", len(hull))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUBITS\tERROR RATE\tCODE CYCLES\tNAME")
	for _, f := range hull {
		fmt.Fprintf(tw, "%d\t%.3e\t%.1f\t%s\n", f.Qubits, f.ErrorRate, f.Cycles, f.Name)
	}
	tw.Flush()
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(logger.Config{Level: opts.logLevel, Pretty: true})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	path, err := run(ctx, opts, os.Stdout, log)
	if err != nil {
		log.Error().Err(err).Str("csv", path).Msg("Search failed")
		stop()
		os.Exit(1)
	}
	log.Info().Str("csv", path).Dur("elapsed", time.Since(start)).Msg("Search finished")
}
