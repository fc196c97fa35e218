// Package main implements the fieldconv binary: it converts field boundary
// datasets to GeoParquet using the built-in converter registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fieldconv/fieldconv/internal/config"
	"github.com/fieldconv/fieldconv/internal/convert"
	"github.com/fieldconv/fieldconv/internal/datasets"
	cerrors "github.com/fieldconv/fieldconv/internal/errors"
	"github.com/fieldconv/fieldconv/internal/spec"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes by failure phase, for scripting around the converter.
const (
	exitOK          = 0
	exitUsage       = 1
	exitAcquisition = 2
	exitSchema      = 3
	exitValidation  = 4
	exitWrite       = 5
	exitInternal    = 6
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var (
		configFile  string
		dataDir     string
		outDir      string
		compression string
		inputs      stringList
		noCache     bool
		noColl      bool
		listOnly    bool
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for working files")
	flag.StringVar(&outDir, "out", "", "Directory for converted outputs")
	flag.StringVar(&compression, "compression", "", "Parquet compression codec (uncompressed, snappy, gzip, brotli, zstd, lz4)")
	flag.Var(&inputs, "i", "Source file or URI, overrides the converter's default sources (repeatable)")
	flag.BoolVar(&noCache, "no-cache", false, "Disable the download cache")
	flag.BoolVar(&noColl, "no-collection", false, "Skip writing the collection metadata JSON")
	flag.BoolVar(&listOnly, "list", false, "List the available converters and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fieldconv - field boundary dataset converter\n\n")
		fmt.Fprintf(os.Stderr, "Usage: fieldconv [options] <converter> [<converter>...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fieldconv -list\n")
		fmt.Fprintf(os.Stderr, "  fieldconv fieldscapes_denmark_2021\n")
		fmt.Fprintf(os.Stderr, "  fieldconv -i /data/parcels.gpkg -out ./out fieldscapes_denmark_2021\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FIELDCONV_DATA_DIR            Base directory for working files\n")
		fmt.Fprintf(os.Stderr, "  FIELDCONV_OUTPUT_DIR          Directory for converted outputs\n")
		fmt.Fprintf(os.Stderr, "  FIELDCONV_OUTPUT_COMPRESSION  Parquet compression codec\n")
		fmt.Fprintf(os.Stderr, "  FIELDCONV_CACHE_DIR           Download cache directory\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("fieldconv version %s (commit: %s)\n", version, commit)
		os.Exit(exitOK)
	}

	if listOnly {
		for _, name := range datasets.Names() {
			fmt.Println(name)
		}
		os.Exit(exitOK)
	}

	names := flag.Args()
	if len(names) == 0 {
		flag.Usage()
		os.Exit(exitUsage)
	}
	if len(inputs) > 0 && len(names) > 1 {
		log.Fatal("-i overrides sources for exactly one converter")
	}

	cfg, err := loadConfig(configFile, dataDir, outDir, compression, noCache, noColl)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to prepare directories: %v", err)
	}

	specs := make([]*spec.Spec, 0, len(names))
	for _, name := range names {
		sp, err := datasets.Get(name, inputs...)
		if err != nil {
			log.Printf("%v", err)
			os.Exit(exitUsage)
		}
		specs = append(specs, sp)
	}

	engine, err := convert.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if len(specs) == 1 {
		result, err := engine.Convert(ctx, specs[0])
		if err != nil {
			log.Printf("%s: %v", specs[0].ID, err)
			os.Exit(exitCode(err))
		}
		fmt.Printf("%s: %d rows -> %s\n", result.DatasetID, result.Rows, result.OutputPath)
		return
	}

	results, err := engine.All(ctx, specs)
	for _, result := range results {
		fmt.Printf("%s: %d rows -> %s\n", result.DatasetID, result.Rows, result.OutputPath)
	}
	if err != nil {
		log.Printf("%v", err)
		os.Exit(exitInternal)
	}
}

// loadConfig loads configuration from file, environment, and command line
// flags, in increasing priority.
func loadConfig(configFile, dataDir, outDir, compression string, noCache, noColl bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if compression != "" {
		cfg.Output.Compression = compression
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noColl {
		cfg.Output.WriteCollection = false
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// exitCode maps a conversion error to a process exit code by phase.
func exitCode(err error) int {
	switch cerrors.GetCategory(err) {
	case cerrors.ErrCategoryAcquisition:
		return exitAcquisition
	case cerrors.ErrCategorySchema:
		return exitSchema
	case cerrors.ErrCategoryValidation:
		return exitValidation
	case cerrors.ErrCategoryWrite:
		return exitWrite
	default:
		return exitInternal
	}
}
