package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"airdiscount/internal/cfg"
	"airdiscount/internal/common"
	"airdiscount/internal/storage"
	"airdiscount/internal/synth"
)

func main() {
	var (
		count    = flag.Int("count", 100, "Records to generate per collection")
		seed     = flag.Int("seed", common.DefaultSynthSeed, "Random seed passed to the generator")
		modelDir = flag.String("model-dir", "", "Schema directory for the generator (default from config)")
		dbPath   = flag.String("db", "", "Path to the SQLite database (default from config)")
		outDir   = flag.String("out", "", "Directory for the raw generator output (default <data dir>/synthetic_output)")
		noLoad   = flag.Bool("no-load", false, "Generate only, skip loading into the database")
		noClear  = flag.Bool("no-clear", false, "Keep existing rows instead of clearing tables first")
		sample   = flag.Bool("sample", false, "Skip the generator and seed the built-in sample rows")
		logLevel = flag.String("log-level", "", "Log level override (default from config)")
	)
	flag.Parse()

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *logLevel == "" {
		*logLevel = settings.LogLevel
	}
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *modelDir == "" {
		*modelDir = settings.SynthModelDir
	}
	if *dbPath == "" {
		*dbPath = settings.DatabasePath
	}
	if *outDir == "" {
		*outDir = filepath.Join(settings.DataDir, "synthetic_output")
	}

	ctx := context.Background()

	if *sample {
		store := openStore(*dbPath)
		defer store.Close()
		if !*noClear {
			clearTables(ctx, store)
		}
		if err := store.SeedSampleData(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed sample data")
		}
		report(ctx, store)
		return
	}

	runner := synth.New(&settings)
	if !runner.Available() {
		log.Fatal().Msg("synth binary not found, install it or rerun with -sample for the built-in rows")
	}

	ds, raw, err := runner.Generate(ctx, *modelDir, *count, *seed)
	if err != nil {
		log.Fatal().Err(err).Msg("Generation failed")
	}

	outFile := filepath.Join(*outDir, "generated_data.json")
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", *outDir).Msg("Failed to create output directory")
	}
	if err := os.WriteFile(outFile, raw, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", outFile).Msg("Failed to write generator output")
	}

	fmt.Printf("Generated %d records (%d passengers, %d routes, %d discounts)\n",
		ds.Total(), len(ds.Passengers), len(ds.Routes), len(ds.Discounts))
	fmt.Printf("Raw output written to %s\n", outFile)

	if *noLoad {
		return
	}

	store := openStore(*dbPath)
	defer store.Close()

	if !*noClear {
		clearTables(ctx, store)
	}
	loaded, err := synth.LoadIntoStore(ctx, store, ds)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}
	fmt.Printf("Loaded %d passengers, %d routes, %d discounts\n",
		loaded.Passengers, loaded.Routes, loaded.Discounts)
	report(ctx, store)
}

func openStore(path string) *storage.Store {
	store, err := storage.Open(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to open database")
	}
	return store
}

func clearTables(ctx context.Context, store *storage.Store) {
	if err := store.ClearAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to clear tables")
	}
	log.Info().Msg("existing rows cleared")
}

func report(ctx context.Context, store *storage.Store) {
	counts, err := store.Counts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count rows")
	}
	fmt.Printf("Database now holds %d passengers, %d routes, %d discounts\n",
		counts.Passengers, counts.Routes, counts.Discounts)
}
