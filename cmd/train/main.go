package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"airdiscount/internal/common"
	"airdiscount/internal/ml"
	"airdiscount/internal/storage"
	"airdiscount/internal/tabular"
)

func main() {
	var (
		dbPath   = flag.String("db", common.DefaultDatabasePath, "Path to the SQLite database")
		modelOut = flag.String("model-out", common.DefaultModelPath, "Output path for the model artifact")
		seed     = flag.Int64("seed", -1, "Shuffle training rows with this seed (negative keeps query order)")
		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Println("=== Discount Model Training ===")

	store, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	feats, targets, err := store.TrainingData(context.Background())
	if err != nil {
		if errors.Is(err, storage.ErrNoTrainingData) {
			log.Fatal().Str("path", *dbPath).Msg("No training data found, load a dataset first (see cmd/synthload)")
		}
		log.Fatal().Err(err).Msg("Failed to load training data")
	}
	log.Info().Int("rows", feats.NumRows()).Msg("training data loaded")

	if *seed >= 0 {
		feats, targets = shuffled(feats, targets, *seed)
		log.Info().Int64("seed", *seed).Msg("training rows shuffled")
	}

	predictor := ml.New()
	if err := predictor.Fit(feats, targets); err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}
	if err := predictor.Save(*modelOut); err != nil {
		log.Fatal().Err(err).Msg("Failed to save model artifact")
	}

	info := predictor.Info()
	fmt.Printf("Trained on %d rows (%d encoded features)\n", feats.NumRows(), len(info.FeatureNames))
	fmt.Printf("Model artifact written to %s\n", *modelOut)
}

// shuffled permutes rows and targets together. The fit itself is order
// independent; the seed only fixes the row order for reproducible logs.
func shuffled(feats *tabular.Table, targets []float64, seed int64) (*tabular.Table, []float64) {
	perm := rand.New(rand.NewSource(seed)).Perm(feats.NumRows())
	out, err := feats.Subset(perm)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to shuffle training rows")
	}
	reordered := make([]float64, len(targets))
	for i, p := range perm {
		reordered[i] = targets[p]
	}
	return out, reordered
}
