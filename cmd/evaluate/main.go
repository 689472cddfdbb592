package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"airdiscount/internal/common"
	"airdiscount/internal/ml"
	"airdiscount/internal/storage"
)

func main() {
	var (
		dbPath    = flag.String("db", common.DefaultDatabasePath, "Path to the SQLite database")
		modelPath = flag.String("model", common.DefaultModelPath, "Path to the model artifact")
		holdout   = flag.Float64("holdout", 0.25, "Fraction of rows held out for scoring")
		seed      = flag.Int64("seed", 42, "Seed for the train/test split")
		samples   = flag.Int("samples", 5, "Number of sample predictions to print")
		logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	predictor, err := ml.Load(*modelPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *modelPath).Msg("Failed to load model artifact, train one first (see cmd/train)")
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	feats, targets, err := store.TrainingData(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load evaluation data")
	}

	trainIdx, testIdx, err := ml.SplitIndices(feats.NumRows(), *holdout, *seed)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to split rows")
	}

	testFeats, err := feats.Subset(testIdx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build holdout table")
	}
	testTargets := pick(targets, testIdx)
	trainTargets := pick(targets, trainIdx)

	predicted, err := predictor.Predict(testFeats)
	if err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
	}

	modelScore, err := ml.Evaluate(predicted, testTargets)
	if err != nil {
		log.Fatal().Err(err).Msg("Scoring failed")
	}
	baseScore, err := ml.Evaluate(ml.MeanBaseline(trainTargets, len(testTargets)), testTargets)
	if err != nil {
		log.Fatal().Err(err).Msg("Baseline scoring failed")
	}

	fmt.Println("=== Discount Model Evaluation ===")
	fmt.Printf("Rows: %d train / %d holdout (fraction %.2f, seed %d)\n\n", len(trainIdx), len(testIdx), *holdout, *seed)
	fmt.Printf("%-8s %12s %12s\n", "metric", "model", "baseline")
	fmt.Printf("%-8s %12.4f %12.4f\n", "MAE", modelScore.MAE, baseScore.MAE)
	fmt.Printf("%-8s %12.4f %12.4f\n", "MSE", modelScore.MSE, baseScore.MSE)
	fmt.Printf("%-8s %12.4f %12.4f\n", "RMSE", modelScore.RMSE, baseScore.RMSE)
	fmt.Printf("%-8s %12.4f %12.4f\n", "R2", modelScore.R2, baseScore.R2)

	if *samples > 0 {
		fmt.Println("\nSample predictions:")
		for i := 0; i < *samples && i < len(predicted); i++ {
			fmt.Printf("  row %-5d predicted %7.2f   actual %7.2f\n", testIdx[i], predicted[i], testTargets[i])
		}
	}

	if modelScore.MAE >= baseScore.MAE {
		log.Warn().
			Float64("model_mae", modelScore.MAE).
			Float64("baseline_mae", baseScore.MAE).
			Msg("model does not beat the mean baseline")
	}
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
