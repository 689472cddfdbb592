package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"airdiscount/internal/agent"
	"airdiscount/internal/api"
	"airdiscount/internal/cfg"
	"airdiscount/internal/history"
	"airdiscount/internal/metrics"
	"airdiscount/internal/ml"
	"airdiscount/internal/storage"
	"airdiscount/internal/synth"
)

func main() {
	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := openStorage(settings)
	if store != nil {
		defer store.Close()
	}
	journal := openJournal(settings)
	if journal != nil {
		defer journal.Close()
	}

	predictor := loadPredictor(settings, m, mw)
	runner := synth.New(&settings)

	var analyzer *agent.RouteAnalyzer
	if store != nil {
		analyzer = agent.NewRouteAnalyzer(store)
	}
	var recorder api.Recorder
	if journal != nil {
		recorder = journal
	}

	srv := api.New(&settings, predictor, runner, recorder, analyzer, mw)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	waitForShutdown(srv)
}

// openStorage opens the SQLite store. Without it the service still
// serves predictions; route insights and heuristics go dark.
func openStorage(settings cfg.Settings) *storage.Store {
	store, err := storage.Open(settings.DatabasePath)
	if err != nil {
		log.Warn().Err(err).Str("path", settings.DatabasePath).Msg("Storage unavailable, route insights disabled")
		return nil
	}
	return store
}

func openJournal(settings cfg.Settings) *history.Journal {
	path := filepath.Join(settings.DataDir, "predictions.db")
	journal, err := history.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Journal unavailable, prediction history disabled")
		return nil
	}
	return journal
}

// loadPredictor loads the saved artifact when present, otherwise the
// service starts untrained and /predict answers 503 until one exists.
func loadPredictor(settings cfg.Settings, m *metrics.Metrics, mw *metrics.MetricsWrapper) *ml.Predictor {
	predictor, err := ml.Load(settings.ModelPath)
	if err != nil {
		log.Warn().Err(err).Str("path", settings.ModelPath).Msg("Model artifact unavailable, serving untrained")
		predictor = ml.New()
	}
	predictor.SetMetrics(mw)
	m.SetModelTrained(predictor.Trained())
	return predictor
}

func waitForShutdown(srv *api.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
