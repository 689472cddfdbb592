package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"airdiscount/internal/common"
	"airdiscount/internal/synth"
)

// GenerateRequest asks the synth CLI for synthetic data. Size and Seed
// are pointers so an explicit zero can be told apart from an omitted
// field: omitted fields take the service defaults, an explicit size of
// zero is rejected.
type GenerateRequest struct {
	ModelDir string `json:"model_dir"`
	OutDir   string `json:"out_dir"`
	Size     *int   `json:"size"`
	Seed     *int   `json:"seed"`
	LogFile  string `json:"log_file"`
}

// GenerateResponse reports one generation run: the files written, the
// parsed collections, and the CLI command that produced them.
type GenerateResponse struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	FilesCreated []string       `json:"files_created"`
	Data         map[string]any `json:"data"`
	Command      string         `json:"command"`
}

// generateParams is a GenerateRequest with defaults and bounds applied.
type generateParams struct {
	ModelDir string
	OutDir   string
	Size     int
	Seed     int
	LogFile  string
}

func (s *Server) normalizeGenerate(req GenerateRequest) (generateParams, error) {
	p := generateParams{
		ModelDir: req.ModelDir,
		OutDir:   req.OutDir,
		Size:     common.DefaultSynthSize,
		Seed:     common.DefaultSynthSeed,
		LogFile:  req.LogFile,
	}
	if p.ModelDir == "" {
		p.ModelDir = s.settings.SynthModelDir
	}
	if p.OutDir == "" {
		p.OutDir = filepath.Join(s.settings.DataDir, "synthetic_output")
	}
	if req.Size != nil {
		p.Size = *req.Size
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	}
	if p.Size < 1 || p.Size > s.settings.SynthMaxRows {
		return p, &paramError{fmt.Sprintf("size must be between 1 and %d, got %d", s.settings.SynthMaxRows, p.Size)}
	}
	return p, nil
}

// runGenerate invokes the generator, persists raw output as
// generated_data.json under the output directory, and builds the
// response shared by the HTTP endpoint and the RPC tool.
func (s *Server) runGenerate(ctx context.Context, p generateParams) (*GenerateResponse, error) {
	if s.generator == nil {
		return nil, &apiError{http.StatusServiceUnavailable, "synth generation unavailable"}
	}

	runID := uuid.NewString()
	start := time.Now()
	ds, raw, err := s.generator.Generate(ctx, p.ModelDir, p.Size, p.Seed)
	if s.metrics != nil {
		s.metrics.SynthRunsInc()
		s.metrics.SynthDurationObserve(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.SynthFailuresInc()
		}
		log.Warn().Str("run_id", runID).Err(err).Msg("synth run failed")
		return nil, &apiError{http.StatusInternalServerError, fmt.Sprintf("synth command failed: %v", err)}
	}
	if s.metrics != nil {
		s.metrics.SynthRowsAdd(float64(ds.Total()))
	}
	log.Info().
		Str("run_id", runID).
		Str("model_dir", p.ModelDir).
		Int("size", p.Size).
		Int("seed", p.Seed).
		Dur("took", time.Since(start)).
		Msg("synth run complete")

	if err := os.MkdirAll(p.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	outFile := filepath.Join(p.OutDir, "generated_data.json")
	if err := os.WriteFile(outFile, raw, 0o644); err != nil {
		return nil, fmt.Errorf("write generated data: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse generated data: %w", err)
	}

	return &GenerateResponse{
		Success:      true,
		Message:      fmt.Sprintf("Generated %d records per collection", p.Size),
		FilesCreated: []string{outFile},
		Data:         data,
		Command:      strings.Join(synth.Command(p.ModelDir, p.Size, p.Seed), " "),
	}, nil
}

func (s *Server) handleSynthGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, common.MaxRequestBytes)
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	p, err := s.normalizeGenerate(req)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}

	resp, err := s.runGenerate(r.Context(), p)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
