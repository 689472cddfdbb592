// Package api exposes the discount service over HTTP: JSON endpoints
// for prediction, history, and synthetic data generation, an MCP-style
// JSON-RPC surface with a WebSocket transport, and prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"airdiscount/internal/agent"
	"airdiscount/internal/cfg"
	"airdiscount/internal/common"
	"airdiscount/internal/features"
	"airdiscount/internal/history"
	"airdiscount/internal/metrics"
	"airdiscount/internal/ml"
	"airdiscount/internal/storage"
	"airdiscount/internal/synth"
	"airdiscount/internal/tabular"
)

// Predictor is the model surface the server serves. *ml.Predictor
// implements it.
type Predictor interface {
	Predict(t *tabular.Table) ([]float64, error)
	Trained() bool
	Info() ml.ModelInfo
}

// Generator produces synthetic datasets. *synth.Runner implements it.
type Generator interface {
	Generate(ctx context.Context, modelDir string, size, seed int) (*synth.Dataset, []byte, error)
}

// Recorder journals served predictions. *history.Journal implements it.
type Recorder interface {
	Append(rec history.Record) error
	Recent(limit int) ([]history.Record, error)
}

// Server provides the HTTP API for the discount service.
type Server struct {
	settings  *cfg.Settings
	predictor Predictor
	generator Generator
	journal   Recorder
	analyzer  *agent.RouteAnalyzer
	metrics   *metrics.MetricsWrapper
	upgrader  websocket.Upgrader
	server    *http.Server
}

// New wires the HTTP server and its routes. The write timeout leaves
// room for a full synth run plus response encoding.
func New(settings *cfg.Settings, predictor Predictor, generator Generator, journal Recorder, analyzer *agent.RouteAnalyzer, mw *metrics.MetricsWrapper) *Server {
	s := &Server{
		settings:  settings,
		predictor: predictor,
		generator: generator,
		journal:   journal,
		analyzer:  analyzer,
		metrics:   mw,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/route_insights", s.handleRouteInsights)
	mux.HandleFunc("/heuristic_discount", s.handleHeuristicDiscount)
	mux.HandleFunc("/synth_generate", s.handleSynthGenerate)
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/ws", s.handleMCPWebSocket)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", settings.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: settings.SynthTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the route table, mainly for tests against httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting discount service")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the /version body.
type VersionResponse struct {
	Version string `json:"version"`
}

// PredictRequest carries raw feature records; each record is normalized
// into the fixed schema before scoring.
type PredictRequest struct {
	Records []map[string]any `json:"records"`
}

// Prediction is one scored row.
type Prediction struct {
	Row      int     `json:"row"`
	Discount float64 `json:"discount"`
}

// PredictResponse pairs predictions with their input rows, in order.
type PredictResponse struct {
	Predictions []Prediction `json:"predictions"`
	Count       int          `json:"count"`
}

// HistoryResponse lists recent journaled predictions, newest first.
type HistoryResponse struct {
	Records []history.Record `json:"records"`
	Count   int              `json:"count"`
}

// HeuristicRequest asks for the rule-based discount on a stored route.
type HeuristicRequest struct {
	RouteID       int64          `json:"route_id"`
	TravelHistory map[string]any `json:"travel_history"`
}

// HeuristicResponse is the rule-based discount for the route.
type HeuristicResponse struct {
	RouteID  int64   `json:"route_id"`
	Discount float64 `json:"discount"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: common.Version})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictor.Info())
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.predictor.Trained() {
		http.Error(w, "model not trained", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, common.MaxRequestBytes)
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Records) == 0 {
		http.Error(w, "records cannot be empty", http.StatusBadRequest)
		return
	}

	feats, err := features.Build(tabular.FromRecords(req.Records))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid records: %v", err), http.StatusBadRequest)
		return
	}

	preds, err := s.predictor.Predict(feats)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ml.ErrNotFitted):
			status = http.StatusServiceUnavailable
		case errors.Is(err, ml.ErrEmptyInput):
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Int("records", len(req.Records)).Msg("Prediction failed")
		http.Error(w, fmt.Sprintf("prediction failed: %v", err), status)
		return
	}

	resp := PredictResponse{Predictions: make([]Prediction, len(preds)), Count: len(preds)}
	for i, p := range preds {
		resp.Predictions[i] = Prediction{Row: i, Discount: p}
		s.journalPrediction(feats, i, p)
	}

	writeJSON(w, http.StatusOK, resp)
}

// journalPrediction appends one served prediction to the journal.
// Journal failures are logged, never surfaced to the caller.
func (s *Server) journalPrediction(feats *tabular.Table, row int, discount float64) {
	if s.journal == nil {
		return
	}
	rec := history.Record{
		RouteID:     cellString(feats, row, "route_id"),
		Origin:      cellString(feats, row, "origin"),
		Destination: cellString(feats, row, "destination"),
		Discount:    discount,
		Source:      "api",
	}
	if err := s.journal.Append(rec); err != nil {
		log.Warn().Err(err).Msg("Failed to journal prediction")
		if s.metrics != nil {
			s.metrics.HistoryErrorsInc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.HistoryRecordsInc()
	}
}

func cellString(t *tabular.Table, row int, column string) string {
	v, ok := t.Cell(row, column)
	if !ok {
		return ""
	}
	str, _ := tabular.String(v)
	return str
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be an integer between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.journal.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read prediction history")
		http.Error(w, fmt.Sprintf("history read failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: recs, Count: len(recs)})
}

func (s *Server) handleRouteInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.analyzer == nil {
		http.Error(w, "route insights unavailable", http.StatusServiceUnavailable)
		return
	}

	routeID, err := strconv.ParseInt(r.URL.Query().Get("route_id"), 10, 64)
	if err != nil {
		http.Error(w, "route_id must be an integer", http.StatusBadRequest)
		return
	}

	insights, err := s.analyzer.Analyze(r.Context(), routeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, fmt.Sprintf("route %d not found", routeID), http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("route_id", routeID).Msg("Route analysis failed")
		http.Error(w, fmt.Sprintf("route analysis failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleHeuristicDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.analyzer == nil {
		http.Error(w, "heuristics unavailable", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, common.MaxRequestBytes)
	var req HeuristicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	discount, err := s.analyzer.HeuristicDiscount(r.Context(), req.RouteID, req.TravelHistory)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, fmt.Sprintf("route %d not found", req.RouteID), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("heuristic failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, HeuristicResponse{RouteID: req.RouteID, Discount: discount})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
