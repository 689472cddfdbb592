package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

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

// testSettings roots all service paths in a temp directory so path
// containment resolves against real, writable locations.
func testSettings(t *testing.T) *cfg.Settings {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "data")
	if err := os.MkdirAll(filepath.Join(dataDir, "synthetic_output"), 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	return &cfg.Settings{
		HTTPPort:      8000,
		DataDir:       dataDir,
		SynthModelDir: filepath.Join(dataDir, "models"),
		SynthTimeout:  time.Minute,
		SynthMaxRows:  1000,
	}
}

func testMetrics() *metrics.MetricsWrapper {
	return metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))
}

func trainedPredictor(t *testing.T) *ml.Predictor {
	t.Helper()
	records := []map[string]any{
		{"route_id": 1, "origin": "NYC", "destination": "London", "distance": 3459.0, "history_trips": 12, "avg_spend": 880.0},
		{"route_id": 2, "origin": "NYC", "destination": "Paris", "distance": 3628.0, "history_trips": 3, "avg_spend": 430.0},
		{"route_id": 3, "origin": "SFO", "destination": "Tokyo", "distance": 5130.0, "history_trips": 8, "avg_spend": 760.0},
		{"route_id": 4, "origin": "SFO", "destination": "Sydney", "distance": 7417.0, "history_trips": 1, "avg_spend": 150.0},
	}
	feats, err := features.Build(tabular.FromRecords(records))
	if err != nil {
		t.Fatalf("build training features: %v", err)
	}
	p := ml.New()
	if err := p.Fit(feats, []float64{15, 5, 12, 2}); err != nil {
		t.Fatalf("fit predictor: %v", err)
	}
	return p
}

const stubSynthOutput = `{
  "passengers": [
    {"name": "Ava Chen", "travel_history": {"trips": 4, "total_spend": 1200.5}},
    {"name": "Liam Ortiz", "travel_history": {"trips": 9, "total_spend": 4410.0}}
  ],
  "routes": [
    {"origin": "Oslo", "destination": "Rome", "distance": 1245.0}
  ],
  "discounts": [
    {"discount_value": 11.0},
    {"discount_value": 18.5}
  ]
}`

// stubGenerator hands back a canned dataset and records the arguments
// it was called with.
type stubGenerator struct {
	err      error
	modelDir string
	size     int
	seed     int
}

func (g *stubGenerator) Generate(ctx context.Context, modelDir string, size, seed int) (*synth.Dataset, []byte, error) {
	g.modelDir, g.size, g.seed = modelDir, size, seed
	if g.err != nil {
		return nil, nil, g.err
	}
	ds, err := synth.ParseDataset([]byte(stubSynthOutput))
	if err != nil {
		return nil, nil, err
	}
	return ds, []byte(stubSynthOutput), nil
}

func seedRoutes(t *testing.T, store *storage.Store) {
	t.Helper()
	ctx := context.Background()

	p1, err := store.InsertPassenger(ctx, "Maya Singh", `{"flights": 12}`)
	if err != nil {
		t.Fatalf("insert passenger: %v", err)
	}
	p2, err := store.InsertPassenger(ctx, "Tom Baker", `{"flights": 2}`)
	if err != nil {
		t.Fatalf("insert passenger: %v", err)
	}
	r1, err := store.InsertRoute(ctx, "New York", "London", 3459)
	if err != nil {
		t.Fatalf("insert route: %v", err)
	}
	r2, err := store.InsertRoute(ctx, "New York", "Paris", 3628)
	if err != nil {
		t.Fatalf("insert route: %v", err)
	}
	for _, d := range []struct {
		pid, rid int64
		value    float64
	}{
		{p1, r1, 12},
		{p2, r1, 18},
		{p2, r2, 9},
	} {
		if _, err := store.InsertDiscount(ctx, d.pid, d.rid, d.value); err != nil {
			t.Fatalf("insert discount: %v", err)
		}
	}
}

// newTestServer wires a server with a trained model, a stub generator,
// and real journal and storage collaborators under temp directories.
func newTestServer(t *testing.T) (*Server, *stubGenerator) {
	t.Helper()
	settings := testSettings(t)

	journal, err := history.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	store, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	seedRoutes(t, store)

	gen := &stubGenerator{}
	s := New(settings, trainedPredictor(t), gen, journal, agent.NewRouteAnalyzer(store), testMetrics())
	return s, gen
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndVersion(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health status = %q, want ok", health.Status)
	}

	rec = doRequest(t, s, http.MethodGet, "/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d, want 200", rec.Code)
	}
	var version VersionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &version); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if version.Version != common.Version {
		t.Errorf("version = %q, want %q", version.Version, common.Version)
	}
}

func TestPredictJournalsHistory(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"records": [
		{"route_id": 9, "origin": "Oslo", "destination": "Rome", "distance_km": 2010.0, "history_trips": 5, "avg_spend": 300.0},
		{"route_id": 3, "origin": "SFO", "destination": "Tokyo", "distance": 5130.0, "trips_count": 8, "total_spend": 6080.0}
	]}`
	rec := doRequest(t, s, http.MethodPost, "/predict", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp PredictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode predict response: %v", err)
	}
	if resp.Count != 2 || len(resp.Predictions) != 2 {
		t.Fatalf("count = %d, predictions = %d, want 2 each", resp.Count, len(resp.Predictions))
	}
	for i, p := range resp.Predictions {
		if p.Row != i {
			t.Errorf("prediction %d has row %d", i, p.Row)
		}
	}

	// Each served prediction lands in the journal with its route context.
	rec = doRequest(t, s, http.MethodGet, "/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200", rec.Code)
	}
	var hist HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if hist.Count != 2 {
		t.Fatalf("history count = %d, want 2", hist.Count)
	}
	for _, r := range hist.Records {
		if r.Source != "api" {
			t.Errorf("record source = %q, want api", r.Source)
		}
	}
	// Newest first: the second predicted row journals last.
	if hist.Records[0].RouteID != "3" || hist.Records[1].RouteID != "9" {
		t.Errorf("journaled route ids = %q, %q, want 3, 9", hist.Records[0].RouteID, hist.Records[1].RouteID)
	}
	if hist.Records[1].Origin != "Oslo" || hist.Records[1].Destination != "Rome" {
		t.Errorf("journaled route = %s to %s, want Oslo to Rome", hist.Records[1].Origin, hist.Records[1].Destination)
	}
}

func TestPredictUntrained(t *testing.T) {
	settings := testSettings(t)
	s := New(settings, ml.New(), nil, nil, nil, nil)

	rec := doRequest(t, s, http.MethodPost, "/predict", `{"records": [{"route_id": 1}]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("predict status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "model not trained") {
		t.Errorf("body = %q, want mention of untrained model", rec.Body.String())
	}
}

func TestPredictValidation(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, `{"records": [`, http.StatusBadRequest},
		{"empty records", http.MethodPost, `{"records": []}`, http.StatusBadRequest},
		{"missing records", http.MethodPost, `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, tc.method, "/predict", tc.body)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestModelInfo(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/model/info", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("model info status = %d, want 200", rec.Code)
	}
	var info ml.ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode model info: %v", err)
	}
	if !info.Trained {
		t.Error("model info reports untrained")
	}
	if len(info.FeatureNames) == 0 || len(info.Weights) != len(info.FeatureNames) {
		t.Errorf("feature names = %d, weights = %d, want equal and nonzero", len(info.FeatureNames), len(info.Weights))
	}
}

func TestHistoryValidation(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"default limit", "/history", http.StatusOK},
		{"explicit limit", "/history?limit=5", http.StatusOK},
		{"zero limit", "/history?limit=0", http.StatusBadRequest},
		{"negative limit", "/history?limit=-3", http.StatusBadRequest},
		{"huge limit", "/history?limit=1001", http.StatusBadRequest},
		{"garbage limit", "/history?limit=abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tc.path, "")
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}

	if rec := doRequest(t, s, http.MethodPost, "/history", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST history status = %d, want 405", rec.Code)
	}
}

func TestHistoryUnavailable(t *testing.T) {
	settings := testSettings(t)
	s := New(settings, trainedPredictor(t), nil, nil, nil, nil)

	rec := doRequest(t, s, http.MethodGet, "/history", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("history status = %d, want 503", rec.Code)
	}
}

func TestRouteInsights(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/route_insights?route_id=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("insights status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var insights agent.Insights
	if err := json.Unmarshal(rec.Body.Bytes(), &insights); err != nil {
		t.Fatalf("decode insights: %v", err)
	}
	if insights.Route.Destination != "London" {
		t.Errorf("destination = %q, want London", insights.Route.Destination)
	}
	if insights.PassengerCount != 2 {
		t.Errorf("passenger count = %d, want 2", insights.PassengerCount)
	}
	if insights.AverageDiscount != 15 {
		t.Errorf("average discount = %v, want 15", insights.AverageDiscount)
	}
	if len(insights.PopularDestinations) != 2 || insights.PopularDestinations[0].Destination != "London" {
		t.Errorf("popular destinations = %+v, want London first of 2", insights.PopularDestinations)
	}
}

func TestRouteInsightsErrors(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown route", "/route_insights?route_id=999", http.StatusNotFound},
		{"non-numeric id", "/route_insights?route_id=abc", http.StatusBadRequest},
		{"missing id", "/route_insights", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tc.path, "")
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}

func TestHeuristicDiscount(t *testing.T) {
	s, _ := newTestServer(t)

	// Frequent flyer on a long route: both rules fire.
	rec := doRequest(t, s, http.MethodPost, "/heuristic_discount",
		`{"route_id": 1, "travel_history": {"flights": 10}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("heuristic status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp HeuristicResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode heuristic response: %v", err)
	}
	if resp.RouteID != 1 || resp.Discount != 15 {
		t.Errorf("got route %d discount %v, want route 1 discount 15", resp.RouteID, resp.Discount)
	}

	rec = doRequest(t, s, http.MethodPost, "/heuristic_discount",
		`{"route_id": 404, "travel_history": {}}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/heuristic_discount", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
}
