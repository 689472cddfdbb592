// Package metrics provides Prometheus metrics collection for the discount
// service. It defines and manages the prediction, synthesis, and transport
// metrics exposed via the metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the discount service.
// It provides counters, gauges, and histograms covering the prediction
// pipeline, the synthetic data collaborator, and the RPC surface.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Successful prediction calls
	PredictionFailures prometheus.Counter   // Failed prediction calls
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	PredictedDiscount  prometheus.Histogram // Distribution of predicted discount values
	ModelTrained       prometheus.Gauge     // 1 when a trained model is loaded
	TrainingRows       prometheus.Gauge     // Row count of the last training set

	// Synthetic data collaborator metrics
	SynthRuns     prometheus.Counter   // Generation runs started
	SynthFailures prometheus.Counter   // Generation runs that failed
	SynthRows     prometheus.Counter   // Synthetic rows produced
	SynthDuration prometheus.Histogram // Generation run duration in seconds

	// RPC and transport metrics
	RPCRequests   prometheus.Counter // JSON-RPC requests handled
	RPCErrors     prometheus.Counter // JSON-RPC requests answered with an error
	WSConnections prometheus.Gauge   // Currently open WebSocket sessions
	WSMessages    prometheus.Counter // WebSocket messages processed

	// History journal metrics
	HistoryRecords prometheus.Counter // Prediction records journaled
	HistoryErrors  prometheus.Counter // Journal write or read failures

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
// This is the standard way to create metrics for production use.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful prediction calls",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed prediction calls",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		PredictedDiscount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "predicted_discount",
			Help:    "Distribution of predicted discount percentages",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		}),
		ModelTrained: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_trained",
			Help: "Whether a trained model is currently loaded (0 or 1)",
		}),
		TrainingRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "training_rows",
			Help: "Number of rows the current model was trained on",
		}),
		SynthRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "synth_runs_total",
			Help: "Total number of synthetic data generation runs",
		}),
		SynthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "synth_failures_total",
			Help: "Total number of failed synthetic data generation runs",
		}),
		SynthRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "synth_rows_generated_total",
			Help: "Total number of synthetic rows produced",
		}),
		SynthDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_duration_seconds",
			Help:    "Duration of synthetic data generation runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RPCRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total number of JSON-RPC requests handled",
		}),
		RPCErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "rpc_errors_total",
			Help: "Total number of JSON-RPC requests answered with an error",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Number of currently open WebSocket sessions",
		}),
		WSMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "Total number of WebSocket messages processed",
		}),
		HistoryRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_records_total",
			Help: "Total number of prediction records journaled",
		}),
		HistoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_errors_total",
			Help: "Total number of prediction journal failures",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// SetModelTrained flips the trained gauge, 1 when a model is loaded.
func (m *Metrics) SetModelTrained(trained bool) {
	if trained {
		m.ModelTrained.Set(1)
	} else {
		m.ModelTrained.Set(0)
	}
}

// FailureRate returns the ratio of failed predictions to attempts as
// scraped from the given gatherer. It reports 0 when nothing has been
// recorded yet, which is useful for health checks.
func FailureRate(gatherer prometheus.Gatherer) float64 {
	families, err := gatherer.Gather()
	if err != nil {
		return 0
	}

	var ok, failed float64
	for _, mf := range families {
		switch mf.GetName() {
		case "predictions_total":
			for _, m := range mf.GetMetric() {
				ok = m.GetCounter().GetValue()
			}
		case "prediction_failures_total":
			for _, m := range mf.GetMetric() {
				failed = m.GetCounter().GetValue()
			}
		}
	}

	total := ok + failed
	if total == 0 {
		return 0
	}
	return failed / total
}
