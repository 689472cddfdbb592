package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper provides a simple method surface for other packages to
// record metrics. It satisfies the predictor metrics interface.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) Predictions() MetricsCounter {
	return &CounterWrapper{w.m.PredictionsTotal}
}

func (w *MetricsWrapper) TrainingRows() MetricsGauge {
	return &GaugeWrapper{w.m.TrainingRows}
}

func (w *MetricsWrapper) PredictionLatency() MetricsHistogram {
	return &HistogramWrapper{w.m.PredictionLatency}
}

// Prediction pipeline hooks.

func (w *MetricsWrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *MetricsWrapper) PredictedDiscountObserve(v float64) {
	w.m.PredictedDiscount.Observe(v)
}

func (w *MetricsWrapper) SetModelTrained(trained bool) {
	w.m.SetModelTrained(trained)
}

func (w *MetricsWrapper) TrainingRowsSet(n float64) {
	w.m.TrainingRows.Set(n)
}

// Synthetic data collaborator hooks.

func (w *MetricsWrapper) SynthRunsInc() {
	w.m.SynthRuns.Inc()
}

func (w *MetricsWrapper) SynthFailuresInc() {
	w.m.SynthFailures.Inc()
}

func (w *MetricsWrapper) SynthRowsAdd(n float64) {
	w.m.SynthRows.Add(n)
}

func (w *MetricsWrapper) SynthDurationObserve(v float64) {
	w.m.SynthDuration.Observe(v)
}

// Transport hooks.

func (w *MetricsWrapper) RPCRequestsInc() {
	w.m.RPCRequests.Inc()
}

func (w *MetricsWrapper) RPCErrorsInc() {
	w.m.RPCErrors.Inc()
}

func (w *MetricsWrapper) WSConnectionsAdd(delta float64) {
	w.m.WSConnections.Add(delta)
}

func (w *MetricsWrapper) WSMessagesInc() {
	w.m.WSMessages.Inc()
}

// History journal hooks.

func (w *MetricsWrapper) HistoryRecordsInc() {
	w.m.HistoryRecords.Inc()
}

func (w *MetricsWrapper) HistoryErrorsInc() {
	w.m.HistoryErrors.Inc()
}

func (w *MetricsWrapper) ErrorsInc() {
	w.m.ErrorsTotal.Inc()
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
