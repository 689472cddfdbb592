package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestWrapper() (*Metrics, *MetricsWrapper, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	return m, NewWrapper(m), registry
}

func histogramSampleCount(t *testing.T, registry *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestNewWrapper(t *testing.T) {
	m, wrapper, _ := newTestWrapper()
	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != m {
		t.Error("wrapper does not hold the metrics instance it was built with")
	}
}

func TestWrapperCounterOperations(t *testing.T) {
	m, wrapper, _ := newTestWrapper()

	if v := testutil.ToFloat64(m.PredictionsTotal); v != 0 {
		t.Errorf("initial predictions = %f, want 0", v)
	}

	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	if v := testutil.ToFloat64(m.PredictionsTotal); v != 2 {
		t.Errorf("predictions = %f, want 2", v)
	}

	wrapper.PredictionFailuresInc()
	if v := testutil.ToFloat64(m.PredictionFailures); v != 1 {
		t.Errorf("failures = %f, want 1", v)
	}

	wrapper.SynthRunsInc()
	wrapper.SynthRowsAdd(25)
	if v := testutil.ToFloat64(m.SynthRows); v != 25 {
		t.Errorf("synth rows = %f, want 25", v)
	}

	wrapper.RPCRequestsInc()
	wrapper.RPCErrorsInc()
	wrapper.HistoryRecordsInc()
	wrapper.ErrorsInc()
	if v := testutil.ToFloat64(m.RPCRequests); v != 1 {
		t.Errorf("rpc requests = %f, want 1", v)
	}
}

func TestWrapperGaugeOperations(t *testing.T) {
	m, wrapper, _ := newTestWrapper()

	wrapper.TrainingRowsSet(120)
	if v := testutil.ToFloat64(m.TrainingRows); v != 120 {
		t.Errorf("training rows = %f, want 120", v)
	}

	wrapper.WSConnectionsAdd(1)
	wrapper.WSConnectionsAdd(1)
	wrapper.WSConnectionsAdd(-1)
	if v := testutil.ToFloat64(m.WSConnections); v != 1 {
		t.Errorf("ws connections = %f, want 1", v)
	}

	wrapper.SetModelTrained(true)
	if v := testutil.ToFloat64(m.ModelTrained); v != 1 {
		t.Errorf("model trained = %f, want 1", v)
	}
	wrapper.SetModelTrained(false)
	if v := testutil.ToFloat64(m.ModelTrained); v != 0 {
		t.Errorf("model trained = %f, want 0", v)
	}
}

func TestWrapperHistogramOperations(t *testing.T) {
	_, wrapper, registry := newTestWrapper()

	values := []float64{0.001, 0.005, 0.01, 0.05, 0.1}
	for _, v := range values {
		wrapper.PredictionLatencyObserve(v)
	}
	if got := histogramSampleCount(t, registry, "prediction_latency_seconds"); got != uint64(len(values)) {
		t.Errorf("latency observations = %d, want %d", got, len(values))
	}

	wrapper.PredictedDiscountObserve(15)
	wrapper.PredictedDiscountObserve(25)
	if got := histogramSampleCount(t, registry, "predicted_discount"); got != 2 {
		t.Errorf("discount observations = %d, want 2", got)
	}

	wrapper.SynthDurationObserve(1.5)
	if got := histogramSampleCount(t, registry, "synth_duration_seconds"); got != 1 {
		t.Errorf("synth duration observations = %d, want 1", got)
	}
}

func TestWrapperAccessors(t *testing.T) {
	m, wrapper, _ := newTestWrapper()

	wrapper.Predictions().Inc()
	if v := testutil.ToFloat64(m.PredictionsTotal); v != 1 {
		t.Errorf("predictions = %f, want 1", v)
	}

	wrapper.TrainingRows().Set(42)
	wrapper.TrainingRows().Add(8)
	if v := testutil.ToFloat64(m.TrainingRows); v != 50 {
		t.Errorf("training rows = %f, want 50", v)
	}

	wrapper.PredictionLatency().Observe(0.5)
}

func TestFailureRate(t *testing.T) {
	_, wrapper, registry := newTestWrapper()

	if rate := FailureRate(registry); rate != 0 {
		t.Errorf("failure rate with no traffic = %f, want 0", rate)
	}

	for i := 0; i < 8; i++ {
		wrapper.PredictionsInc()
	}
	wrapper.PredictionFailuresInc()
	wrapper.PredictionFailuresInc()

	if rate := FailureRate(registry); rate != 0.2 {
		t.Errorf("failure rate = %f, want 0.2", rate)
	}
}

func TestWrapperConcurrentAccess(t *testing.T) {
	m, wrapper, _ := newTestWrapper()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.PredictionsInc()
				wrapper.PredictionLatencyObserve(0.01)
				wrapper.HistoryRecordsInc()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if v := testutil.ToFloat64(m.PredictionsTotal); v != 1000 {
		t.Errorf("predictions after concurrent access = %f, want 1000", v)
	}
	if v := testutil.ToFloat64(m.HistoryRecords); v != 1000 {
		t.Errorf("history records after concurrent access = %f, want 1000", v)
	}
}

func TestCounterWrapperDirectUsage(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter for unit tests",
	})
	wrapper := &CounterWrapper{c: counter}

	wrapper.Inc()
	if v := testutil.ToFloat64(counter); v != 1 {
		t.Errorf("counter = %f, want 1", v)
	}
}

func TestGaugeWrapperDirectUsage(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "Test gauge for unit tests",
	})
	wrapper := &GaugeWrapper{g: gauge}

	wrapper.Set(42.0)
	wrapper.Add(8.0)
	if v := testutil.ToFloat64(gauge); v != 50.0 {
		t.Errorf("gauge = %f, want 50", v)
	}
}

func BenchmarkWrapperPredictionsInc(b *testing.B) {
	m := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.PredictionsInc()
	}
}

func BenchmarkWrapperLatencyObserve(b *testing.B) {
	m := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(m)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.PredictionLatencyObserve(0.01)
	}
}
