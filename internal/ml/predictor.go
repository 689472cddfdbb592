// Package ml implements the discount regression pipeline: a column-wise
// preprocessing stage composed with a linear model, wrapped in a predictor
// that owns the untrained-to-trained lifecycle and the artifact format.
package ml

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"airdiscount/internal/features"
	"airdiscount/internal/tabular"
)

// MetricsInterface defines the metrics hooks used by the predictor.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(float64)
	PredictedDiscountObserve(float64)
}

// Predictor wraps the two pipeline stages behind the fit/predict/save/load
// lifecycle. An instance starts untrained, becomes trained exactly once via
// Fit, and is immutable afterwards; refitting is an error. The guard mutex
// makes a shared trained instance safe for concurrent Predict calls.
type Predictor struct {
	mu      sync.RWMutex
	pre     *Preprocessor
	model   *LinearModel
	trained bool
	metrics MetricsInterface
}

// New creates an untrained predictor over the fixed feature schema.
func New() *Predictor {
	return NewWithMetrics(nil)
}

// NewWithMetrics creates an untrained predictor reporting to the given
// metrics sink. A nil sink disables reporting.
func NewWithMetrics(metrics MetricsInterface) *Predictor {
	return &Predictor{
		pre:     NewPreprocessor(features.NumericColumns, features.CategoricalColumns),
		model:   &LinearModel{},
		metrics: metrics,
	}
}

// SetMetrics attaches a metrics sink, used when the predictor was built by
// Load rather than NewWithMetrics.
func (p *Predictor) SetMetrics(metrics MetricsInterface) {
	p.mu.Lock()
	p.metrics = metrics
	p.mu.Unlock()
}

// Fit learns the preprocessing statistics and the regression weights from
// the feature table and its aligned targets, then transitions the predictor
// to trained. Targets pair with rows positionally. Fit performs no I/O and
// nothing in the pipeline draws randomness, so identical input always
// produces an identical trained state.
func (p *Predictor) Fit(t *tabular.Table, targets []float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.trained {
		return fmt.Errorf("fit: %w", ErrAlreadyFitted)
	}
	if err := validateFeatures(t); err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	if len(targets) == 0 {
		return fmt.Errorf("fit: targets: %w", ErrEmptyInput)
	}
	if len(targets) != t.NumRows() {
		return fmt.Errorf("fit: %d feature rows vs %d targets: %w", t.NumRows(), len(targets), ErrShapeMismatch)
	}

	if err := p.pre.Fit(t); err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	x, err := p.pre.Transform(t)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	if err := p.model.Fit(x, targets); err != nil {
		return err
	}

	p.trained = true
	log.Info().
		Int("rows", t.NumRows()).
		Int("encoded_width", p.pre.Width()).
		Msg("model fitted")
	return nil
}

// Predict returns one discount value per input row, in input order. It
// requires the trained state and the full six-column schema; categorical
// values unseen at fit time contribute all-zero indicators rather than
// failing.
func (p *Predictor) Predict(t *tabular.Table) ([]float64, error) {
	start := time.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	out, err := p.predictLocked(t)
	if p.metrics != nil {
		p.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			p.metrics.PredictionFailuresInc()
		} else {
			p.metrics.PredictionsInc()
			for _, v := range out {
				p.metrics.PredictedDiscountObserve(v)
			}
		}
	}
	return out, err
}

func (p *Predictor) predictLocked(t *tabular.Table) ([]float64, error) {
	if !p.trained {
		return nil, fmt.Errorf("predict: %w", ErrNotFitted)
	}
	if err := validateFeatures(t); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	x, err := p.pre.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return p.model.Predict(x), nil
}

// Trained reports whether the predictor has been fitted.
func (p *Predictor) Trained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trained
}

// validateFeatures checks the non-empty six-column input contract shared by
// Fit and Predict. Extra columns are allowed and ignored downstream.
func validateFeatures(t *tabular.Table) error {
	if t == nil || t.NumRows() == 0 {
		return fmt.Errorf("feature table: %w", ErrEmptyInput)
	}
	var missing []string
	for _, c := range features.RequiredColumns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}
