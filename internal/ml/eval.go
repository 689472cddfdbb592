package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// Summary holds regression quality metrics for a set of predictions.
type Summary struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Evaluate scores predictions against actual values.
func Evaluate(predicted, actual []float64) (Summary, error) {
	if len(predicted) == 0 {
		return Summary{}, fmt.Errorf("evaluate: %w", ErrEmptyInput)
	}
	if len(predicted) != len(actual) {
		return Summary{}, fmt.Errorf("evaluate: %d predictions vs %d actuals: %w", len(predicted), len(actual), ErrShapeMismatch)
	}

	var absSum, sqSum float64
	for i, p := range predicted {
		d := p - actual[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}
	n := float64(len(predicted))
	mse := sqSum / n
	return Summary{
		MAE:  absSum / n,
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		R2:   stat.RSquaredFrom(predicted, actual, nil),
	}, nil
}

// MeanBaseline predicts the training mean for every test row. It is the
// reference a fitted model has to beat for its R2 to be positive.
func MeanBaseline(train []float64, n int) []float64 {
	mean := stat.Mean(train, nil)
	out := make([]float64, n)
	for i := range out {
		out[i] = mean
	}
	return out
}

// SplitIndices partitions the row indices 0..n-1 into a train set and a
// holdout set. The shuffle is driven only by the given seed, so a split is
// reproducible across runs and machines.
func SplitIndices(n int, holdout float64, seed int64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, fmt.Errorf("split: need at least 2 rows, have %d", n)
	}
	if holdout <= 0 || holdout >= 1 {
		return nil, nil, fmt.Errorf("split: holdout fraction %v outside (0, 1)", holdout)
	}

	nTest := int(math.Round(float64(n) * holdout))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}
