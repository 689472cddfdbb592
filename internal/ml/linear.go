package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearModel is an ordinary least-squares regression stage. Fitting solves
// the minimum-norm solution through an SVD pseudo-inverse, so collinear
// one-hot blocks (which make the design matrix rank deficient) fit without
// pivoting or regularization and the result is deterministic.
type LinearModel struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// Fit solves for the weights and intercept minimizing squared error on the
// given design matrix and targets.
func (m *LinearModel) Fit(x *mat.Dense, y []float64) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("fit linear model: %w", ErrEmptyInput)
	}
	if len(y) != rows {
		return fmt.Errorf("fit linear model: %d rows vs %d targets: %w", rows, len(y), ErrShapeMismatch)
	}

	// Augment with a trailing ones column so the intercept is solved
	// together with the weights.
	aug := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			aug.Set(i, j, x.At(i, j))
		}
		aug.Set(i, cols, 1)
	}

	var svd mat.SVD
	if ok := svd.Factorize(aug, mat.SVDThin); !ok {
		return fmt.Errorf("fit linear model: svd factorization failed")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	// uty = Uᵀ y, then damp components whose singular value falls below
	// the conditioning cutoff.
	k := len(s)
	uty := make([]float64, k)
	for j := 0; j < k; j++ {
		var dot float64
		for i := 0; i < rows; i++ {
			dot += u.At(i, j) * y[i]
		}
		uty[j] = dot
	}

	tol := svdCutoff(s, rows, cols+1)
	for j := 0; j < k; j++ {
		if s[j] > tol {
			uty[j] /= s[j]
		} else {
			uty[j] = 0
		}
	}

	// w = V (Σ⁺ Uᵀ y)
	w := make([]float64, cols+1)
	for i := 0; i < cols+1; i++ {
		var dot float64
		for j := 0; j < k; j++ {
			dot += v.At(i, j) * uty[j]
		}
		w[i] = dot
	}

	m.Weights = w[:cols]
	m.Intercept = w[cols]
	return nil
}

// Predict returns one value per row of the design matrix.
func (m *LinearModel) Predict(x *mat.Dense) []float64 {
	rows, cols := x.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		v := m.Intercept
		for j := 0; j < cols && j < len(m.Weights); j++ {
			v += x.At(i, j) * m.Weights[j]
		}
		out[i] = v
	}
	return out
}

// svdCutoff is the standard least-squares conditioning threshold:
// max singular value scaled by the larger matrix dimension and machine
// epsilon.
func svdCutoff(s []float64, rows, cols int) float64 {
	if len(s) == 0 {
		return 0
	}
	max := s[0]
	for _, v := range s[1:] {
		if v > max {
			max = v
		}
	}
	dim := rows
	if cols > dim {
		dim = cols
	}
	const eps = 2.220446049250313e-16
	return max * float64(dim) * eps
}
