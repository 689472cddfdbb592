package ml

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"airdiscount/internal/tabular"
)

// NumericStats holds the imputation and scaling parameters learned for one
// numeric column. Transform imputes the median, then standardizes to
// (x - mean) / scale.
type NumericStats struct {
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoryStats holds the imputation value and one-hot vocabulary learned
// for one categorical column. Categories are sorted, so encoded column
// positions are stable across runs.
type CategoryStats struct {
	Mode       string   `json:"mode"`
	Categories []string `json:"categories"`
}

// Preprocessor is the column-wise preprocessing stage: median imputation and
// standardization for numeric columns, mode imputation and one-hot encoding
// for categorical columns. Values unseen at fit time encode as all zeros at
// transform time. All learned state is exported so the stage serializes with
// the artifact.
type Preprocessor struct {
	NumericColumns     []string                 `json:"numeric_columns"`
	CategoricalColumns []string                 `json:"categorical_columns"`
	Numeric            map[string]NumericStats  `json:"numeric"`
	Categorical        map[string]CategoryStats `json:"categorical"`
}

// NewPreprocessor creates an unfitted preprocessing stage over the given
// column split.
func NewPreprocessor(numeric, categorical []string) *Preprocessor {
	return &Preprocessor{
		NumericColumns:     append([]string(nil), numeric...),
		CategoricalColumns: append([]string(nil), categorical...),
	}
}

func (p *Preprocessor) fitted() bool {
	return p.Numeric != nil && p.Categorical != nil
}

// Fit learns the per-column statistics from the given table. Unknown cells
// are excluded from the statistics and later filled by them.
func (p *Preprocessor) Fit(t *tabular.Table) error {
	if t == nil || t.NumRows() == 0 {
		return fmt.Errorf("fit preprocessor: %w", ErrEmptyInput)
	}
	if err := p.checkColumns(t); err != nil {
		return err
	}

	numeric := make(map[string]NumericStats, len(p.NumericColumns))
	for _, c := range p.NumericColumns {
		col, _ := t.Column(c)
		numeric[c] = fitNumeric(col)
	}

	categorical := make(map[string]CategoryStats, len(p.CategoricalColumns))
	for _, c := range p.CategoricalColumns {
		col, _ := t.Column(c)
		categorical[c] = fitCategorical(col)
	}

	p.Numeric = numeric
	p.Categorical = categorical
	return nil
}

// Transform encodes the table into a dense matrix: standardized numeric
// columns first, then one indicator column per learned category. The input
// may carry extra columns; they are ignored.
func (p *Preprocessor) Transform(t *tabular.Table) (*mat.Dense, error) {
	if !p.fitted() {
		return nil, fmt.Errorf("transform: %w", ErrNotFitted)
	}
	if t == nil || t.NumRows() == 0 {
		return nil, fmt.Errorf("transform: %w", ErrEmptyInput)
	}
	if err := p.checkColumns(t); err != nil {
		return nil, err
	}

	rows := t.NumRows()
	x := mat.NewDense(rows, p.Width(), nil)

	for j, c := range p.NumericColumns {
		stats := p.Numeric[c]
		col, _ := t.Column(c)
		for r, v := range col {
			f, ok := tabular.Float(v)
			if !ok {
				f = stats.Median
			}
			x.Set(r, j, (f-stats.Mean)/stats.Scale)
		}
	}

	offset := len(p.NumericColumns)
	for _, c := range p.CategoricalColumns {
		stats := p.Categorical[c]
		pos := make(map[string]int, len(stats.Categories))
		for i, cat := range stats.Categories {
			pos[cat] = i
		}

		col, _ := t.Column(c)
		for r, v := range col {
			s, ok := tabular.String(v)
			if !ok {
				s = stats.Mode
			}
			if i, known := pos[s]; known {
				x.Set(r, offset+i, 1)
			}
		}
		offset += len(stats.Categories)
	}

	return x, nil
}

// Width returns the encoded feature count: one per numeric column plus one
// per learned category.
func (p *Preprocessor) Width() int {
	w := len(p.NumericColumns)
	for _, c := range p.CategoricalColumns {
		w += len(p.Categorical[c].Categories)
	}
	return w
}

// FeatureNames returns the encoded column names in matrix order, indicator
// columns as "column=category".
func (p *Preprocessor) FeatureNames() []string {
	names := append([]string(nil), p.NumericColumns...)
	for _, c := range p.CategoricalColumns {
		for _, cat := range p.Categorical[c].Categories {
			names = append(names, fmt.Sprintf("%s=%s", c, cat))
		}
	}
	return names
}

func (p *Preprocessor) checkColumns(t *tabular.Table) error {
	var missing []string
	for _, c := range p.NumericColumns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	for _, c := range p.CategoricalColumns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

func fitNumeric(col []any) NumericStats {
	known := make([]float64, 0, len(col))
	for _, v := range col {
		if f, ok := tabular.Float(v); ok {
			known = append(known, f)
		}
	}

	med := median(known)

	// Mean and scale are computed over the imputed series, matching the
	// impute-then-standardize stage order.
	n := float64(len(col))
	var sum float64
	for _, v := range col {
		f, ok := tabular.Float(v)
		if !ok {
			f = med
		}
		sum += f
	}
	mean := sum / n

	var sq float64
	for _, v := range col {
		f, ok := tabular.Float(v)
		if !ok {
			f = med
		}
		d := f - mean
		sq += d * d
	}
	scale := 0.0
	if sq > 0 {
		scale = math.Sqrt(sq / n)
	}
	if scale == 0 {
		scale = 1
	}

	return NumericStats{Median: med, Mean: mean, Scale: scale}
}

func fitCategorical(col []any) CategoryStats {
	counts := make(map[string]int)
	for _, v := range col {
		if s, ok := tabular.String(v); ok {
			counts[s]++
		}
	}

	// Most frequent value wins; ties break to the smallest so the learned
	// mode does not depend on map order.
	mode := ""
	best := -1
	for s, n := range counts {
		if n > best || (n == best && s < mode) {
			mode = s
			best = n
		}
	}

	// Vocabulary over the imputed series: all-unknown columns learn the
	// single empty category rather than none.
	if _, ok := counts[mode]; !ok {
		counts[mode] = len(col)
	}
	cats := make([]string, 0, len(counts))
	for s := range counts {
		cats = append(cats, s)
	}
	sort.Strings(cats)

	return CategoryStats{Mode: mode, Categories: cats}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
