package ml

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the predictor lifecycle and artifact format. Callers
// match them with errors.Is.
var (
	// ErrNotFitted is returned when predict or save is invoked on an
	// untrained predictor.
	ErrNotFitted = errors.New("model is not fitted")

	// ErrAlreadyFitted is returned when fit is invoked a second time.
	// Retraining an instance is not supported.
	ErrAlreadyFitted = errors.New("model is already fitted")

	// ErrEmptyInput is returned when a feature table or target slice is
	// nil or has no rows.
	ErrEmptyInput = errors.New("empty input")

	// ErrShapeMismatch is returned when features and targets disagree on
	// row count.
	ErrShapeMismatch = errors.New("features and targets have mismatched lengths")

	// ErrBadVersion is returned when a model artifact carries an
	// unrecognized format version.
	ErrBadVersion = errors.New("unsupported model artifact version")
)

// MissingColumnsError reports the required feature columns absent from an
// input table. Columns are listed in schema order.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}
