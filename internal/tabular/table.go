// Package tabular implements a minimal ordered-column table used to carry
// raw records and normalized feature rows through the pipeline.
//
// Columns are fixed at construction and keep their order; a missing value is
// stored as an explicit nil cell rather than being absent. Each row carries a
// stable integer identity that survives column selection and row subsetting,
// so predictions can be matched back to their input rows.
package tabular

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Table is an ordered-column table with nil-as-missing cells.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
	ids     []int
}

// New creates an empty table with the given column order.
func New(columns []string) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.columns {
		t.index[c] = i
	}
	return t
}

// FromRecords builds a table from a slice of field maps. When columns are
// given they define the column set and order; otherwise the column set is
// the union of all record fields, in sorted order. Fields absent from a
// record become nil cells. Row identities are assigned positionally
// starting at zero.
func FromRecords(records []map[string]any, columns ...string) *Table {
	if len(columns) == 0 {
		seen := make(map[string]bool)
		for _, rec := range records {
			for k := range rec {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
		}
		// Map iteration order is random; fix it so identical input yields
		// an identical table.
		sort.Strings(columns)
	}

	t := New(columns)
	for _, rec := range records {
		t.AppendRow(rec)
	}
	return t
}

// AppendRow adds one row from a field map. Keys outside the column set are
// ignored; missing keys become nil cells. The row identity is its position.
func (t *Table) AppendRow(cells map[string]any) {
	t.AppendRowWithID(cells, len(t.rows))
}

// AppendRowWithID adds one row with an explicit row identity, used when a
// derived table must keep the identities of its source rows.
func (t *Table) AppendRowWithID(cells map[string]any, id int) {
	row := make([]any, len(t.columns))
	for i, c := range t.columns {
		if v, ok := cells[c]; ok {
			row[i] = v
		}
	}
	t.rows = append(t.rows, row)
	t.ids = append(t.ids, id)
}

// appendRaw adds a pre-shaped row with an explicit identity.
func (t *Table) appendRaw(row []any, id int) {
	t.rows = append(t.rows, row)
	t.ids = append(t.ids, id)
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns all cells of the named column in row order.
func (t *Table) Column(name string) ([]any, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, true
}

// Cell returns the value at (row, column). The second return is false when
// the row is out of range or the column does not exist.
func (t *Table) Cell(row int, name string) (any, bool) {
	i, ok := t.index[name]
	if !ok || row < 0 || row >= len(t.rows) {
		return nil, false
	}
	return t.rows[row][i], true
}

// RowID returns the identity of the given row, or -1 when out of range.
func (t *Table) RowID(row int) int {
	if row < 0 || row >= len(t.ids) {
		return -1
	}
	return t.ids[row]
}

// Select returns a new table holding only the named columns, in the given
// order, with row identities preserved. It fails when any column is absent.
func (t *Table) Select(columns []string) (*Table, error) {
	src := make([]int, len(columns))
	for i, c := range columns {
		idx, ok := t.index[c]
		if !ok {
			return nil, fmt.Errorf("column %q is not present", c)
		}
		src[i] = idx
	}

	out := New(columns)
	for r, row := range t.rows {
		cells := make([]any, len(columns))
		for i, idx := range src {
			cells[i] = row[idx]
		}
		out.appendRaw(cells, t.ids[r])
	}
	return out, nil
}

// Subset returns a new table holding the given rows, in the given order,
// with row identities preserved. It fails on an out-of-range index.
func (t *Table) Subset(rows []int) (*Table, error) {
	out := New(t.columns)
	for _, r := range rows {
		if r < 0 || r >= len(t.rows) {
			return nil, fmt.Errorf("row index %d out of range [0,%d)", r, len(t.rows))
		}
		cells := append([]any(nil), t.rows[r]...)
		out.appendRaw(cells, t.ids[r])
	}
	return out, nil
}

// Float coerces a cell value to float64. It accepts the numeric types that
// show up from JSON decoding, SQL scanning, and literal construction.
// nil and non-numeric values report false.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String coerces a cell value to a category string. Numbers are canonicalized
// to their decimal form so that a route id arriving as 7 or 7.0 or "7"
// encodes as the same category. nil reports false.
func String(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return canonicalNumber(x), true
	case json.Number:
		return canonicalNumber(string(x)), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func canonicalNumber(s string) string {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}
