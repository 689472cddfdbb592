// Package features normalizes heterogeneous raw records into the fixed
// six-column feature schema consumed by the discount model. Derivation is a
// pure function over the input table: no state, no I/O, identical input
// yields identical output.
package features

import (
	"errors"
	"fmt"

	"airdiscount/internal/tabular"
)

// MilesToKM converts a statute-mile distance to kilometers.
const MilesToKM = 1.60934

// Column names of the fixed feature schema, in output order.
var (
	NumericColumns     = []string{"distance_km", "history_trips", "avg_spend"}
	CategoricalColumns = []string{"route_id", "origin", "destination"}
	RequiredColumns    = []string{
		"distance_km",
		"history_trips",
		"avg_spend",
		"route_id",
		"origin",
		"destination",
	}
)

// ErrEmptyInput is returned when the input table is nil or has no rows.
var ErrEmptyInput = errors.New("input table is empty")

// A rule derives one output cell from a named source field. Rules for a
// column are tried in order and the first one that produces a value wins;
// when none match the cell stays unknown (nil).
type rule struct {
	source string
	apply  func(v any, derived map[string]any) (any, bool)
}

// derivations lists the candidate rules per output column, in the fixed
// output order. Columns earlier in the list are derived first, so later
// rules may refer to them (avg_spend divides by the derived history_trips).
var derivations = []struct {
	column string
	rules  []rule
}{
	{column: "distance_km", rules: []rule{
		{source: "distance_km", apply: asNumber},
		{source: "distance", apply: milesToKM},
	}},
	{column: "history_trips", rules: []rule{
		{source: "history_trips", apply: asNumber},
		{source: "trips_count", apply: asNumber},
	}},
	{column: "avg_spend", rules: []rule{
		{source: "avg_spend", apply: asNumber},
		{source: "total_spend", apply: spendPerTrip},
	}},
	{column: "route_id", rules: []rule{
		{source: "route_id", apply: asCategory},
	}},
	{column: "origin", rules: []rule{
		{source: "origin", apply: asCategory},
	}},
	{column: "destination", rules: []rule{
		{source: "destination", apply: asCategory},
	}},
}

// Build maps raw records onto the six required feature columns, preserving
// row count, order, and identity. Missing or underivable fields become nil
// cells. It fails only when the input itself is empty.
func Build(t *tabular.Table) (*tabular.Table, error) {
	if t == nil || t.NumRows() == 0 {
		return nil, fmt.Errorf("build features: %w", ErrEmptyInput)
	}

	out := tabular.New(RequiredColumns)
	for r := 0; r < t.NumRows(); r++ {
		derived := make(map[string]any, len(RequiredColumns))
		for _, d := range derivations {
			derived[d.column] = deriveCell(t, r, d.rules, derived)
		}
		out.AppendRowWithID(derived, t.RowID(r))
	}
	return out, nil
}

func deriveCell(t *tabular.Table, row int, rules []rule, derived map[string]any) any {
	for _, rl := range rules {
		v, ok := t.Cell(row, rl.source)
		if !ok || v == nil {
			continue
		}
		if cell, ok := rl.apply(v, derived); ok {
			return cell
		}
	}
	return nil
}

func asNumber(v any, _ map[string]any) (any, bool) {
	f, ok := tabular.Float(v)
	if !ok {
		return nil, false
	}
	return f, true
}

func milesToKM(v any, _ map[string]any) (any, bool) {
	f, ok := tabular.Float(v)
	if !ok {
		return nil, false
	}
	return f * MilesToKM, true
}

// spendPerTrip derives avg_spend as total_spend over the already-derived
// history_trips. A zero or unknown trip count yields unknown rather than a
// numeric fallback.
func spendPerTrip(v any, derived map[string]any) (any, bool) {
	total, ok := tabular.Float(v)
	if !ok {
		return nil, false
	}
	trips, ok := tabular.Float(derived["history_trips"])
	if !ok || trips == 0 {
		return nil, false
	}
	return total / trips, true
}

func asCategory(v any, _ map[string]any) (any, bool) {
	s, ok := tabular.String(v)
	if !ok {
		return nil, false
	}
	return s, true
}
