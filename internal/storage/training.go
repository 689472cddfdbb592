package storage

import (
	"context"
	"database/sql"
	"fmt"

	"airdiscount/internal/features"
	"airdiscount/internal/tabular"
)

// trainingQuery assembles the model's input columns from the three tables.
// Distances convert from miles to kilometers inline, average spend derives
// from the history document, and rows whose history lacks a positive trip
// count are excluded because neither trips nor spend can be derived from
// them.
const trainingQuery = `
SELECT
	d.discount_value,
	r.distance * 1.60934 AS distance_km,
	CAST(json_extract(p.travel_history, '$.trips') AS INTEGER) AS history_trips,
	CAST(json_extract(p.travel_history, '$.total_spend') AS REAL) /
		NULLIF(CAST(json_extract(p.travel_history, '$.trips') AS INTEGER), 0) AS avg_spend,
	d.route_id,
	r.origin,
	r.destination
FROM discounts d
JOIN passengers p ON d.passenger_id = p.id
JOIN routes r ON d.route_id = r.id
WHERE CAST(json_extract(p.travel_history, '$.trips') AS INTEGER) > 0
ORDER BY d.id
`

// TrainingData returns the joined training set: one feature table row and
// one discount target per usable granted discount. Returns
// ErrNoTrainingData when the query yields nothing.
func (s *Store) TrainingData(ctx context.Context) (*tabular.Table, []float64, error) {
	rows, err := s.db.QueryContext(ctx, trainingQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("query training data: %w", err)
	}
	defer rows.Close()

	t := tabular.New(features.RequiredColumns)
	var targets []float64

	for rows.Next() {
		var (
			discount   float64
			distanceKM float64
			trips      sql.NullInt64
			avgSpend   sql.NullFloat64
			routeID    int64
			origin     string
			dest       string
		)
		if err := rows.Scan(&discount, &distanceKM, &trips, &avgSpend, &routeID, &origin, &dest); err != nil {
			return nil, nil, fmt.Errorf("scan training row: %w", err)
		}

		cells := map[string]any{
			"distance_km": distanceKM,
			"route_id":    routeID,
			"origin":      origin,
			"destination": dest,
		}
		if trips.Valid {
			cells["history_trips"] = float64(trips.Int64)
		}
		if avgSpend.Valid {
			cells["avg_spend"] = avgSpend.Float64
		}

		t.AppendRow(cells)
		targets = append(targets, discount)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read training rows: %w", err)
	}

	if t.NumRows() == 0 {
		return nil, nil, ErrNoTrainingData
	}
	return t, targets, nil
}

// RouteUsage summarizes granted discounts for one route.
type RouteUsage struct {
	PassengerCount  int     `json:"passenger_count"`
	AverageDiscount float64 `json:"average_discount"`
}

// Usage returns how many distinct passengers received a discount on the
// route and the mean discount granted. A route with no discounts reports
// zeros rather than an error.
func (s *Store) Usage(ctx context.Context, routeID int64) (RouteUsage, error) {
	var u RouteUsage
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT passenger_id), COALESCE(AVG(discount_value), 0)
		FROM discounts WHERE route_id = ?`, routeID).
		Scan(&u.PassengerCount, &u.AverageDiscount)
	if err != nil {
		return RouteUsage{}, fmt.Errorf("route usage %d: %w", routeID, err)
	}
	return u, nil
}

// DestinationCount pairs a destination with the number of discounts granted
// on routes reaching it.
type DestinationCount struct {
	Destination string `json:"destination"`
	Discounts   int    `json:"discounts"`
}

// TopDestinations lists the destinations most often discounted from the
// given origin, busiest first and alphabetical within ties.
func (s *Store) TopDestinations(ctx context.Context, origin string, limit int) ([]DestinationCount, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.destination, COUNT(d.id) AS uses
		FROM routes r
		JOIN discounts d ON d.route_id = r.id
		WHERE r.origin = ?
		GROUP BY r.destination
		ORDER BY uses DESC, r.destination ASC
		LIMIT ?`, origin, limit)
	if err != nil {
		return nil, fmt.Errorf("top destinations for %q: %w", origin, err)
	}
	defer rows.Close()

	var out []DestinationCount
	for rows.Next() {
		var dc DestinationCount
		if err := rows.Scan(&dc.Destination, &dc.Discounts); err != nil {
			return nil, fmt.Errorf("scan destination row: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}
