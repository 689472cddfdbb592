// Package agent holds the rule-based collaborators that sit next to the
// fitted model: a heuristic discount calculator and a route analyzer
// that aggregates granted discounts from the store.
package agent

import (
	"context"
	"fmt"

	"airdiscount/internal/storage"
)

// historyTripKeys are checked in order; the first key present in the
// travel history wins, even when its value is zero.
var historyTripKeys = []string{"flights", "history_trips", "trips"}

// DiscountAgent computes a rule-based discount independent of the
// fitted model, used as a sanity reference next to predictions.
type DiscountAgent struct{}

// Calculate returns the additive heuristic discount for a route and a
// passenger's travel history: +10 for frequent flyers (more than five
// trips), +5 for long-haul routes (more than 1000 miles).
func (DiscountAgent) Calculate(route storage.Route, history map[string]any) float64 {
	discount := 0.0

	if trips, ok := historyTrips(history); ok && trips > 5 {
		discount += 10
	}
	if route.DistanceMiles > 1000 {
		discount += 5
	}
	return discount
}

func historyTrips(history map[string]any) (float64, bool) {
	for _, key := range historyTripKeys {
		if v, ok := history[key]; ok {
			n, _ := asFloat(v)
			return n, true
		}
	}
	return 0, false
}

// asFloat coerces the numeric types JSON decoding and database scans
// produce. Anything else counts as zero trips.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// RouteStore is the read-only slice of the store the analyzer needs.
type RouteStore interface {
	RouteByID(ctx context.Context, id int64) (storage.Route, error)
	Usage(ctx context.Context, routeID int64) (storage.RouteUsage, error)
	TopDestinations(ctx context.Context, origin string, limit int) ([]storage.DestinationCount, error)
}

// Insights aggregates what the store knows about one route: who flew
// it, what they were granted, and where travelers from the same origin
// most often go.
type Insights struct {
	Route               storage.Route              `json:"route"`
	PassengerCount      int                        `json:"passenger_count"`
	AverageDiscount     float64                    `json:"average_discount"`
	PopularDestinations []storage.DestinationCount `json:"popular_destinations"`
}

// RouteAnalyzer answers route-level questions from stored discounts.
type RouteAnalyzer struct {
	store RouteStore
}

// NewRouteAnalyzer returns an analyzer backed by the given store.
func NewRouteAnalyzer(store RouteStore) *RouteAnalyzer {
	return &RouteAnalyzer{store: store}
}

// HeuristicDiscount applies the rule-based agent to a stored route and
// a passenger's travel history.
func (a *RouteAnalyzer) HeuristicDiscount(ctx context.Context, routeID int64, history map[string]any) (float64, error) {
	route, err := a.store.RouteByID(ctx, routeID)
	if err != nil {
		return 0, err
	}
	return DiscountAgent{}.Calculate(route, history), nil
}

// Analyze loads the route and summarizes its discount usage. Unknown
// routes surface the store's not-found error unchanged.
func (a *RouteAnalyzer) Analyze(ctx context.Context, routeID int64) (*Insights, error) {
	route, err := a.store.RouteByID(ctx, routeID)
	if err != nil {
		return nil, err
	}

	usage, err := a.store.Usage(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("route usage: %w", err)
	}

	top, err := a.store.TopDestinations(ctx, route.Origin, 5)
	if err != nil {
		return nil, fmt.Errorf("popular destinations: %w", err)
	}
	if top == nil {
		top = []storage.DestinationCount{}
	}

	return &Insights{
		Route:               route,
		PassengerCount:      usage.PassengerCount,
		AverageDiscount:     usage.AverageDiscount,
		PopularDestinations: top,
	}, nil
}
