package synth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Store is the subset of the relational store the loader writes to.
type Store interface {
	InsertPassenger(ctx context.Context, name, travelHistory string) (int64, error)
	InsertRoute(ctx context.Context, origin, destination string, distanceMiles float64) (int64, error)
	InsertDiscount(ctx context.Context, passengerID, routeID int64, value float64) (int64, error)
}

// Loaded reports how many rows of each collection were inserted.
type Loaded struct {
	Passengers int `json:"passengers"`
	Routes     int `json:"routes"`
	Discounts  int `json:"discounts"`
}

// LoadIntoStore inserts a generated dataset into the store. The
// generator emits discounts without foreign keys, so each discount is
// linked to a passenger and a route round-robin by index.
func LoadIntoStore(ctx context.Context, store Store, ds *Dataset) (Loaded, error) {
	var loaded Loaded

	passengerIDs := make([]int64, 0, len(ds.Passengers))
	for i, p := range ds.Passengers {
		history := "{}"
		if len(p.TravelHistory) > 0 {
			history = string(p.TravelHistory)
		}
		id, err := store.InsertPassenger(ctx, p.Name, history)
		if err != nil {
			return loaded, fmt.Errorf("load passenger %d: %w", i, err)
		}
		passengerIDs = append(passengerIDs, id)
		loaded.Passengers++
	}

	routeIDs := make([]int64, 0, len(ds.Routes))
	for i, r := range ds.Routes {
		id, err := store.InsertRoute(ctx, r.Origin, r.Destination, r.DistanceMiles)
		if err != nil {
			return loaded, fmt.Errorf("load route %d: %w", i, err)
		}
		routeIDs = append(routeIDs, id)
		loaded.Routes++
	}

	if len(ds.Discounts) > 0 && (len(passengerIDs) == 0 || len(routeIDs) == 0) {
		return loaded, fmt.Errorf("cannot link %d discounts: generated %d passengers and %d routes",
			len(ds.Discounts), len(passengerIDs), len(routeIDs))
	}
	for i, d := range ds.Discounts {
		pid := passengerIDs[i%len(passengerIDs)]
		rid := routeIDs[i%len(routeIDs)]
		if _, err := store.InsertDiscount(ctx, pid, rid, d.DiscountValue); err != nil {
			return loaded, fmt.Errorf("load discount %d: %w", i, err)
		}
		loaded.Discounts++
	}

	log.Info().
		Int("passengers", loaded.Passengers).
		Int("routes", loaded.Routes).
		Int("discounts", loaded.Discounts).
		Msg("Synthetic dataset loaded")

	return loaded, nil
}
