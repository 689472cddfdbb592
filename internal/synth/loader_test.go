package synth

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"airdiscount/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadIntoStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds := &Dataset{
		Passengers: []GeneratedPassenger{
			{Name: "Ava Chen", TravelHistory: json.RawMessage(`{"trips": 4, "total_spend": 1200}`)},
			{Name: "Liam Ortiz", TravelHistory: json.RawMessage(`{"trips": 9, "total_spend": 5100}`)},
		},
		Routes: []GeneratedRoute{
			{Origin: "Oslo", Destination: "Rome", DistanceMiles: 1245.0},
			{Origin: "Lima", Destination: "Madrid", DistanceMiles: 5907.0},
		},
		Discounts: []GeneratedDiscount{
			{DiscountValue: 11.0},
			{DiscountValue: 15.0},
			{DiscountValue: 20.0},
		},
	}

	loaded, err := LoadIntoStore(ctx, store, ds)
	if err != nil {
		t.Fatalf("LoadIntoStore() error = %v", err)
	}
	if loaded.Passengers != 2 || loaded.Routes != 2 || loaded.Discounts != 3 {
		t.Errorf("loaded = %+v, want 2/2/3", loaded)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if counts.Passengers != 2 || counts.Routes != 2 || counts.Discounts != 3 {
		t.Errorf("store counts = %+v, want 2/2/3", counts)
	}

	// Discounts 0 and 2 both land on passenger 1 / route 1, discount 1
	// on passenger 2 / route 2.
	usage, err := store.Usage(ctx, 1)
	if err != nil {
		t.Fatalf("Usage(1) error = %v", err)
	}
	if usage.PassengerCount != 1 {
		t.Errorf("route 1 passenger count = %d, want 1", usage.PassengerCount)
	}
	if math.Abs(usage.AverageDiscount-15.5) > 1e-9 {
		t.Errorf("route 1 average discount = %v, want 15.5", usage.AverageDiscount)
	}

	usage, err = store.Usage(ctx, 2)
	if err != nil {
		t.Fatalf("Usage(2) error = %v", err)
	}
	if usage.PassengerCount != 1 || math.Abs(usage.AverageDiscount-15.0) > 1e-9 {
		t.Errorf("route 2 usage = %+v, want 1 passenger at 15.0", usage)
	}

	// Travel history survives the round trip into training rows.
	table, targets, err := store.TrainingData(ctx)
	if err != nil {
		t.Fatalf("TrainingData() error = %v", err)
	}
	if table.NumRows() != 3 {
		t.Errorf("training rows = %d, want 3", table.NumRows())
	}
	if len(targets) != 3 || targets[0] != 11.0 || targets[1] != 15.0 || targets[2] != 20.0 {
		t.Errorf("targets = %v, want [11 15 20]", targets)
	}
}

func TestLoadIntoStoreEmptyHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ds := &Dataset{
		Passengers: []GeneratedPassenger{{Name: "No History"}},
	}

	loaded, err := LoadIntoStore(ctx, store, ds)
	if err != nil {
		t.Fatalf("LoadIntoStore() error = %v", err)
	}
	if loaded.Passengers != 1 {
		t.Errorf("loaded passengers = %d, want 1", loaded.Passengers)
	}
}

func TestLoadIntoStoreBadHistory(t *testing.T) {
	store := newTestStore(t)

	ds := &Dataset{
		Passengers: []GeneratedPassenger{
			{Name: "Broken", TravelHistory: json.RawMessage("not-json")},
		},
	}

	_, err := LoadIntoStore(context.Background(), store, ds)
	if err == nil || !strings.Contains(err.Error(), "load passenger 0") {
		t.Errorf("LoadIntoStore() error = %v, want load passenger 0", err)
	}
}

func TestLoadIntoStoreDiscountsWithoutParents(t *testing.T) {
	store := newTestStore(t)

	ds := &Dataset{
		Discounts: []GeneratedDiscount{{DiscountValue: 10.0}},
	}

	_, err := LoadIntoStore(context.Background(), store, ds)
	if err == nil || !strings.Contains(err.Error(), "cannot link") {
		t.Errorf("LoadIntoStore() error = %v, want cannot link", err)
	}
}

func TestLoadIntoStoreEmptyDataset(t *testing.T) {
	store := newTestStore(t)

	loaded, err := LoadIntoStore(context.Background(), store, &Dataset{})
	if err != nil {
		t.Fatalf("LoadIntoStore() error = %v", err)
	}
	if loaded != (Loaded{}) {
		t.Errorf("loaded = %+v, want zero counts", loaded)
	}
}
