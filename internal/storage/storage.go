// Package storage provides persistent data storage for the discount service.
// It uses SQLite as the underlying engine to store passengers, routes, and
// granted discounts, and assembles the joined training set for the model.
//
// The schema keeps passenger travel history as a JSON document so synthetic
// and seeded records can carry different field sets; the training query
// extracts what it needs and skips rows without usable history.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNoTrainingData is returned when the joined training query yields
	// no usable rows.
	ErrNoTrainingData = errors.New("no training data found")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS passengers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	travel_history TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS routes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	origin TEXT NOT NULL,
	destination TEXT NOT NULL,
	distance REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS discounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	passenger_id INTEGER NOT NULL REFERENCES passengers(id),
	route_id INTEGER NOT NULL REFERENCES routes(id),
	discount_value REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discounts_route ON discounts(route_id);
CREATE INDEX IF NOT EXISTS idx_discounts_passenger ON discounts(passenger_id);
`

// Passenger is a stored passenger row. TravelHistory holds the raw JSON
// document, for example {"trips": 12, "total_spend": 4800}.
type Passenger struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	TravelHistory string `json:"travel_history"`
}

// Route is a stored route row. Distance is in miles as delivered by the
// data sources; the training query converts to kilometers.
type Route struct {
	ID            int64   `json:"id"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DistanceMiles float64 `json:"distance"`
}

// Counts reports the table sizes, used by the load report and health output.
type Counts struct {
	Passengers int `json:"passengers"`
	Routes     int `json:"routes"`
	Discounts  int `json:"discounts"`
}

// Store provides persistent storage for discount training data using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=1000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertPassenger stores a passenger with its travel history JSON document
// and returns the new row id.
func (s *Store) InsertPassenger(ctx context.Context, name, travelHistory string) (int64, error) {
	if travelHistory == "" {
		travelHistory = "{}"
	}
	if !json.Valid([]byte(travelHistory)) {
		return 0, fmt.Errorf("insert passenger %q: travel history is not valid JSON", name)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO passengers (name, travel_history) VALUES (?, ?)",
		name, travelHistory)
	if err != nil {
		return 0, fmt.Errorf("insert passenger: %w", err)
	}
	return res.LastInsertId()
}

// InsertRoute stores a route with its distance in miles and returns the new
// row id.
func (s *Store) InsertRoute(ctx context.Context, origin, destination string, distanceMiles float64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO routes (origin, destination, distance) VALUES (?, ?, ?)",
		origin, destination, distanceMiles)
	if err != nil {
		return 0, fmt.Errorf("insert route: %w", err)
	}
	return res.LastInsertId()
}

// InsertDiscount records a granted discount and returns the new row id.
// Foreign keys are enforced, so both referenced rows must exist.
func (s *Store) InsertDiscount(ctx context.Context, passengerID, routeID int64, value float64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO discounts (passenger_id, route_id, discount_value) VALUES (?, ?, ?)",
		passengerID, routeID, value)
	if err != nil {
		return 0, fmt.Errorf("insert discount: %w", err)
	}
	return res.LastInsertId()
}

// Counts returns the current table sizes.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM passengers),
			(SELECT COUNT(*) FROM routes),
			(SELECT COUNT(*) FROM discounts)`)
	if err := row.Scan(&c.Passengers, &c.Routes, &c.Discounts); err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// ClearAll deletes every row from all three tables and resets the id
// sequences, so a subsequent load starts from id 1.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear tables: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM discounts",
		"DELETE FROM passengers",
		"DELETE FROM routes",
		"DELETE FROM sqlite_sequence WHERE name IN ('passengers', 'routes', 'discounts')",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}
	return tx.Commit()
}

// SeedSampleData inserts the built-in demo rows: three passengers, three
// routes, three granted discounts. The seeded travel histories use the
// flights/miles field names delivered by the legacy feed, which the
// training query does not read, so seeded rows never reach the model.
func (s *Store) SeedSampleData(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed sample data: %w", err)
	}
	defer tx.Rollback()

	passengers := []struct {
		name    string
		history string
	}{
		{"John Smith", `{"flights": 10, "miles": 5000}`},
		{"Jane Doe", `{"flights": 25, "miles": 15000}`},
		{"Bob Johnson", `{"flights": 5, "miles": 2500}`},
	}
	for _, p := range passengers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO passengers (name, travel_history) VALUES (?, ?)",
			p.name, p.history); err != nil {
			return fmt.Errorf("seed passengers: %w", err)
		}
	}

	routes := []struct {
		origin, destination string
		distance            float64
	}{
		{"New York", "London", 3459.0},
		{"Los Angeles", "Tokyo", 5478.0},
		{"San Francisco", "Paris", 5558.0},
	}
	for _, r := range routes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO routes (origin, destination, distance) VALUES (?, ?, ?)",
			r.origin, r.destination, r.distance); err != nil {
			return fmt.Errorf("seed routes: %w", err)
		}
	}

	discounts := []struct {
		passengerID, routeID int64
		value                float64
	}{
		{1, 1, 15.0},
		{2, 2, 25.0},
		{3, 3, 10.0},
	}
	for _, d := range discounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO discounts (passenger_id, route_id, discount_value) VALUES (?, ?, ?)",
			d.passengerID, d.routeID, d.value); err != nil {
			return fmt.Errorf("seed discounts: %w", err)
		}
	}

	return tx.Commit()
}

// RouteByID returns a single route row.
func (s *Store) RouteByID(ctx context.Context, id int64) (Route, error) {
	var r Route
	err := s.db.QueryRowContext(ctx,
		"SELECT id, origin, destination, distance FROM routes WHERE id = ?", id).
		Scan(&r.ID, &r.Origin, &r.Destination, &r.DistanceMiles)
	if errors.Is(err, sql.ErrNoRows) {
		return Route{}, fmt.Errorf("route %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Route{}, fmt.Errorf("load route %d: %w", id, err)
	}
	return r, nil
}
