// Package history keeps an append-only journal of served predictions.
// It uses BoltDB as the underlying storage engine so the journal survives
// restarts and can be inspected without the SQLite store being available.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions" // Bucket name for prediction records

// Record is one journaled prediction: the route the request was scored
// against, the predicted discount, and where the request came from.
type Record struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	RouteID     string    `json:"route_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Discount    float64   `json:"discount"`
	Source      string    `json:"source"`
}

// Journal provides persistent storage for prediction records using BoltDB.
// Records are keyed by timestamp and a random suffix, so a scan in key
// order is a scan in time order.
type Journal struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the journal database at path and
// ensures the predictions bucket exists.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create predictions bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal database gracefully.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Append journals one prediction record. A missing ID or timestamp is
// filled in; the stored key is "unixnano_id" so keys sort by time.
func (j *Journal) Append(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		key := fmt.Sprintf("%d_%s", rec.CreatedAt.UnixNano(), rec.ID)
		return b.Put([]byte(key), data)
	})
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns an empty slice.
func (j *Journal) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	records := make([]Record, 0, limit)
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read prediction records: %w", err)
	}
	return records, nil
}

// Count returns the number of journaled records.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count prediction records: %w", err)
	}
	return n, nil
}
