// Package badger provides a BadgerDB-backed RecordStore for single-node
// deployments that do not run Postgres.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"

	"example.com/healthdata/internal/domain"
)

const keyPrefix = "record:"

// storedRecord is the on-disk JSON representation. It is decoupled from the
// domain struct so renaming a domain field cannot silently orphan stored data.
type storedRecord struct {
	SubjectID        string               `json:"subject_id"`
	Date             string               `json:"date"`
	StepCount        int64                `json:"step_count"`
	Distance         float64              `json:"distance"`
	ActiveEnergy     float64              `json:"active_energy"`
	HeartRateSamples []float64            `json:"heart_rate_samples"`
	AvgHeartRate     *float64             `json:"avg_heart_rate,omitempty"`
	Categories       map[string][]float64 `json:"categories"`
}

func toStored(record domain.HealthRecord) storedRecord {
	return storedRecord{
		SubjectID:        record.SubjectID,
		Date:             record.Date,
		StepCount:        record.StepCount,
		Distance:         record.Distance,
		ActiveEnergy:     record.ActiveEnergy,
		HeartRateSamples: record.HeartRateSamples,
		AvgHeartRate:     record.AvgHeartRate,
		Categories:       record.Categories,
	}
}

func (r storedRecord) toDomain() domain.HealthRecord {
	return domain.HealthRecord{
		SubjectID:        r.SubjectID,
		Date:             r.Date,
		StepCount:        r.StepCount,
		Distance:         r.Distance,
		ActiveEnergy:     r.ActiveEnergy,
		HeartRateSamples: r.HeartRateSamples,
		AvgHeartRate:     r.AvgHeartRate,
		Categories:       r.Categories,
	}
}

// Store persists JSON-encoded records under record:<subject_id>:<date> keys.
type Store struct {
	db *badgerdb.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path)
	opts.Logger = nil
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(subjectID, date string) []byte {
	return []byte(keyPrefix + subjectID + ":" + date)
}

func subjectPrefix(subjectID string) []byte {
	return []byte(keyPrefix + subjectID + ":")
}

// Get implements domain.RecordStore.
func (s *Store) Get(ctx context.Context, subjectID, date string) (*domain.HealthRecord, error) {
	var record *domain.HealthRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(recordKey(subjectID, date))
		if err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(value []byte) error {
			var stored storedRecord
			if err := json.Unmarshal(value, &stored); err != nil {
				return err
			}
			rec := stored.toDomain()
			record = &rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Upsert implements domain.RecordStore.
func (s *Store) Upsert(ctx context.Context, record domain.HealthRecord) error {
	value, err := json.Marshal(toStored(record))
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(recordKey(record.SubjectID, record.Date), value)
	})
}

// ListBySubject implements domain.RecordStore via a prefix scan. Keys embed
// the date last, so iteration order is already ascending by date.
func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]domain.HealthRecord, error) {
	return s.scan(subjectPrefix(subjectID))
}

// ListAll implements domain.RecordStore.
func (s *Store) ListAll(ctx context.Context) ([]domain.HealthRecord, error) {
	return s.scan([]byte(keyPrefix))
}

func (s *Store) scan(prefix []byte) ([]domain.HealthRecord, error) {
	records := make([]domain.HealthRecord, 0)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var stored storedRecord
				if err := json.Unmarshal(value, &stored); err != nil {
					return err
				}
				records = append(records, stored.toDomain())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
