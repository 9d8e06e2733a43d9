// Package memory provides an in-memory RecordStore for local development and
// tests.
package memory

import (
	"context"
	"sync"

	"example.com/healthdata/internal/domain"
)

// Store keeps records in a nested map keyed by subject then date. Reads
// return deep copies so callers cannot mutate stored state through shared
// slices.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]*domain.HealthRecord
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]map[string]*domain.HealthRecord)}
}

// Get implements domain.RecordStore.
func (s *Store) Get(ctx context.Context, subjectID, date string) (*domain.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[subjectID][date]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

// Upsert implements domain.RecordStore.
func (s *Store) Upsert(ctx context.Context, record domain.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.records[record.SubjectID]
	if !ok {
		byDate = make(map[string]*domain.HealthRecord)
		s.records[record.SubjectID] = byDate
	}
	byDate[record.Date] = record.Clone()
	return nil
}

// ListBySubject implements domain.RecordStore. Order is unspecified; the
// query engine sorts.
func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]domain.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := s.records[subjectID]
	out := make([]domain.HealthRecord, 0, len(byDate))
	for _, record := range byDate {
		out = append(out, *record.Clone())
	}
	return out, nil
}

// ListAll implements domain.RecordStore.
func (s *Store) ListAll(ctx context.Context) ([]domain.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HealthRecord, 0)
	for _, byDate := range s.records {
		for _, record := range byDate {
			out = append(out, *record.Clone())
		}
	}
	return out, nil
}
