// Package domain implements the reconciliation engine for health-metric
// submissions: merging incoming deltas into stored per-day records,
// recomputing derived values, and serving filtered reads.
package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecordStore is the persistence gateway consumed by the engine. Get returns
// nil without error when no record exists for the key. Implementations only
// need plain per-key get/upsert; merge serialization is handled here.
type RecordStore interface {
	Get(ctx context.Context, subjectID, date string) (*HealthRecord, error)
	Upsert(ctx context.Context, record HealthRecord) error
	ListBySubject(ctx context.Context, subjectID string) ([]HealthRecord, error)
	ListAll(ctx context.Context) ([]HealthRecord, error)
}

// RecordMerged notifies downstream consumers that a merge committed.
type RecordMerged struct {
	EventID      string    `json:"event_id"`
	SubjectID    string    `json:"subject_id"`
	Date         string    `json:"date"`
	StepCount    int64     `json:"step_count"`
	Distance     float64   `json:"distance"`
	ActiveEnergy float64   `json:"active_energy"`
	AvgHeartRate *float64  `json:"avg_heart_rate,omitempty"`
	MergedAt     time.Time `json:"merged_at"`
}

// EventSink receives merge notifications. Delivery is best-effort; a sink
// must not block the merge path.
type EventSink interface {
	RecordMerged(event RecordMerged)
}

// Service is the merge and query engine operating over a RecordStore.
type Service struct {
	store  RecordStore
	events EventSink
	locks  lockTable
}

// NewService constructs a Service. events may be nil when no sink is wired.
func NewService(store RecordStore, events EventSink) *Service {
	return &Service{
		store:  store,
		events: events,
		locks:  lockTable{entries: make(map[string]*keyLock)},
	}
}

// IngestBatch normalizes the submission and merges each date's delta in
// order. Merges commit per key: a storage failure stops the batch but leaves
// earlier dates committed. Returns the dates merged so far on failure.
func (s *Service) IngestBatch(ctx context.Context, submission Submission) ([]string, error) {
	deltas, err := submission.Normalize()
	if err != nil {
		return nil, err
	}

	merged := make([]string, 0, len(deltas))
	for _, dd := range deltas {
		if _, err := s.Merge(ctx, submission.SubjectID, dd.Date, dd.Delta); err != nil {
			return merged, err
		}
		merged = append(merged, dd.Date)
	}
	return merged, nil
}

// Merge combines the delta with the stored record for (subjectID, date),
// recomputes derived fields, and writes the result back. The read-combine-
// write sequence is serialized per key, so concurrent merges on the same key
// never lose a contribution. The merge is additive, not idempotent:
// resubmitting the same delta double-counts it.
func (s *Service) Merge(ctx context.Context, subjectID, date string, delta MetricDelta) (*HealthRecord, error) {
	unlock := s.locks.acquire(subjectID + "\x00" + date)
	defer unlock()

	existing, err := s.store.Get(ctx, subjectID, date)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}

	record := existing
	if record == nil {
		record = NewHealthRecord(subjectID, date)
	}
	record.Apply(delta)
	record.Derive()

	if err := s.store.Upsert(ctx, *record); err != nil {
		return nil, &StorageError{Op: "upsert", Err: err}
	}

	if s.events != nil {
		s.events.RecordMerged(RecordMerged{
			EventID:      uuid.NewString(),
			SubjectID:    record.SubjectID,
			Date:         record.Date,
			StepCount:    record.StepCount,
			Distance:     record.Distance,
			ActiveEnergy: record.ActiveEnergy,
			AvgHeartRate: record.AvgHeartRate,
			MergedAt:     time.Now().UTC(),
		})
	}
	return record, nil
}

// Query returns the subject's records restricted to the optional inclusive
// [startDate, endDate] range, sorted ascending by date. ISO date strings
// compare lexicographically in chronological order, so the filter is a plain
// string comparison. Returns ErrNoRecords when nothing matches.
func (s *Service) Query(ctx context.Context, subjectID, startDate, endDate string) ([]HealthRecord, error) {
	for _, bound := range []string{startDate, endDate} {
		if bound == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, bound); err != nil {
			return nil, NewValidationError("invalid date bound %q: expected YYYY-MM-DD", bound)
		}
	}

	records, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}

	filtered := records[:0]
	for _, record := range records {
		if startDate != "" && record.Date < startDate {
			continue
		}
		if endDate != "" && record.Date > endDate {
			continue
		}
		filtered = append(filtered, record)
	}
	if len(filtered) == 0 {
		return nil, ErrNoRecords
	}

	sortRecordsByDate(filtered)
	return filtered, nil
}

// ListAll returns every stored record across subjects, sorted by subject then
// date.
func (s *Service) ListAll(ctx context.Context) ([]HealthRecord, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	sortRecordsBySubject(records)
	return records, nil
}

// lockTable hands out one mutex per live key. Entries are reference counted
// and removed once the last holder releases, so the table does not grow with
// the full key history.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (t *lockTable) acquire(key string) func() {
	t.mu.Lock()
	entry, ok := t.entries[key]
	if !ok {
		entry = &keyLock{}
		t.entries[key] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}
