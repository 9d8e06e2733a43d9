package domain

import (
	"math"
	"sort"
)

// HealthRecord is the reconciled state for one subject on one calendar date.
// The pair (SubjectID, Date) identifies at most one record.
type HealthRecord struct {
	SubjectID        string
	Date             string
	StepCount        int64
	Distance         float64
	ActiveEnergy     float64
	HeartRateSamples []float64
	AvgHeartRate     *float64
	Categories       map[string][]float64
}

// MetricDelta is one date's incremental contribution from a submission. All
// fields are optional; zero values merge as no-ops for their field.
type MetricDelta struct {
	StepCount        int64                `json:"step_count"`
	Distance         float64              `json:"distance"`
	ActiveEnergy     float64              `json:"active_energy"`
	HeartRateSamples []float64            `json:"heart_rate_samples"`
	Categories       map[string][]float64 `json:"categories"`
}

// NewHealthRecord returns the all-default record used before the first merge
// for a key.
func NewHealthRecord(subjectID, date string) *HealthRecord {
	return &HealthRecord{
		SubjectID:        subjectID,
		Date:             date,
		HeartRateSamples: []float64{},
		Categories:       map[string][]float64{},
	}
}

// Apply merges the delta into the record: counters are summed, heart-rate
// samples and category values are appended in the order received. Existing
// values are never reduced or removed.
func (r *HealthRecord) Apply(delta MetricDelta) {
	r.StepCount += delta.StepCount
	r.Distance += delta.Distance
	r.ActiveEnergy += delta.ActiveEnergy
	r.HeartRateSamples = append(r.HeartRateSamples, delta.HeartRateSamples...)

	if len(delta.Categories) > 0 && r.Categories == nil {
		r.Categories = make(map[string][]float64, len(delta.Categories))
	}
	for name, values := range delta.Categories {
		r.Categories[name] = append(r.Categories[name], values...)
	}
}

// Derive recomputes AvgHeartRate from the accumulated samples: the mean
// rounded to two decimals, or absent when no samples exist. It runs after
// every merge and is idempotent for a fixed sample sequence.
func (r *HealthRecord) Derive() {
	if len(r.HeartRateSamples) == 0 {
		r.AvgHeartRate = nil
		return
	}
	var sum float64
	for _, sample := range r.HeartRateSamples {
		sum += sample
	}
	avg := math.Round(sum/float64(len(r.HeartRateSamples))*100) / 100
	r.AvgHeartRate = &avg
}

func sortRecordsByDate(records []HealthRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
}

func sortRecordsBySubject(records []HealthRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].SubjectID != records[j].SubjectID {
			return records[i].SubjectID < records[j].SubjectID
		}
		return records[i].Date < records[j].Date
	})
}

// Clone returns a deep copy so stored records cannot be mutated through
// returned slices and maps.
func (r *HealthRecord) Clone() *HealthRecord {
	out := *r
	out.HeartRateSamples = append([]float64(nil), r.HeartRateSamples...)
	if r.AvgHeartRate != nil {
		avg := *r.AvgHeartRate
		out.AvgHeartRate = &avg
	}
	if r.Categories != nil {
		out.Categories = make(map[string][]float64, len(r.Categories))
		for name, values := range r.Categories {
			out.Categories[name] = append([]float64(nil), values...)
		}
	}
	return &out
}
