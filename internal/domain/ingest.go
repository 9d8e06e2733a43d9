package domain

import (
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Submission is a batch of metric deltas for one subject, keyed by calendar
// date.
type Submission struct {
	SubjectID string
	Data      map[string]MetricDelta
}

// DatedDelta pairs a calendar date with the delta submitted for it.
type DatedDelta struct {
	Date  string
	Delta MetricDelta
}

// Normalize validates the submission and flattens it into one DatedDelta per
// date, sorted ascending. Date keys are independent, so the order is not
// observable in the final state; sorting keeps batch processing and partial
// failure reporting deterministic.
func (s Submission) Normalize() ([]DatedDelta, error) {
	if strings.TrimSpace(s.SubjectID) == "" {
		return nil, NewValidationError("subject_id is required")
	}
	if len(s.Data) == 0 {
		return nil, NewValidationError("data must contain at least one date entry")
	}

	out := make([]DatedDelta, 0, len(s.Data))
	for date, delta := range s.Data {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, NewValidationError("invalid date key %q: expected YYYY-MM-DD", date)
		}
		if err := delta.validate(date); err != nil {
			return nil, err
		}
		out = append(out, DatedDelta{Date: date, Delta: delta})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// validate rejects deltas that would violate the monotonicity of the additive
// fields. Merging never subtracts, so negative contributions are client errors.
func (d MetricDelta) validate(date string) error {
	if d.StepCount < 0 {
		return NewValidationError("step_count for %s must be non-negative", date)
	}
	if d.Distance < 0 {
		return NewValidationError("distance for %s must be non-negative", date)
	}
	if d.ActiveEnergy < 0 {
		return NewValidationError("active_energy for %s must be non-negative", date)
	}
	return nil
}
