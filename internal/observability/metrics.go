package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mergeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthdata",
		Subsystem: "merge",
		Name:      "merges_total",
		Help:      "Number of merge attempts grouped by outcome.",
	}, []string{"outcome"})

	mergePersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthdata",
		Subsystem: "merge",
		Name:      "last_merge_timestamp_seconds",
		Help:      "Unix timestamp of the most recent merged record written to the store.",
	})

	queryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthdata",
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "Number of query requests grouped by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(mergeCounter, mergePersistGauge, queryCounter)
}

// RecordMergeOutcome counts a merge attempt. Outcomes: applied,
// validation_error, storage_error.
func RecordMergeOutcome(outcome string) {
	mergeCounter.WithLabelValues(outcome).Inc()
}

// RecordMergesApplied counts n committed per-date merges at once.
func RecordMergesApplied(n int) {
	mergeCounter.WithLabelValues("applied").Add(float64(n))
}

// RecordMergePersisted updates the persistence watermark gauge.
func RecordMergePersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	mergePersistGauge.Set(float64(ts.Unix()))
}

// RecordQueryOutcome counts a query request. Outcomes: ok, not_found,
// validation_error, storage_error.
func RecordQueryOutcome(outcome string) {
	queryCounter.WithLabelValues(outcome).Inc()
}
