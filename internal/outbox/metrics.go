package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healthdata",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Number of merge events delivered to Kafka.",
	})

	publishFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healthdata",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Number of merge events that failed to deliver.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "healthdata",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Number of merge events dropped because the buffer was full.",
	})
)

func init() {
	prometheus.MustRegister(publishedCounter, publishFailedCounter, droppedCounter)
}

func recordPublished()     { publishedCounter.Inc() }
func recordPublishFailed() { publishFailedCounter.Inc() }
func recordDropped()       { droppedCounter.Inc() }
