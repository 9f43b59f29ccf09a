package outbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Outbox events published to Kafka, by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Outbox events whose batch failed to publish, by event type.",
	}, []string{"event_type"})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Outbox events moved to the dead-letter queue, by topic and event type.",
	}, []string{"topic", "event_type"})

	publishLag = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "training_service",
		Subsystem: "outbox",
		Name:      "publish_lag_seconds",
		Help:      "Time from outbox insert to successful publish, by event type.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
	}, []string{"event_type"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "training_service",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent processing one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, dlqCounter, publishLag, batchDuration)
}

func recordDelivered(messages []Message, now time.Time) {
	for _, msg := range messages {
		deliveredCounter.WithLabelValues(msg.EventType).Inc()
		if !msg.CreatedAt.IsZero() {
			publishLag.WithLabelValues(msg.EventType).Observe(now.Sub(msg.CreatedAt).Seconds())
		}
	}
}

func recordFailed(messages []Message) {
	for _, msg := range messages {
		failedCounter.WithLabelValues(msg.EventType).Inc()
	}
}

func recordDLQ(msg Message) {
	dlqCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}
