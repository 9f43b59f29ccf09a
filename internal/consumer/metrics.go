package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Handling outcomes, recorded per event type.
const (
	outcomeHandled   = "handled"
	outcomeRetry     = "retry"
	outcomePermanent = "permanent_failure"
)

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "consumer",
		Name:      "events_total",
		Help:      "Decoded training events by topic, event type and handling outcome.",
	}, []string{"topic", "event_type", "outcome"})

	unroutedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "consumer",
		Name:      "unrouted_events_total",
		Help:      "Events acknowledged without a registered handler, by event type.",
	}, []string{"event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Records committed because they were not valid framed events, by topic.",
	}, []string{"topic"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "training_service",
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Handler latency by event type.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"event_type"})

	deliveryDelay = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "training_service",
		Subsystem: "consumer",
		Name:      "delivery_delay_seconds",
		Help:      "Time from Kafka append to successful handling, by event type.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(eventsCounter, unroutedCounter, decodeErrorCounter, handleDuration, deliveryDelay)
}

func recordOutcome(msg Message, outcome string, took time.Duration) {
	eventsCounter.WithLabelValues(msg.Topic, msg.EventType, outcome).Inc()
	handleDuration.WithLabelValues(msg.EventType).Observe(took.Seconds())
	if outcome == outcomeHandled && !msg.Timestamp.IsZero() {
		deliveryDelay.WithLabelValues(msg.EventType).Observe(time.Since(msg.Timestamp).Seconds())
	}
}

func recordUnrouted(eventType string) {
	unroutedCounter.WithLabelValues(eventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
