package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeRequeued    = "requeued"
	outcomeQuarantined = "quarantined"
	outcomeRetry       = "retry_scheduled"
)

var (
	dlqHandledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "dlq",
		Name:      "entries_handled_total",
		Help:      "Number of DLQ entries handled by the manager, labeled by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "training_service",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Current number of DLQ entries awaiting replay.",
	})

	dlqQuarantineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "training_service",
		Subsystem: "dlq",
		Name:      "quarantined_messages",
		Help:      "Current number of quarantined DLQ entries.",
	})
)

func init() {
	prometheus.MustRegister(dlqHandledCounter, dlqBacklogGauge, dlqQuarantineGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqHandledCounter.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var queued, quarantined int
	row := pool.QueryRow(ctx, `SELECT
            COUNT(*) FILTER (WHERE quarantined_at IS NULL),
            COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL)
        FROM outbox_dlq`)
	if err := row.Scan(&queued, &quarantined); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(queued))
	dlqQuarantineGauge.Set(float64(quarantined))
}
