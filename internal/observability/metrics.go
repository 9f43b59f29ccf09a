// Package observability holds the Prometheus collectors for training sessions and progression.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsStartedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "sessions",
		Name:      "started_total",
		Help:      "Number of training sessions started, labeled by exercise kind.",
	}, []string{"kind"})

	sessionsFinishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "sessions",
		Name:      "finished_total",
		Help:      "Number of training sessions finished, labeled by kind and completion state.",
	}, []string{"kind", "state"})

	xpAwardedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "progression",
		Name:      "xp_awarded_total",
		Help:      "Total experience points awarded for completed sessions.",
	})

	levelUpsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "progression",
		Name:      "level_ups_total",
		Help:      "Number of level-ups granted.",
	})

	achievementsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "progression",
		Name:      "achievements_unlocked_total",
		Help:      "Number of achievements unlocked, labeled by achievement id.",
	}, []string{"achievement"})

	statsFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "training_service",
		Subsystem: "progression",
		Name:      "stats_persist_failures_total",
		Help:      "Number of progression updates discarded because the store was unavailable.",
	})

	finishedPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "training_service",
		Subsystem: "persistence",
		Name:      "last_finished_exercise_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent finished exercise persisted to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(
		sessionsStartedCounter,
		sessionsFinishedCounter,
		xpAwardedCounter,
		levelUpsCounter,
		achievementsCounter,
		statsFailureCounter,
		finishedPersistGauge,
	)
}

// RecordSessionStarted counts a session start.
func RecordSessionStarted(kind string) {
	sessionsStartedCounter.WithLabelValues(kind).Inc()
}

// RecordSessionFinished counts a completed or cancelled session.
func RecordSessionFinished(kind, state string) {
	sessionsFinishedCounter.WithLabelValues(kind, state).Inc()
}

// RecordScore records the progression granted for one session.
func RecordScore(xp, levelUps int, unlocked []string) {
	xpAwardedCounter.Add(float64(xp))
	levelUpsCounter.Add(float64(levelUps))
	for _, id := range unlocked {
		achievementsCounter.WithLabelValues(id).Inc()
	}
}

// RecordStatsPersistFailure counts a discarded progression update.
func RecordStatsPersistFailure() {
	statsFailureCounter.Inc()
}

// RecordFinishedPersisted updates the persistence watermark gauge.
func RecordFinishedPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	finishedPersistGauge.Set(float64(ts.Unix()))
}
