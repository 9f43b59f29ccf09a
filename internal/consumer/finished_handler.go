package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"example.com/training/internal/events"
)

var finishedEventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "training_service",
	Subsystem: "consumer",
	Name:      "finished_exercises_total",
	Help:      "Finished exercise events observed on the bus, labeled by kind and completion state.",
}, []string{"kind", "state"})

func init() {
	prometheus.MustRegister(finishedEventsCounter)
}

// FinishedExerciseHandler audits exercise.finished events.
type FinishedExerciseHandler struct {
	logger logrus.FieldLogger
}

// NewFinishedExerciseHandler constructs the handler.
func NewFinishedExerciseHandler(logger logrus.FieldLogger) *FinishedExerciseHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FinishedExerciseHandler{logger: logger}
}

// Handle validates the event and records it.
func (h *FinishedExerciseHandler) Handle(_ context.Context, msg Message) error {
	finished, err := parseFinished(msg)
	if err != nil {
		return err
	}

	finishedEventsCounter.WithLabelValues(finished.Kind, finished.State).Inc()
	h.logger.WithFields(logrus.Fields{
		"user_id":     finished.UserID,
		"exercise_id": finished.ExerciseID,
		"state":       finished.State,
		"topic":       msg.Topic,
	}).Info("exercise finished")
	return nil
}

func parseFinished(msg Message) (events.ExerciseFinished, error) {
	var f events.ExerciseFinished
	if err := json.Unmarshal(msg.Payload, &f); err != nil {
		return f, fmt.Errorf("%w: decode finished exercise: %v", ErrPermanent, err)
	}
	if f.FinishedID == "" || f.UserID == "" {
		return f, fmt.Errorf("%w: finished exercise missing ids", ErrPermanent)
	}
	switch f.State {
	case "completed", "cancelled":
	default:
		return f, fmt.Errorf("%w: unknown state %q", ErrPermanent, f.State)
	}
	if msg.UserID != "" && msg.UserID != f.UserID {
		return f, fmt.Errorf("%w: user header %q does not match payload %q", ErrPermanent, msg.UserID, f.UserID)
	}
	return f, nil
}
