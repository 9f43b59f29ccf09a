// Package events defines the payloads published to Kafka through the outbox.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeExerciseFinished      = "exercise.finished"
	TypeNotificationRequested = "notification.requested"
)

// Kafka topics the outbox publishes to.
const (
	TopicExerciseFinished = "training_exercise_finished"
	TopicNotifications    = "training_notifications"
)

// ExerciseFinished is emitted once per completed or cancelled session.
type ExerciseFinished struct {
	FinishedID      string    `json:"finished_id"`
	UserID          string    `json:"user_id"`
	ExerciseID      string    `json:"exercise_id"`
	Name            string    `json:"name"`
	Kind            string    `json:"kind"`
	State           string    `json:"state"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	Calories        *float64  `json:"calories,omitempty"`
	WeightKg        *float64  `json:"weight_kg,omitempty"`
	Reps            *int      `json:"reps,omitempty"`
}

// NotificationRequested carries one user-visible message to the notification sink.
// Sequence preserves emission order within a batch.
type NotificationRequested struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Message        string    `json:"message"`
	ActionLabel    string    `json:"action_label"`
	DurationMs     int       `json:"duration_ms"`
	Sequence       int       `json:"sequence"`
	RequestedAt    time.Time `json:"requested_at"`
}
