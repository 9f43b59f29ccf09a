package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExerciseNotFound is returned when a catalog entry cannot be located.
	ErrExerciseNotFound = errors.New("exercise not found")
	// ErrInvalidPayload indicates a finished exercise whose payload does not match its kind.
	ErrInvalidPayload = errors.New("finished exercise payload does not match kind")
)

// Kind discriminates aerobic from resistance exercises.
type Kind string

const (
	KindAerobic    Kind = "aerobic"
	KindResistance Kind = "resistance"
)

// Normalize maps unknown or empty kinds to aerobic.
func (k Kind) Normalize() Kind {
	if k == KindResistance {
		return KindResistance
	}
	return KindAerobic
}

// CompletionState is the outcome recorded on a finished exercise.
type CompletionState string

const (
	StateCompleted CompletionState = "completed"
	StateCancelled CompletionState = "cancelled"
)

// Exercise is a catalog entry. Entries with an empty OwnerID are global.
type Exercise struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Kind            Kind     `json:"kind"`
	PlannedDuration *float64 `json:"planned_duration,omitempty"`
	PlannedCalories *float64 `json:"planned_calories,omitempty"`
	OwnerID         string   `json:"owner_id,omitempty"`
}

// AerobicResult is the payload of a finished aerobic exercise.
type AerobicResult struct {
	DurationSeconds float64 `json:"duration"`
	Calories        float64 `json:"calories"`
}

// ResistanceResult is the payload of a finished resistance exercise.
type ResistanceResult struct {
	WeightKg float64 `json:"weight"`
	Reps     int     `json:"reps"`
}

// FinishedExercise is the immutable record produced when a session ends.
// Exactly one of Aerobic and Resistance is set, matching Kind.
type FinishedExercise struct {
	ID         string
	ExerciseID string
	Name       string
	Kind       Kind
	State      CompletionState
	Date       time.Time
	UserID     string
	Aerobic    *AerobicResult
	Resistance *ResistanceResult
}

// Validate enforces the tagged-union invariant.
func (f FinishedExercise) Validate() error {
	switch f.Kind {
	case KindAerobic:
		if f.Aerobic == nil || f.Resistance != nil {
			return fmt.Errorf("%w: kind=%s", ErrInvalidPayload, f.Kind)
		}
	case KindResistance:
		if f.Resistance == nil || f.Aerobic != nil {
			return fmt.Errorf("%w: kind=%s", ErrInvalidPayload, f.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, f.Kind)
	}
	if f.State != StateCompleted && f.State != StateCancelled {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidPayload, f.State)
	}
	return nil
}

// Calories returns the burned calories, zero for resistance sessions.
func (f FinishedExercise) Calories() float64 {
	if f.Aerobic == nil {
		return 0
	}
	return f.Aerobic.Calories
}

// CompletionResult carries the caller-measured values for a completed session.
type CompletionResult struct {
	Duration *float64
	Weight   *float64
	Reps     *int
}

// Float returns a pointer to v, handy for optional catalog fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
