package domain

import (
	"math"
	"sync"
	"time"
)

// fallbackBurnRate is used for exercises without a predefined calorie estimate (kcal per second).
const fallbackBurnRate = 5.0 / 60.0

// SessionState reports whether a lifecycle holds a running exercise.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionRunning
)

// String returns a human-readable session state.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Lifecycle owns the single running exercise of one user.
// It is synchronous and does no I/O; callers persist what it returns.
type Lifecycle struct {
	available []Exercise
	loaded    bool
	running   *Exercise
}

// NewLifecycle returns an idle lifecycle with an empty catalog.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// SetAvailable replaces the list of exercises that Start may pick from.
func (l *Lifecycle) SetAvailable(exercises []Exercise) {
	l.available = append([]Exercise(nil), exercises...)
	l.loaded = true
}

// Loaded reports whether SetAvailable has been called.
func (l *Lifecycle) Loaded() bool {
	return l.loaded
}

// Available returns a copy of the loaded catalog.
func (l *Lifecycle) Available() []Exercise {
	return append([]Exercise(nil), l.available...)
}

// Start enters Running with a copy of the matching catalog entry.
// An unknown id leaves the lifecycle untouched and reports false.
func (l *Lifecycle) Start(exerciseID string) bool {
	for _, ex := range l.available {
		if ex.ID == exerciseID {
			running := ex
			l.running = &running
			return true
		}
	}
	return false
}

// State reports the current state.
func (l *Lifecycle) State() SessionState {
	if l.running != nil {
		return SessionRunning
	}
	return SessionIdle
}

// HasActive is true iff an exercise is running.
func (l *Lifecycle) HasActive() bool {
	return l.running != nil
}

// Running returns a copy of the running exercise.
func (l *Lifecycle) Running() (Exercise, bool) {
	if l.running == nil {
		return Exercise{}, false
	}
	return *l.running, true
}

// Complete finishes the running exercise and returns to Idle.
// It reports false when nothing is running or no user is known.
func (l *Lifecycle) Complete(userID string, result CompletionResult, now time.Time) (FinishedExercise, bool) {
	if l.running == nil || userID == "" {
		return FinishedExercise{}, false
	}
	ex := *l.running
	finished := newFinished(ex, userID, StateCompleted, now)

	switch finished.Kind {
	case KindResistance:
		payload := &ResistanceResult{}
		if result.Weight != nil {
			payload.WeightKg = *result.Weight
		}
		if result.Reps != nil {
			payload.Reps = *result.Reps
		}
		finished.Resistance = payload
	default:
		var duration float64
		switch {
		case result.Duration != nil:
			duration = *result.Duration
		case ex.PlannedDuration != nil:
			duration = *ex.PlannedDuration
		}
		calories := duration * fallbackBurnRate
		if ex.PlannedCalories != nil {
			calories = *ex.PlannedCalories
		}
		finished.Aerobic = &AerobicResult{DurationSeconds: duration, Calories: calories}
	}

	l.running = nil
	return finished, true
}

// Cancel abandons the running exercise, crediting the planned values scaled by progress (0-100).
func (l *Lifecycle) Cancel(userID string, progress float64, now time.Time) (FinishedExercise, bool) {
	if l.running == nil || userID == "" {
		return FinishedExercise{}, false
	}
	ex := *l.running
	finished := newFinished(ex, userID, StateCancelled, now)

	pct := clampProgress(progress)
	switch finished.Kind {
	case KindResistance:
		finished.Resistance = &ResistanceResult{}
	default:
		var duration, calories float64
		if ex.PlannedDuration != nil {
			duration = *ex.PlannedDuration
		}
		if ex.PlannedCalories != nil {
			calories = *ex.PlannedCalories
		}
		finished.Aerobic = &AerobicResult{DurationSeconds: duration * pct / 100, Calories: calories * pct / 100}
	}

	l.running = nil
	return finished, true
}

func newFinished(ex Exercise, userID string, state CompletionState, now time.Time) FinishedExercise {
	return FinishedExercise{
		ExerciseID: ex.ID,
		Name:       ex.Name,
		Kind:       ex.Kind.Normalize(),
		State:      state,
		Date:       now,
		UserID:     userID,
	}
}

func clampProgress(progress float64) float64 {
	switch {
	case math.IsNaN(progress), progress < 0:
		return 0
	case progress > 100:
		return 100
	default:
		return progress
	}
}

// Sessions holds one Lifecycle per user and serialises transitions for the same user.
type Sessions struct {
	mu     sync.Mutex
	byUser map[string]*Lifecycle
}

// NewSessions constructs an empty registry.
func NewSessions() *Sessions {
	return &Sessions{byUser: make(map[string]*Lifecycle)}
}

// With runs fn against the user's lifecycle, creating it on first use.
func (s *Sessions) With(userID string, fn func(*Lifecycle)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lc, ok := s.byUser[userID]
	if !ok {
		lc = NewLifecycle()
		s.byUser[userID] = lc
	}
	fn(lc)
}
