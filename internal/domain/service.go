// Package domain defines the training session lifecycle and the progression scoring rules.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/training/internal/observability"
)

// ErrHistoryUnavailable is returned when finished exercise history cannot be read.
var ErrHistoryUnavailable = errors.New("fetching past exercises failed")

// Cursor models the pagination token for finished exercise history.
type Cursor struct {
	Date time.Time
	ID   string
}

// CatalogRepository exposes the exercises a user may start.
type CatalogRepository interface {
	ListAvailable(ctx context.Context, userID string) ([]Exercise, error)
	AddExercise(ctx context.Context, exercise Exercise) (*Exercise, error)
}

// FinishedRepository persists finished exercise records. SaveFinished returns the assigned id.
type FinishedRepository interface {
	SaveFinished(ctx context.Context, finished FinishedExercise) (string, error)
	ListFinished(ctx context.Context, userID string, cursor *Cursor, limit int) ([]FinishedExercise, *Cursor, error)
}

// Outcome is what a session transition hands back to the caller.
type Outcome struct {
	Finished      *FinishedExercise
	Score         *ScoreResult
	Notifications []Notification
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the calendar used for streaks and the early-bird window.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service orchestrates training sessions, persistence and scoring.
type Service struct {
	catalog  CatalogRepository
	finished FinishedRepository
	stats    StatsRepository
	notifier Notifier
	engine   *ScoringEngine
	sessions *Sessions
	now      func() time.Time
	loc      *time.Location
	logger   logrus.FieldLogger
}

// NewService constructs a Service.
func NewService(catalog CatalogRepository, finished FinishedRepository, stats StatsRepository, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		finished: finished,
		stats:    stats,
		notifier: notifier,
		sessions: NewSessions(),
		now:      time.Now,
		loc:      time.UTC,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = NewScoringEngine(stats, s.logger)
	return s
}

// LoadAvailableExercises fetches the user's catalog and primes the session with it.
func (s *Service) LoadAvailableExercises(ctx context.Context, userID string) ([]Exercise, []Notification) {
	exercises, err := s.catalog.ListAvailable(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("fetching available exercises failed")
		exercises = []Exercise{}
		s.sessions.With(userID, func(l *Lifecycle) { l.SetAvailable(exercises) })
		notes := []Notification{fetchFailed}
		s.notify(ctx, userID, notes)
		return exercises, notes
	}
	s.sessions.With(userID, func(l *Lifecycle) { l.SetAvailable(exercises) })
	return exercises, nil
}

// AddUserExercise stores a user-authored catalog entry and refreshes the session catalog.
func (s *Service) AddUserExercise(ctx context.Context, userID string, exercise Exercise) (*Exercise, []Notification) {
	exercise.OwnerID = userID
	exercise.Kind = exercise.Kind.Normalize()

	created, err := s.catalog.AddExercise(ctx, exercise)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("adding user exercise failed")
		notes := []Notification{exerciseAddFailed}
		s.notify(ctx, userID, notes)
		return nil, notes
	}

	_, notes := s.LoadAvailableExercises(ctx, userID)
	notes = append(notes, exerciseAdded)
	s.notify(ctx, userID, []Notification{exerciseAdded})
	return created, notes
}

// StartExercise starts exerciseID for the user. Unknown ids are ignored.
func (s *Service) StartExercise(ctx context.Context, userID, exerciseID string) (Exercise, bool) {
	if userID == "" {
		return Exercise{}, false
	}

	var loaded bool
	s.sessions.With(userID, func(l *Lifecycle) { loaded = l.Loaded() })
	if !loaded {
		s.LoadAvailableExercises(ctx, userID)
	}

	var (
		running Exercise
		started bool
	)
	s.sessions.With(userID, func(l *Lifecycle) {
		if l.Start(exerciseID) {
			running, started = l.Running()
		}
	})
	if !started {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "exercise_id": exerciseID}).Debug("start ignored: exercise not in catalog")
		return Exercise{}, false
	}

	observability.RecordSessionStarted(string(running.Kind.Normalize()))
	return running, true
}

// ActiveExercise returns the running exercise, if any.
func (s *Service) ActiveExercise(userID string) (Exercise, bool) {
	if userID == "" {
		return Exercise{}, false
	}
	var (
		running Exercise
		ok      bool
	)
	s.sessions.With(userID, func(l *Lifecycle) { running, ok = l.Running() })
	return running, ok
}

// CompleteExercise finishes the running exercise, persists it and scores it.
func (s *Service) CompleteExercise(ctx context.Context, userID string, result CompletionResult) Outcome {
	now := s.now()

	var (
		finished FinishedExercise
		ok       bool
	)
	if userID != "" {
		s.sessions.With(userID, func(l *Lifecycle) { finished, ok = l.Complete(userID, result, now) })
	}
	if !ok {
		s.logger.WithField("user_id", userID).Warn("complete requested without an active exercise")
		out := Outcome{Notifications: []Notification{noActiveToComplete}}
		s.notify(ctx, userID, out.Notifications)
		return out
	}

	out := Outcome{Finished: &finished}
	out.Notifications = append(out.Notifications, s.persist(ctx, &finished))

	score, err := s.engine.Process(ctx, userID, finished, now.In(s.loc))
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("progression update failed")
		observability.RecordStatsPersistFailure()
		out.Notifications = append(out.Notifications, progressFailed)
	} else {
		out.Score = score
		out.Notifications = append(out.Notifications, score.Notifications()...)
		observability.RecordScore(score.XPEarned, len(score.LevelUps), achievementIDs(score.Unlocked))
	}

	s.notify(ctx, userID, out.Notifications)
	return out
}

// CancelExercise abandons the running exercise with partial credit. Cancelled sessions are not scored.
func (s *Service) CancelExercise(ctx context.Context, userID string, progress float64) Outcome {
	now := s.now()

	var (
		finished FinishedExercise
		ok       bool
	)
	if userID != "" {
		s.sessions.With(userID, func(l *Lifecycle) { finished, ok = l.Cancel(userID, progress, now) })
	}
	if !ok {
		s.logger.WithField("user_id", userID).Warn("cancel requested without an active exercise")
		out := Outcome{Notifications: []Notification{noActiveToCancel}}
		s.notify(ctx, userID, out.Notifications)
		return out
	}

	out := Outcome{Finished: &finished}
	out.Notifications = append(out.Notifications, s.persist(ctx, &finished))
	s.notify(ctx, userID, out.Notifications)
	return out
}

// FetchStats returns the user's stats view, creating and persisting defaults on first access.
func (s *Service) FetchStats(ctx context.Context, userID string) (ProgressView, error) {
	current, err := s.stats.LoadStats(ctx, userID)
	if err != nil {
		return ProgressView{}, err
	}
	if current == nil {
		initial := NewProgressionStats(userID)
		if err := s.stats.ReplaceStats(ctx, initial); err != nil {
			return ProgressView{}, err
		}
		current = &initial
	}
	return NewProgressView(*current), nil
}

// ListFinishedExercises pages through the user's history, newest first.
// Store failures are logged, notified and returned wrapping ErrHistoryUnavailable.
func (s *Service) ListFinishedExercises(ctx context.Context, userID string, cursor *Cursor, limit int) ([]FinishedExercise, *Cursor, error) {
	records, next, err := s.finished.ListFinished(ctx, userID, cursor, limit)
	if err != nil {
		return nil, nil, s.historyFailed(ctx, userID, err)
	}
	return records, next, nil
}

// WeeklyCalories aggregates the user's completed sessions per ISO week.
func (s *Service) WeeklyCalories(ctx context.Context, userID string) ([]WeeklyCalories, error) {
	const pageSize = 200

	var (
		all    []FinishedExercise
		cursor *Cursor
	)
	for {
		page, next, err := s.finished.ListFinished(ctx, userID, cursor, pageSize)
		if err != nil {
			return nil, s.historyFailed(ctx, userID, err)
		}
		all = append(all, page...)
		if next == nil {
			break
		}
		cursor = next
	}
	return AggregateWeeklyCalories(all, s.loc), nil
}

func (s *Service) persist(ctx context.Context, finished *FinishedExercise) Notification {
	observability.RecordSessionFinished(string(finished.Kind), string(finished.State))

	id, err := s.finished.SaveFinished(ctx, *finished)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":     finished.UserID,
			"exercise_id": finished.ExerciseID,
			"state":       finished.State,
		}).Error("saving finished exercise failed")
		return workoutSaveFailed
	}
	finished.ID = id
	return workoutSaved
}

func (s *Service) historyFailed(ctx context.Context, userID string, cause error) error {
	s.logger.WithError(cause).WithField("user_id", userID).Error("fetching past exercises failed")
	s.notify(ctx, userID, []Notification{fetchPastFailed})
	return fmt.Errorf("%w: %v", ErrHistoryUnavailable, cause)
}

func (s *Service) notify(ctx context.Context, userID string, notes []Notification) {
	if s.notifier == nil || userID == "" || len(notes) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, userID, notes); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("notification delivery failed")
	}
}

func achievementIDs(list []Achievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
