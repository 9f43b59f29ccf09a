// Package memory provides an in-process store for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/training/internal/domain"
	"example.com/training/internal/persistence"
)

type finishedRow struct {
	id       string
	userID   string
	document []byte
	record   domain.FinishedExercise
}

// Store keeps catalog entries, finished exercises, stats documents and notifications in memory.
type Store struct {
	mu            sync.RWMutex
	exercises     map[string]domain.Exercise
	finished      []finishedRow
	stats         map[string][]byte
	notifications map[string][]domain.Notification
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		exercises:     make(map[string]domain.Exercise),
		stats:         make(map[string][]byte),
		notifications: make(map[string][]domain.Notification),
	}
}

// SeedDefaults adds the global catalog used when running without Postgres.
func (s *Store) SeedDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := []domain.Exercise{
		{Name: "Crunches", Kind: domain.KindAerobic, PlannedDuration: domain.Float(30), PlannedCalories: domain.Float(8)},
		{Name: "Touch Toes", Kind: domain.KindAerobic, PlannedDuration: domain.Float(180), PlannedCalories: domain.Float(15)},
		{Name: "Side Lunges", Kind: domain.KindAerobic, PlannedDuration: domain.Float(120), PlannedCalories: domain.Float(18)},
		{Name: "Burpees", Kind: domain.KindAerobic, PlannedDuration: domain.Float(60), PlannedCalories: domain.Float(8)},
		{Name: "Bench Press", Kind: domain.KindResistance},
	}
	for _, ex := range defaults {
		ex.ID = uuid.NewString()
		s.exercises[ex.ID] = ex
	}
}

// ListAvailable returns global entries plus the user's own, ordered by name.
func (s *Store) ListAvailable(_ context.Context, userID string) ([]domain.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Exercise, 0, len(s.exercises))
	for _, ex := range s.exercises {
		if ex.OwnerID == "" || ex.OwnerID == userID {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddExercise stores a catalog entry, assigning an id when missing.
func (s *Store) AddExercise(_ context.Context, exercise domain.Exercise) (*domain.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(exercise.ID) == "" {
		exercise.ID = uuid.NewString()
	}
	s.exercises[exercise.ID] = exercise
	return &exercise, nil
}

// SaveFinished stores the record as a document and returns the assigned id.
func (s *Store) SaveFinished(_ context.Context, finished domain.FinishedExercise) (string, error) {
	// Same resolution as timestamptz, so history cursors round-trip exactly.
	finished.Date = finished.Date.Truncate(time.Microsecond)
	doc, err := persistence.EncodeFinished(finished)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	record, err := persistence.DecodeFinished(id, doc)
	if err != nil {
		return "", err
	}
	s.finished = append(s.finished, finishedRow{id: id, userID: finished.UserID, document: doc, record: record})
	return id, nil
}

// ListFinished pages the user's records newest first.
func (s *Store) ListFinished(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.FinishedExercise, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.FinishedExercise, 0)
	for _, row := range s.finished {
		if row.userID == userID {
			rows = append(rows, row.record)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		return rows[i].ID > rows[j].ID
	})

	start := 0
	if cursor != nil {
		start = len(rows)
		for i, r := range rows {
			if r.Date.Before(cursor.Date) || (r.Date.Equal(cursor.Date) && r.ID < cursor.ID) {
				start = i
				break
			}
		}
	}
	rows = rows[start:]
	if limit <= 0 || limit > len(rows) {
		return rows, nil, nil
	}

	page := rows[:limit]
	var next *domain.Cursor
	if len(rows) > limit {
		last := page[len(page)-1]
		next = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return page, next, nil
}

// LoadStats returns the decoded document or nil when absent.
func (s *Store) LoadStats(_ context.Context, userID string) (*domain.ProgressionStats, error) {
	s.mu.RLock()
	raw, ok := s.stats[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	stats, err := persistence.DecodeStats(userID, raw)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ReplaceStats overwrites the user's document.
func (s *Store) ReplaceStats(_ context.Context, stats domain.ProgressionStats) error {
	raw, err := persistence.EncodeStats(stats)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stats[stats.UserID] = raw
	s.mu.Unlock()
	return nil
}

// Notify records notifications for later inspection.
func (s *Store) Notify(_ context.Context, userID string, notifications []domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[userID] = append(s.notifications[userID], notifications...)
	return nil
}

// Notifications returns everything recorded for userID.
func (s *Store) Notifications(userID string) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.notifications[userID]...)
}
