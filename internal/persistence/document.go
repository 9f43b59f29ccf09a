package persistence

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/training/internal/domain"
)

// EncodeFinished serialises a finished exercise into its stored document shape.
// Only the payload fields matching the record's kind are written.
func EncodeFinished(f domain.FinishedExercise) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	doc := map[string]any{
		"exerciseId": f.ExerciseID,
		"name":       f.Name,
		"type":       string(f.Kind),
		"state":      string(f.State),
		"date":       f.Date.UTC().Format(time.RFC3339Nano),
		"userId":     f.UserID,
	}
	switch f.Kind {
	case domain.KindResistance:
		doc["weight"] = f.Resistance.WeightKg
		doc["reps"] = f.Resistance.Reps
	default:
		doc["duration"] = f.Aerobic.DurationSeconds
		doc["calories"] = f.Aerobic.Calories
	}
	return json.Marshal(doc)
}

// DecodeFinished turns an untyped stored document into the typed record.
// Missing numeric fields default to 0 and a missing kind means aerobic.
func DecodeFinished(id string, raw []byte) (domain.FinishedExercise, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.FinishedExercise{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	f := domain.FinishedExercise{
		ID:         id,
		ExerciseID: stringField(doc, "exerciseId", "exercise_id"),
		Name:       stringField(doc, "name", "Name"),
		Kind:       domain.Kind(stringField(doc, "type", "kind")).Normalize(),
		State:      domain.CompletionState(stringField(doc, "state")),
		UserID:     stringField(doc, "userId", "user_id"),
	}
	if f.ID == "" {
		f.ID = stringField(doc, "id")
	}

	if f.State != domain.StateCompleted && f.State != domain.StateCancelled {
		return domain.FinishedExercise{}, fmt.Errorf("%w: missing or unknown state %q", domain.ErrInvalidPayload, f.State)
	}

	rawDate := stringField(doc, "date")
	if rawDate == "" {
		return domain.FinishedExercise{}, fmt.Errorf("%w: missing date", domain.ErrInvalidPayload)
	}
	date, err := time.Parse(time.RFC3339Nano, rawDate)
	if err != nil {
		return domain.FinishedExercise{}, fmt.Errorf("%w: invalid date: %v", domain.ErrInvalidPayload, err)
	}
	f.Date = date

	switch f.Kind {
	case domain.KindResistance:
		f.Resistance = &domain.ResistanceResult{
			WeightKg: numberField(doc, "weight"),
			Reps:     int(numberField(doc, "reps")),
		}
	default:
		f.Aerobic = &domain.AerobicResult{
			DurationSeconds: numberField(doc, "duration", "durationSeconds", "Duration"),
			Calories:        numberField(doc, "calories"),
		}
	}
	return f, nil
}

type statsDocument struct {
	UserID               string     `json:"userId"`
	Level                *int       `json:"level"`
	CurrentXP            *int       `json:"currentXP"`
	NextLevelXP          *int       `json:"nextLevelXP"`
	UnlockedAchievements []string   `json:"unlockedAchievements"`
	StreakDays           *int       `json:"streakDays"`
	LastWorkoutDate      *time.Time `json:"lastWorkoutDate"`
	TotalCaloriesBurned  *float64   `json:"totalCaloriesBurned"`
	TotalWorkouts        *int       `json:"totalWorkouts"`
}

// EncodeStats serialises a progression document.
func EncodeStats(stats domain.ProgressionStats) ([]byte, error) {
	if stats.UnlockedAchievements == nil {
		stats.UnlockedAchievements = []string{}
	}
	return json.Marshal(stats)
}

// DecodeStats parses a stored progression document, filling absent fields with the
// lazily created defaults and dropping duplicate achievement ids.
func DecodeStats(userID string, raw []byte) (domain.ProgressionStats, error) {
	var doc statsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.ProgressionStats{}, fmt.Errorf("decode stats document: %w", err)
	}

	stats := domain.NewProgressionStats(userID)
	if doc.Level != nil && *doc.Level >= 1 {
		stats.Level = *doc.Level
	}
	if doc.CurrentXP != nil && *doc.CurrentXP >= 0 {
		stats.CurrentXP = *doc.CurrentXP
	}
	if doc.NextLevelXP != nil && *doc.NextLevelXP > 0 {
		stats.NextLevelXP = *doc.NextLevelXP
	}
	if doc.StreakDays != nil && *doc.StreakDays >= 0 {
		stats.StreakDays = *doc.StreakDays
	}
	if doc.TotalCaloriesBurned != nil && *doc.TotalCaloriesBurned >= 0 {
		stats.TotalCaloriesBurned = *doc.TotalCaloriesBurned
	}
	if doc.TotalWorkouts != nil && *doc.TotalWorkouts >= 0 {
		stats.TotalWorkouts = *doc.TotalWorkouts
	}
	stats.LastWorkoutDate = doc.LastWorkoutDate

	seen := make(map[string]struct{}, len(doc.UnlockedAchievements))
	for _, id := range doc.UnlockedAchievements {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		stats.UnlockedAchievements = append(stats.UnlockedAchievements, id)
	}
	return stats, nil
}

func stringField(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := doc[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func numberField(doc map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := doc[key].(type) {
		case float64:
			return v
		case string:
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}
