package domain

import (
	"context"
	"slices"
	"time"
)

const (
	// XPPerMinute is awarded for every minute of aerobic work.
	XPPerMinute = 10
	// XPPerCalorie is awarded for every aerobic calorie burned.
	XPPerCalorie = 0.5
	// ResistanceBonusXP is the flat award for a resistance session.
	ResistanceBonusXP = 50
	// BaseLevelUpXP is the XP required to leave level 1.
	BaseLevelUpXP = 1000
	// LevelGrowth scales the XP requirement after each level-up.
	LevelGrowth = 1.2

	// MaxSessionSeconds bounds the duration credited to a single session.
	MaxSessionSeconds = 24 * 60 * 60
	// MaxSessionCalories bounds the calories credited to a single session.
	MaxSessionCalories = 20000
)

// ProgressionStats is the per-user progression document.
type ProgressionStats struct {
	UserID               string     `json:"userId"`
	Level                int        `json:"level"`
	CurrentXP            int        `json:"currentXP"`
	NextLevelXP          int        `json:"nextLevelXP"`
	UnlockedAchievements []string   `json:"unlockedAchievements"`
	StreakDays           int        `json:"streakDays"`
	LastWorkoutDate      *time.Time `json:"lastWorkoutDate,omitempty"`
	TotalCaloriesBurned  float64    `json:"totalCaloriesBurned"`
	TotalWorkouts        int        `json:"totalWorkouts"`
}

// NewProgressionStats returns the lazily created defaults for a user.
func NewProgressionStats(userID string) ProgressionStats {
	return ProgressionStats{
		UserID:               userID,
		Level:                1,
		CurrentXP:            0,
		NextLevelXP:          BaseLevelUpXP,
		UnlockedAchievements: []string{},
	}
}

// HasAchievement reports whether id is already unlocked.
func (s ProgressionStats) HasAchievement(id string) bool {
	return slices.Contains(s.UnlockedAchievements, id)
}

// Clone returns a deep copy so callers can mutate freely.
func (s ProgressionStats) Clone() ProgressionStats {
	out := s
	out.UnlockedAchievements = append([]string{}, s.UnlockedAchievements...)
	if s.LastWorkoutDate != nil {
		ts := *s.LastWorkoutDate
		out.LastWorkoutDate = &ts
	}
	return out
}

// StatsRepository loads and replaces whole progression documents keyed by user id.
// LoadStats returns (nil, nil) when no document exists.
type StatsRepository interface {
	LoadStats(ctx context.Context, userID string) (*ProgressionStats, error)
	ReplaceStats(ctx context.Context, stats ProgressionStats) error
}

// ConditionType selects the rule used to unlock an achievement.
type ConditionType string

const (
	ConditionCount     ConditionType = "count"
	ConditionStreak    ConditionType = "streak"
	ConditionCalories  ConditionType = "calories"
	ConditionEarlyBird ConditionType = "early_bird"
)

// Achievement is a static catalog entry.
type Achievement struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Icon           string        `json:"icon"`
	ConditionType  ConditionType `json:"conditionType"`
	ConditionValue float64       `json:"conditionValue"`
}

var achievements = []Achievement{
	{
		ID:             "first_workout",
		Title:          "First Step",
		Description:    "Completed your first workout!",
		Icon:           "fitness_center",
		ConditionType:  ConditionCount,
		ConditionValue: 1,
	},
	{
		ID:             "streak_3",
		Title:          "On Fire",
		Description:    "3-day workout streak!",
		Icon:           "local_fire_department",
		ConditionType:  ConditionStreak,
		ConditionValue: 3,
	},
	{
		ID:             "streak_7",
		Title:          "Unstoppable",
		Description:    "7-day workout streak!",
		Icon:           "whatshot",
		ConditionType:  ConditionStreak,
		ConditionValue: 7,
	},
	{
		ID:             "calories_1000",
		Title:          "Burner",
		Description:    "Burned 1000 total calories",
		Icon:           "bolt",
		ConditionType:  ConditionCalories,
		ConditionValue: 1000,
	},
	{
		ID:             "early_bird",
		Title:          "Early Bird",
		Description:    "Completed a workout before 8 AM",
		Icon:           "wb_sunny",
		ConditionType:  ConditionEarlyBird,
		ConditionValue: 1,
	},
}

// Achievements returns the catalog in evaluation order.
func Achievements() []Achievement {
	return slices.Clone(achievements)
}

// ProgressView is the display projection of a stats document.
type ProgressView struct {
	Stats           ProgressionStats `json:"stats"`
	ProgressPercent float64          `json:"progress_percent"`
	Unlocked        []Achievement    `json:"unlocked"`
	Next            []Achievement    `json:"next"`
}

// NewProgressView derives the view from the latest stats. It is recomputed on every read.
func NewProgressView(stats ProgressionStats) ProgressView {
	view := ProgressView{
		Stats:    stats,
		Unlocked: []Achievement{},
		Next:     []Achievement{},
	}
	if stats.NextLevelXP > 0 {
		view.ProgressPercent = float64(stats.CurrentXP) / float64(stats.NextLevelXP) * 100
	}
	for _, a := range achievements {
		if stats.HasAchievement(a.ID) {
			view.Unlocked = append(view.Unlocked, a)
		} else {
			view.Next = append(view.Next, a)
		}
	}
	return view
}
