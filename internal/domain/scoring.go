package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotCompleted is returned when a cancelled record is submitted for scoring.
var ErrNotCompleted = errors.New("only completed exercises earn progression")

// earlyBirdStart and earlyBirdEnd bound the early-bird window, [start, end).
const (
	earlyBirdStart = 4
	earlyBirdEnd   = 8
)

// ScoreResult is the outcome of scoring one completed exercise.
type ScoreResult struct {
	Stats    ProgressionStats
	XPEarned int
	// LevelUps lists each level reached, in ascending order.
	LevelUps []int
	Unlocked []Achievement
}

// Notifications returns the XP, level-up and achievement messages in emission order.
func (r ScoreResult) Notifications() []Notification {
	out := make([]Notification, 0, 1+len(r.LevelUps)+len(r.Unlocked))
	if r.XPEarned > 0 {
		out = append(out, xpEarnedNotification(r.XPEarned))
	}
	for _, level := range r.LevelUps {
		out = append(out, levelUpNotification(level))
	}
	for _, a := range r.Unlocked {
		out = append(out, achievementNotification(a))
	}
	return out
}

// ExperienceFor computes the XP earned by a finished exercise.
func ExperienceFor(f FinishedExercise) int {
	xp := 0
	switch f.Kind {
	case KindAerobic:
		if f.Aerobic != nil {
			minutes := boundedMeasure(f.Aerobic.DurationSeconds, MaxSessionSeconds) / 60
			xp += int(math.Round(minutes * XPPerMinute))
			xp += int(math.Round(boundedMeasure(f.Aerobic.Calories, MaxSessionCalories) * XPPerCalorie))
		}
	case KindResistance:
		xp += ResistanceBonusXP
	}
	return xp
}

// boundedMeasure clamps v to [0, limit]. NaN counts as zero.
func boundedMeasure(v, limit float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, limit)
}

// Score applies a completed exercise to stats. today carries the calendar (location)
// used for the streak and early-bird rules. The input stats are not modified.
func Score(stats ProgressionStats, f FinishedExercise, today time.Time) ScoreResult {
	next := stats.Clone()
	result := ScoreResult{XPEarned: ExperienceFor(f)}

	next.CurrentXP += result.XPEarned
	for next.NextLevelXP > 0 && next.CurrentXP >= next.NextLevelXP {
		next.CurrentXP -= next.NextLevelXP
		next.Level++
		next.NextLevelXP = int(math.Round(float64(next.NextLevelXP) * LevelGrowth))
		result.LevelUps = append(result.LevelUps, next.Level)
	}

	if next.LastWorkoutDate == nil {
		next.StreakDays = 1
	} else {
		switch diff := daysBetween(*next.LastWorkoutDate, today); {
		case diff == 0:
		case diff == 1:
			next.StreakDays++
		default:
			next.StreakDays = 1
		}
	}
	completedAt := f.Date
	next.LastWorkoutDate = &completedAt

	next.TotalWorkouts++
	next.TotalCaloriesBurned += f.Calories()

	hour := f.Date.In(today.Location()).Hour()
	for _, a := range achievements {
		if next.HasAchievement(a.ID) {
			continue
		}
		if unlocks(a, next, hour) {
			next.UnlockedAchievements = append(next.UnlockedAchievements, a.ID)
			result.Unlocked = append(result.Unlocked, a)
		}
	}

	result.Stats = next
	return result
}

func unlocks(a Achievement, stats ProgressionStats, hour int) bool {
	switch a.ConditionType {
	case ConditionCount:
		return float64(stats.TotalWorkouts) >= a.ConditionValue
	case ConditionStreak:
		return float64(stats.StreakDays) >= a.ConditionValue
	case ConditionCalories:
		return stats.TotalCaloriesBurned >= a.ConditionValue
	case ConditionEarlyBird:
		return hour >= earlyBirdStart && hour < earlyBirdEnd
	default:
		return false
	}
}

// daysBetween returns the absolute number of calendar days between a and b,
// both read in b's location with the time of day dropped.
func daysBetween(a, b time.Time) int {
	loc := b.Location()
	a = a.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(db.Sub(da).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// ScoringEngine loads, scores and replaces progression documents.
type ScoringEngine struct {
	stats  StatsRepository
	logger logrus.FieldLogger
}

// NewScoringEngine constructs a ScoringEngine.
func NewScoringEngine(stats StatsRepository, logger logrus.FieldLogger) *ScoringEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ScoringEngine{stats: stats, logger: logger}
}

// Process scores a completed exercise for userID and persists the updated stats in a
// single document replace. Nothing is written when an error is returned.
func (e *ScoringEngine) Process(ctx context.Context, userID string, f FinishedExercise, today time.Time) (*ScoreResult, error) {
	if f.State != StateCompleted {
		return nil, ErrNotCompleted
	}

	current, err := e.stats.LoadStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	stats := NewProgressionStats(userID)
	if current != nil {
		stats = *current
	}
	stats.UserID = userID

	result := Score(stats, f, today)
	if err := e.stats.ReplaceStats(ctx, result.Stats); err != nil {
		return nil, fmt.Errorf("replace stats: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"xp":        result.XPEarned,
		"level":     result.Stats.Level,
		"streak":    result.Stats.StreakDays,
		"level_ups": len(result.LevelUps),
		"unlocked":  len(result.Unlocked),
	}).Debug("progression updated")
	return &result, nil
}
