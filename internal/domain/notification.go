package domain

import (
	"context"
	"fmt"
)

// Notification is a fire-and-forget user-visible message.
type Notification struct {
	Message     string `json:"message"`
	ActionLabel string `json:"action_label"`
	DurationMs  int    `json:"duration_ms"`
}

// Notifier forwards notifications to the delivery channel.
type Notifier interface {
	Notify(ctx context.Context, userID string, notifications []Notification) error
}

var (
	noActiveToComplete = Notification{Message: "No active exercise to complete.", ActionLabel: "Close", DurationMs: 4000}
	noActiveToCancel   = Notification{Message: "No active exercise to cancel.", ActionLabel: "Close", DurationMs: 4000}
	workoutSaved       = Notification{Message: "Workout progress saved.", ActionLabel: "Close", DurationMs: 3000}
	workoutSaveFailed  = Notification{Message: "Saving workout failed. Please try again.", ActionLabel: "Close", DurationMs: 5000}
	progressFailed     = Notification{Message: "Updating your progress failed. Please try again.", ActionLabel: "Close", DurationMs: 5000}
	fetchFailed        = Notification{Message: "Fetching exercises failed, please try again later.", ActionLabel: "Close", DurationMs: 5000}
	fetchPastFailed    = Notification{Message: "Fetching past exercises failed. Please try again later.", ActionLabel: "Close", DurationMs: 5000}
	exerciseAdded      = Notification{Message: "User exercise added successfully.", ActionLabel: "Close", DurationMs: 3000}
	exerciseAddFailed  = Notification{Message: "Adding user exercise failed. Please try again.", ActionLabel: "Close", DurationMs: 5000}
)

func xpEarnedNotification(xp int) Notification {
	return Notification{Message: fmt.Sprintf("+%d XP Earned!", xp), ActionLabel: "OK", DurationMs: 3000}
}

func levelUpNotification(level int) Notification {
	return Notification{Message: fmt.Sprintf("🎉 Level Up! You are now Level %d!", level), ActionLabel: "Awesome", DurationMs: 5000}
}

func achievementNotification(a Achievement) Notification {
	return Notification{Message: fmt.Sprintf("🏆 Achievement Unlocked: %s!", a.Title), ActionLabel: "View", DurationMs: 5000}
}
