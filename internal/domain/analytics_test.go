package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregateWeeklyCalories(t *testing.T) {
	cancelled := aerobic(60, 500, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	cancelled.State = StateCancelled

	finished := []FinishedExercise{
		aerobic(60, 30, time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)),
		aerobic(60, 20, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)),
		aerobic(60, 5, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)),
		resistance(100, 5, time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)),
		// Dec 31 2024 belongs to ISO week 1 of 2025.
		aerobic(60, 7, time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC)),
		cancelled,
	}

	weeks := AggregateWeeklyCalories(finished, time.UTC)
	require.Equal(t, []WeeklyCalories{
		{Year: 2024, Week: 1, Label: "Week 1, 2024", Calories: 25},
		{Year: 2024, Week: 2, Label: "Week 2, 2024", Calories: 30},
		{Year: 2025, Week: 1, Label: "Week 1, 2025", Calories: 7},
	}, weeks)
}

func TestAggregateWeeklyCaloriesUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	// Monday 03:00 UTC is still Sunday in loc, so it lands in the previous week.
	f := aerobic(60, 10, time.Date(2024, 1, 8, 3, 0, 0, 0, time.UTC))

	require.Equal(t, 2, AggregateWeeklyCalories([]FinishedExercise{f}, time.UTC)[0].Week)
	require.Equal(t, 1, AggregateWeeklyCalories([]FinishedExercise{f}, loc)[0].Week)
}

func TestAggregateWeeklyCaloriesEmpty(t *testing.T) {
	weeks := AggregateWeeklyCalories(nil, nil)
	require.NotNil(t, weeks)
	require.Empty(t, weeks)
}
