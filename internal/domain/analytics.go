package domain

import (
	"fmt"
	"sort"
	"time"
)

// WeeklyCalories is the calories burned by completed sessions within one ISO week.
type WeeklyCalories struct {
	Year     int     `json:"year"`
	Week     int     `json:"week"`
	Label    string  `json:"label"`
	Calories float64 `json:"calories"`
}

// AggregateWeeklyCalories groups completed sessions by ISO week in loc, oldest week first.
func AggregateWeeklyCalories(finished []FinishedExercise, loc *time.Location) []WeeklyCalories {
	if loc == nil {
		loc = time.UTC
	}
	type key struct{ year, week int }

	totals := make(map[key]float64)
	for _, f := range finished {
		if f.State != StateCompleted || f.Date.IsZero() {
			continue
		}
		year, week := f.Date.In(loc).ISOWeek()
		totals[key{year, week}] += f.Calories()
	}

	out := make([]WeeklyCalories, 0, len(totals))
	for k, calories := range totals {
		out = append(out, WeeklyCalories{
			Year:     k.year,
			Week:     k.week,
			Label:    fmt.Sprintf("Week %d, %d", k.week, k.year),
			Calories: calories,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Week < out[j].Week
	})
	return out
}
