package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/training/internal/domain"
)

func finished(userID string, at time.Time) domain.FinishedExercise {
	return domain.FinishedExercise{
		ExerciseID: "e1",
		Name:       "Burpees",
		Kind:       domain.KindAerobic,
		State:      domain.StateCompleted,
		Date:       at,
		UserID:     userID,
		Aerobic:    &domain.AerobicResult{DurationSeconds: 60, Calories: 8},
	}
}

func TestCatalogScopesUserExercises(t *testing.T) {
	store := NewStore()
	store.SeedDefaults()
	ctx := context.Background()

	created, err := store.AddExercise(ctx, domain.Exercise{Name: "Arm Circles", OwnerID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	mine, err := store.ListAvailable(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 6)
	require.Equal(t, "Arm Circles", mine[0].Name)

	theirs, err := store.ListAvailable(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, theirs, 5)
}

func TestListFinishedPagesNewestFirst(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.SaveFinished(ctx, finished("u1", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := store.SaveFinished(ctx, finished("u2", base))
	require.NoError(t, err)

	page, next, err := store.ListFinished(ctx, "u1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, base.Add(4*time.Hour), page[0].Date)
	require.NotNil(t, next)

	var seen []time.Time
	for _, f := range page {
		seen = append(seen, f.Date)
	}
	for next != nil {
		page, next, err = store.ListFinished(ctx, "u1", next, 2)
		require.NoError(t, err)
		for _, f := range page {
			seen = append(seen, f.Date)
		}
	}
	require.Len(t, seen, 5)
	require.Equal(t, base, seen[4])
}

func TestSaveFinishedRejectsInvalidPayload(t *testing.T) {
	store := NewStore()
	f := finished("u1", time.Now())
	f.Aerobic = nil

	_, err := store.SaveFinished(context.Background(), f)
	require.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestStatsAndNotifications(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	loaded, err := store.LoadStats(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, loaded)

	stats := domain.NewProgressionStats("u1")
	stats.TotalWorkouts = 3
	require.NoError(t, store.ReplaceStats(ctx, stats))

	loaded, err = store.LoadStats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, loaded.TotalWorkouts)

	require.NoError(t, store.Notify(ctx, "u1", []domain.Notification{{Message: "a"}, {Message: "b"}}))
	require.Len(t, store.Notifications("u1"), 2)
	require.Empty(t, store.Notifications("u2"))
}
