package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/training/internal/domain"
	"example.com/training/internal/persistence"
)

func TestStatsStore_LoadStats(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStatsStore(db)
	ctx := context.Background()

	mock.ExpectGet("progression:stats:u1").SetErr(redis.Nil)
	stats, err := store.LoadStats(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, stats)

	mock.ExpectGet("progression:stats:u1").SetVal(`{"level":2,"currentXP":50,"nextLevelXP":1200,"unlockedAchievements":["first_workout"]}`)
	stats, err = store.LoadStats(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "u1", stats.UserID)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, 50, stats.CurrentXP)
	assert.Equal(t, []string{"first_workout"}, stats.UnlockedAchievements)

	mock.ExpectGet("progression:stats:u1").SetErr(errors.New("connection refused"))
	_, err = store.LoadStats(ctx, "u1")
	require.ErrorContains(t, err, "redis get stats")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsStore_ReplaceStats(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewStatsStore(db)
	ctx := context.Background()

	stats := domain.NewProgressionStats("u1")
	stats.CurrentXP = 125
	raw, err := persistence.EncodeStats(stats)
	require.NoError(t, err)

	mock.ExpectSet("progression:stats:u1", raw, 0).SetVal("OK")
	require.NoError(t, store.ReplaceStats(ctx, stats))

	mock.ExpectSet("progression:stats:u1", raw, 0).SetErr(errors.New("READONLY"))
	require.ErrorContains(t, store.ReplaceStats(ctx, stats), "redis set stats")

	require.NoError(t, mock.ExpectationsWereMet())
}
