// Package redisstore stores progression documents in Redis, one JSON value per user.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"example.com/training/internal/domain"
	"example.com/training/internal/persistence"
)

const statsKeyPrefix = "progression:stats:"

// StatsStore implements domain.StatsRepository on top of Redis.
type StatsStore struct {
	client *redis.Client
}

// NewStatsStore constructs a StatsStore.
func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

// LoadStats reads the user's document; a missing key yields (nil, nil).
func (s *StatsStore) LoadStats(ctx context.Context, userID string) (*domain.ProgressionStats, error) {
	raw, err := s.client.Get(ctx, statsKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get stats: %w", err)
	}
	stats, err := persistence.DecodeStats(userID, raw)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ReplaceStats writes the whole document with a single SET.
func (s *StatsStore) ReplaceStats(ctx context.Context, stats domain.ProgressionStats) error {
	raw, err := persistence.EncodeStats(stats)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, statsKey(stats.UserID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set stats: %w", err)
	}
	return nil
}

func statsKey(userID string) string {
	return statsKeyPrefix + userID
}
