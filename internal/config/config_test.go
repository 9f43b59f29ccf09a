package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDRESS", "KAFKA_BROKERS", "TRAINING_TIMEZONE", "STORE_BACKEND", "STATS_BACKEND", "OUTBOX_BATCH_SIZE", "LOG_FORMAT_JSON", "CONSUMER_TOPICS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"training_notifications", "training_exercise_finished"}, cfg.ConsumerTopics)
	require.Equal(t, time.UTC, cfg.Location)
	require.Equal(t, BackendPostgres, cfg.StoreBackend)
	require.Equal(t, BackendPostgres, cfg.StatsBackend)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.True(t, cfg.Log.JSON)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("TRAINING_TIMEZONE", "Europe/Berlin")
	t.Setenv("STATS_BACKEND", "Redis")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_FORMAT_JSON", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "Europe/Berlin", cfg.Location.String())
	require.Equal(t, BackendRedis, cfg.StatsBackend)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize, "invalid ints fall back to the default")
	require.Equal(t, 3, cfg.RedisDB)
	require.False(t, cfg.Log.JSON)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Run("timezone", func(t *testing.T) {
		t.Setenv("TRAINING_TIMEZONE", "Mars/Olympus")
		_, err := Load()
		require.ErrorContains(t, err, "TRAINING_TIMEZONE")
	})
	t.Run("store backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "sqlite")
		_, err := Load()
		require.ErrorContains(t, err, "STORE_BACKEND")
	})
}
