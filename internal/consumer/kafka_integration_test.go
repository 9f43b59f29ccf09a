//go:build integration

package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/training/internal/domain"
	"example.com/training/internal/events"
	"example.com/training/internal/outbox"
	"example.com/training/internal/persistence/postgres"
	"example.com/training/internal/testsupport"
)

type fixedRegistry struct{}

func (fixedRegistry) EnsureSchema(context.Context, string, string) (int, error) {
	return 3, nil
}

func TestNotificationsFlowFromOutboxToLog(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	const topic = "training_notifications"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))

	pool := testsupport.StartPostgres(ctx, t)
	repo := postgres.NewRepository(pool)
	require.NoError(t, repo.Notify(ctx, "user-7", []domain.Notification{
		{Message: "Workout progress saved.", ActionLabel: "Close", DurationMs: 3000},
		{Message: "+125 XP Earned!", ActionLabel: "OK", DurationMs: 3000},
	}))

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()
	dispatcher := outbox.NewDispatcher(pool, producer, fixedRegistry{}, 50*time.Millisecond, 10)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "training-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	router := NewRouter(quietLogger()).Register(events.TypeNotificationRequested, NewNotificationLogHandler(pool))
	proc := NewProcessor(reader, router, WithLogger(quietLogger()))
	go dispatcher.Start(runCtx)
	go func() {
		_ = proc.Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM notification_log WHERE user_id = $1`, "user-7").Scan(&count); err != nil {
			return false
		}
		return count == 2
	}, 60*time.Second, 500*time.Millisecond)

	var schemaID int
	var subject string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT schema_id, schema_subject FROM notification_log WHERE user_id = $1 ORDER BY record_offset LIMIT 1`, "user-7",
	).Scan(&schemaID, &subject))
	require.Equal(t, 3, schemaID)
	require.Equal(t, "training_notifications-value", subject)

	stop()
	dispatcher.Wait()
}
