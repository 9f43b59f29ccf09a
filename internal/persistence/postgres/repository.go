package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/training/internal/domain"
	"example.com/training/internal/events"
	"example.com/training/internal/observability"
	"example.com/training/internal/persistence"
)

// Repository provides Postgres-backed persistence for the catalog, finished exercises,
// progression documents and outbox events.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// ListAvailable returns global exercises and those authored by userID.
func (r *Repository) ListAvailable(ctx context.Context, userID string) ([]domain.Exercise, error) {
	const query = `SELECT exercise_id, COALESCE(owner_id, ''), name, kind, planned_duration, planned_calories
        FROM exercises WHERE owner_id IS NULL OR owner_id=$1
        ORDER BY name, exercise_id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Exercise, 0)
	for rows.Next() {
		var (
			ex   domain.Exercise
			kind string
		)
		if err := rows.Scan(&ex.ID, &ex.OwnerID, &ex.Name, &kind, &ex.PlannedDuration, &ex.PlannedCalories); err != nil {
			return nil, err
		}
		ex.Kind = domain.Kind(kind).Normalize()
		results = append(results, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// AddExercise inserts a catalog entry. An empty OwnerID stores a global entry.
func (r *Repository) AddExercise(ctx context.Context, exercise domain.Exercise) (*domain.Exercise, error) {
	if exercise.ID == "" {
		exercise.ID = uuid.NewString()
	}
	exercise.Kind = exercise.Kind.Normalize()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exercises (exercise_id, owner_id, name, kind, planned_duration, planned_calories)
         VALUES ($1,$2,$3,$4,$5,$6)`,
		exercise.ID,
		nullIfEmpty(exercise.OwnerID),
		exercise.Name,
		string(exercise.Kind),
		exercise.PlannedDuration,
		exercise.PlannedCalories,
	)
	if err != nil {
		return nil, fmt.Errorf("insert exercise: %w", err)
	}
	return &exercise, nil
}

// SaveFinished persists the record and its exercise.finished outbox event in one transaction.
func (r *Repository) SaveFinished(ctx context.Context, finished domain.FinishedExercise) (id string, err error) {
	document, err := persistence.EncodeFinished(finished)
	if err != nil {
		return "", err
	}
	finished.ID = uuid.NewString()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO finished_exercises (finished_id, user_id, state, completed_at, document)
         VALUES ($1,$2,$3,$4,$5)`,
		finished.ID,
		finished.UserID,
		string(finished.State),
		finished.Date.UTC(),
		document,
	)
	if err != nil {
		return "", err
	}

	if err = r.insertOutbox(ctx, tx, outboxRecord{
		userID:        finished.UserID,
		aggregateType: "finished_exercise",
		aggregateID:   finished.ID,
		eventType:     events.TypeExerciseFinished,
		dedupeKey:     fmt.Sprintf("%s:%s", finished.ID, events.TypeExerciseFinished),
		payload:       toFinishedEvent(finished),
	}); err != nil {
		return "", err
	}

	if err = tx.Commit(ctx); err != nil {
		return "", err
	}
	observability.RecordFinishedPersisted(finished.Date)
	return finished.ID, nil
}

// ListFinished returns the user's records newest first using keyset pagination.
func (r *Repository) ListFinished(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.FinishedExercise, *domain.Cursor, error) {
	if limit <= 0 {
		limit = 20
	}
	args := []interface{}{userID, limit}
	query := `SELECT finished_id, document FROM finished_exercises WHERE user_id=$1`

	if cursor != nil {
		query += ` AND (completed_at, finished_id) < ($3, $4)`
		args = append(args, cursor.Date, cursor.ID)
	}
	query += ` ORDER BY completed_at DESC, finished_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.FinishedExercise, 0, limit)
	for rows.Next() {
		var (
			id       string
			document []byte
		)
		if err := rows.Scan(&id, &document); err != nil {
			return nil, nil, err
		}
		record, err := persistence.DecodeFinished(id, document)
		if err != nil {
			return nil, nil, fmt.Errorf("decode finished exercise %s: %w", id, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return results, nextCursor, nil
}

// LoadStats reads the user's progression document, or nil when none exists.
func (r *Repository) LoadStats(ctx context.Context, userID string) (*domain.ProgressionStats, error) {
	var document []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM progression_stats WHERE user_id=$1`, userID).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	stats, err := persistence.DecodeStats(userID, document)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ReplaceStats overwrites the whole document in a single statement.
func (r *Repository) ReplaceStats(ctx context.Context, stats domain.ProgressionStats) error {
	document, err := persistence.EncodeStats(stats)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO progression_stats (user_id, document, updated_at) VALUES ($1,$2,NOW())
         ON CONFLICT (user_id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		stats.UserID, document,
	)
	return err
}

// Notify records one notification.requested outbox event per notification, preserving order.
func (r *Repository) Notify(ctx context.Context, userID string, notifications []domain.Notification) (err error) {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	requestedAt := r.now().UTC()
	for i, n := range notifications {
		id := uuid.NewString()
		if err = r.insertOutbox(ctx, tx, outboxRecord{
			userID:        userID,
			aggregateType: "notification",
			aggregateID:   id,
			eventType:     events.TypeNotificationRequested,
			dedupeKey:     fmt.Sprintf("%s:%s", id, events.TypeNotificationRequested),
			payload: events.NotificationRequested{
				NotificationID: id,
				UserID:         userID,
				Message:        n.Message,
				ActionLabel:    n.ActionLabel,
				DurationMs:     n.DurationMs,
				Sequence:       i,
				RequestedAt:    requestedAt,
			},
		}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

type outboxRecord struct {
	userID        string
	aggregateType string
	aggregateID   string
	eventType     string
	dedupeKey     string
	payload       interface{}
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	body, err := json.Marshal(rec.payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[rec.eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", rec.eventType)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		rec.userID,
		rec.aggregateType,
		rec.aggregateID,
		rec.eventType,
		meta.Topic,
		meta.SchemaSubject,
		rec.userID,
		body,
		rec.dedupeKey,
	)
	return err
}

func toFinishedEvent(f domain.FinishedExercise) events.ExerciseFinished {
	evt := events.ExerciseFinished{
		FinishedID:  f.ID,
		UserID:      f.UserID,
		ExerciseID:  f.ExerciseID,
		Name:        f.Name,
		Kind:        string(f.Kind),
		State:       string(f.State),
		CompletedAt: f.Date.UTC(),
	}
	if f.Aerobic != nil {
		evt.DurationSeconds = domain.Float(f.Aerobic.DurationSeconds)
		evt.Calories = domain.Float(f.Aerobic.Calories)
	}
	if f.Resistance != nil {
		evt.WeightKg = domain.Float(f.Resistance.WeightKg)
		evt.Reps = domain.Int(f.Resistance.Reps)
	}
	return evt
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeExerciseFinished: {
		Topic:         events.TopicExerciseFinished,
		SchemaSubject: events.TopicExerciseFinished + "-value",
	},
	events.TypeNotificationRequested: {
		Topic:         events.TopicNotifications,
		SchemaSubject: events.TopicNotifications + "-value",
	},
}
