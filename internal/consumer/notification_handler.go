package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/training/internal/events"
)

// NotificationLogHandler records requested notifications in the notification_log table.
type NotificationLogHandler struct {
	pool *pgxpool.Pool
}

// NewNotificationLogHandler constructs a handler backed by the provided pool.
func NewNotificationLogHandler(pool *pgxpool.Pool) *NotificationLogHandler {
	return &NotificationLogHandler{pool: pool}
}

// Handle validates the notification payload and appends it to the log.
func (h *NotificationLogHandler) Handle(ctx context.Context, msg Message) error {
	notification, err := parseNotification(msg)
	if err != nil {
		return err
	}

	_, err = h.pool.Exec(ctx,
		`INSERT INTO notification_log (event_type, user_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		msg.EventType,
		notification.UserID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

func parseNotification(msg Message) (events.NotificationRequested, error) {
	var n events.NotificationRequested
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		return n, fmt.Errorf("%w: decode notification: %v", ErrPermanent, err)
	}
	if strings.TrimSpace(n.Message) == "" {
		return n, fmt.Errorf("%w: notification %s has no message", ErrPermanent, n.NotificationID)
	}
	if n.UserID == "" {
		n.UserID = msg.UserID
	}
	if n.UserID == "" {
		return n, fmt.Errorf("%w: notification %s has no user", ErrPermanent, n.NotificationID)
	}
	if msg.UserID != "" && msg.UserID != n.UserID {
		return n, fmt.Errorf("%w: user header %q does not match payload %q", ErrPermanent, msg.UserID, n.UserID)
	}
	return n, nil
}
