package outbox

import "example.com/training/internal/events"

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeExerciseFinished: {
		Schema: exerciseFinishedSchema,
	},
	events.TypeNotificationRequested: {
		Schema: notificationRequestedSchema,
	},
}

const exerciseFinishedSchema = `{
  "type": "object",
  "title": "ExerciseFinished",
  "properties": {
    "finished_id": {"type": "string"},
    "user_id": {"type": "string"},
    "exercise_id": {"type": "string"},
    "name": {"type": "string"},
    "kind": {"type": "string", "enum": ["aerobic", "resistance"]},
    "state": {"type": "string", "enum": ["completed", "cancelled"]},
    "completed_at": {"type": "string", "format": "date-time"},
    "duration_seconds": {"type": "number"},
    "calories": {"type": "number"},
    "weight_kg": {"type": "number"},
    "reps": {"type": "integer"}
  },
  "required": ["finished_id", "user_id", "exercise_id", "name", "kind", "state", "completed_at"],
  "additionalProperties": false
}`

const notificationRequestedSchema = `{
  "type": "object",
  "title": "NotificationRequested",
  "properties": {
    "notification_id": {"type": "string"},
    "user_id": {"type": "string"},
    "message": {"type": "string"},
    "action_label": {"type": "string"},
    "duration_ms": {"type": "integer"},
    "sequence": {"type": "integer"},
    "requested_at": {"type": "string", "format": "date-time"}
  },
  "required": ["notification_id", "user_id", "message", "action_label", "duration_ms", "sequence", "requested_at"],
  "additionalProperties": false
}`
