package consumer

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/training/internal/events"
)

func TestFinishedExerciseHandlerCountsEvents(t *testing.T) {
	handler := NewFinishedExerciseHandler(quietLogger())
	before := testutil.ToFloat64(finishedEventsCounter.WithLabelValues("aerobic", "completed"))

	err := handler.Handle(context.Background(), Message{
		EventType: events.TypeExerciseFinished,
		UserID:    "u1",
		Payload:   []byte(`{"finished_id":"f1","user_id":"u1","exercise_id":"e1","name":"Burpees","kind":"aerobic","state":"completed","completed_at":"2024-05-06T18:00:00Z"}`),
	})
	require.NoError(t, err)
	require.InDelta(t, before+1, testutil.ToFloat64(finishedEventsCounter.WithLabelValues("aerobic", "completed")), 0.0001)
}

func TestParseFinishedRejectsBadPayloads(t *testing.T) {
	cases := map[string]Message{
		"malformed":     {Payload: []byte(`[`)},
		"missing ids":   {Payload: []byte(`{"state":"completed"}`)},
		"unknown state": {Payload: []byte(`{"finished_id":"f1","user_id":"u1","state":"paused"}`)},
		"user mismatch": {UserID: "u2", Payload: []byte(`{"finished_id":"f1","user_id":"u1","state":"cancelled"}`)},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseFinished(msg)
			require.ErrorIs(t, err, ErrPermanent)
		})
	}
}
