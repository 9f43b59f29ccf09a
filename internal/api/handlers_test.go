package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"example.com/training/internal/auth"
	"example.com/training/internal/domain"
	"example.com/training/internal/persistence/memory"
)

const testUser = "user-1"

type fixture struct {
	router *mux.Router
	store  *memory.Store
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.SeedDefaults()
	service := domain.NewService(store, store, store, store, domain.WithClock(func() time.Time { return now }))

	router := mux.NewRouter()
	NewHandler(service).RegisterRoutes(router)
	return &fixture{router: router, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if scopes != nil {
		claims := &auth.Claims{
			Subject:   testUser,
			Scopes:    map[string]struct{}{},
			ExpiresAt: time.Now().Add(time.Hour),
		}
		for _, s := range scopes {
			claims.Scopes[s] = struct{}{}
		}
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) exerciseID(t *testing.T, name string) string {
	t.Helper()

	rr := f.do(t, http.MethodGet, "/v1/exercises", nil, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ExerciseListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	for _, ex := range resp.Items {
		if ex.Name == name {
			return ex.ID
		}
	}
	t.Fatalf("exercise %q not in catalog", name)
	return ""
}

func TestListExercisesReturnsSeededCatalog(t *testing.T) {
	f := newFixture(t, time.Now())

	rr := f.do(t, http.MethodGet, "/v1/exercises", nil, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ExerciseListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 5)
	require.Equal(t, "Bench Press", resp.Items[0].Name)
	require.Empty(t, resp.Notifications)
}

func TestScopesAreEnforced(t *testing.T) {
	f := newFixture(t, time.Now())

	rr := f.do(t, http.MethodGet, "/v1/exercises", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{ExerciseID: "x"}, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusForbidden, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "forbidden", body["type"])

	rr = f.do(t, http.MethodGet, "/v1/progression", nil, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code, "write scope implies read")
}

func TestAddExercise(t *testing.T) {
	f := newFixture(t, time.Now())

	rr := f.do(t, http.MethodPost, "/v1/exercises", AddExerciseRequest{Name: "  Rowing  ", PlannedDuration: domain.Float(300), PlannedCalories: domain.Float(40)}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp AddExerciseResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Exercise)
	require.Equal(t, "Rowing", resp.Exercise.Name)
	require.Equal(t, domain.KindAerobic, resp.Exercise.Kind)
	require.Equal(t, testUser, resp.Exercise.OwnerID)
	require.Equal(t, "User exercise added successfully.", resp.Notifications[len(resp.Notifications)-1].Message)

	require.NotEmpty(t, f.exerciseID(t, "Rowing"))
}

func TestAddExerciseValidation(t *testing.T) {
	f := newFixture(t, time.Now())

	rr := f.do(t, http.MethodPost, "/v1/exercises", AddExerciseRequest{Name: " "}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/exercises", AddExerciseRequest{Name: "Plank", PlannedDuration: domain.Float(-1)}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/exercises", bytes.NewBufferString("{"))
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: testUser, Scopes: map[string]struct{}{auth.ScopeTrainingWrite: {}}}))
	out := httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusBadRequest, out.Code)
}

func TestCompleteRejectsImplausibleMeasurements(t *testing.T) {
	f := newFixture(t, time.Now())
	id := f.exerciseID(t, "Burpees")

	rr := f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{ExerciseID: id}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	for _, req := range []CompleteSessionRequest{
		{Duration: domain.Float(1e20)},
		{Duration: domain.Float(domain.MaxSessionSeconds + 1)},
		{Weight: domain.Float(-1)},
		{Reps: intPtr(1e6)},
	} {
		rr = f.do(t, http.MethodPost, "/v1/session/complete", req, auth.ScopeTrainingWrite)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/v1/session", nil, auth.ScopeTrainingRead)
	var session SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	require.True(t, session.Active, "rejected requests leave the session running")

	rr = f.do(t, http.MethodPost, "/v1/session/complete", CompleteSessionRequest{Duration: domain.Float(domain.MaxSessionSeconds)}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	var outcome OutcomeView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outcome))
	require.Positive(t, outcome.XPEarned)
	require.NotNil(t, outcome.Stats)
	require.GreaterOrEqual(t, outcome.Stats.CurrentXP, 0)
}

func TestAddExerciseRejectsOversizedPlan(t *testing.T) {
	f := newFixture(t, time.Now())

	rr := f.do(t, http.MethodPost, "/v1/exercises", AddExerciseRequest{Name: "Ultra", PlannedDuration: domain.Float(1e12)}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/exercises", AddExerciseRequest{Name: "Ultra", PlannedCalories: domain.Float(domain.MaxSessionCalories + 1)}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionCompleteFlow(t *testing.T) {
	now := time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	id := f.exerciseID(t, "Touch Toes")

	rr := f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{ExerciseID: id}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	var session SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	require.True(t, session.Active)
	require.Equal(t, "running", session.State)
	require.Equal(t, "Touch Toes", session.Exercise.Name)

	rr = f.do(t, http.MethodPost, "/v1/session/complete", CompleteSessionRequest{Duration: domain.Float(600)}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	var outcome OutcomeView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outcome))
	require.NotNil(t, outcome.Finished)
	require.NotEmpty(t, outcome.Finished.ID)
	require.Equal(t, "completed", outcome.Finished.State)
	require.InDelta(t, 600, *outcome.Finished.Duration, 0.001)
	require.InDelta(t, 15, *outcome.Finished.Calories, 0.001)
	// 10 minutes at 10 XP plus 15 kcal at 0.5 XP.
	require.Equal(t, 108, outcome.XPEarned)
	require.Empty(t, outcome.LevelUps)
	require.Len(t, outcome.Unlocked, 1)
	require.Equal(t, "first_workout", outcome.Unlocked[0].ID)

	messages := make([]string, 0, len(outcome.Notifications))
	for _, n := range outcome.Notifications {
		messages = append(messages, n.Message)
	}
	require.Equal(t, []string{
		"Workout progress saved.",
		"+108 XP Earned!",
		"🏆 Achievement Unlocked: First Step!",
	}, messages)

	rr = f.do(t, http.MethodGet, "/v1/session", nil, auth.ScopeTrainingRead)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	require.False(t, session.Active)
	require.Equal(t, "idle", session.State)

	rr = f.do(t, http.MethodGet, "/v1/progression", nil, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusOK, rr.Code)
	var view domain.ProgressView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Equal(t, 108, view.Stats.CurrentXP)
	require.Equal(t, 1, view.Stats.TotalWorkouts)
	require.InDelta(t, 10.8, view.ProgressPercent, 0.001)
}

func TestCompleteWithoutSessionReturnsNotification(t *testing.T) {
	f := newFixture(t, time.Now())

	rr := f.do(t, http.MethodPost, "/v1/session/complete", nil, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	var outcome OutcomeView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outcome))
	require.Nil(t, outcome.Finished)
	require.Len(t, outcome.Notifications, 1)
	require.Equal(t, "No active exercise to complete.", outcome.Notifications[0].Message)
}

func TestStartUnknownExerciseKeepsCurrentSession(t *testing.T) {
	f := newFixture(t, time.Now())
	id := f.exerciseID(t, "Burpees")

	rr := f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{ExerciseID: id}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{ExerciseID: "missing"}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	var session SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	require.True(t, session.Active)
	require.Equal(t, id, session.Exercise.ID)

	rr = f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelAndHistory(t *testing.T) {
	now := time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	for _, name := range []string{"Crunches", "Side Lunges"} {
		rr := f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{ExerciseID: f.exerciseID(t, name)}, auth.ScopeTrainingWrite)
		require.Equal(t, http.StatusOK, rr.Code)
		rr = f.do(t, http.MethodPost, "/v1/session/cancel", CancelSessionRequest{Progress: 50}, auth.ScopeTrainingWrite)
		require.Equal(t, http.StatusOK, rr.Code)

		var outcome OutcomeView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outcome))
		require.Equal(t, "cancelled", outcome.Finished.State)
		require.Zero(t, outcome.XPEarned)
	}

	rr := f.do(t, http.MethodGet, "/v1/finished-exercises?limit=1", nil, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusOK, rr.Code)
	var page ListFinishedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)

	rr = f.do(t, http.MethodGet, "/v1/finished-exercises?limit=1&cursor="+page.NextCursor, nil, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusOK, rr.Code)
	var second ListFinishedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	require.Len(t, second.Items, 1)
	require.NotEqual(t, page.Items[0].ID, second.Items[0].ID)
	require.Empty(t, second.NextCursor)

	rr = f.do(t, http.MethodGet, "/v1/finished-exercises?cursor=%25%25", nil, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/progression", nil, auth.ScopeTrainingRead)
	var view domain.ProgressView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Zero(t, view.Stats.TotalWorkouts, "cancelled sessions are not scored")
}

func TestWeeklyCalories(t *testing.T) {
	now := time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	rr := f.do(t, http.MethodPost, "/v1/session/start", StartSessionRequest{ExerciseID: f.exerciseID(t, "Burpees")}, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = f.do(t, http.MethodPost, "/v1/session/complete", nil, auth.ScopeTrainingWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/finished-exercises/weekly-calories", nil, auth.ScopeTrainingRead)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp WeeklyCaloriesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Weeks, 1)
	require.Equal(t, 19, resp.Weeks[0].Week)
	require.InDelta(t, 8, resp.Weeks[0].Calories, 0.001)
}

type brokenHistory struct {
	*memory.Store
}

func (brokenHistory) ListFinished(context.Context, string, *domain.Cursor, int) ([]domain.FinishedExercise, *domain.Cursor, error) {
	return nil, nil, errors.New("relation finished_exercises does not exist")
}

func TestHistoryFailureNotifiesUser(t *testing.T) {
	store := memory.NewStore()
	store.SeedDefaults()
	service := domain.NewService(store, brokenHistory{store}, store, store)
	router := mux.NewRouter()
	NewHandler(service).RegisterRoutes(router)
	f := &fixture{router: router, store: store}

	for _, path := range []string{"/v1/finished-exercises", "/v1/finished-exercises/weekly-calories"} {
		rr := f.do(t, http.MethodGet, path, nil, auth.ScopeTrainingRead)
		require.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
		require.Contains(t, rr.Body.String(), "history_unavailable")
	}

	notes := store.Notifications(testUser)
	require.Len(t, notes, 2)
	require.Equal(t, "Fetching past exercises failed. Please try again later.", notes[0].Message)
}

func intPtr(v int) *int {
	return &v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, time.Now())
	rr := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}
