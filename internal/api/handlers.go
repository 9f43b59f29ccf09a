// Package api exposes HTTP handlers for the training service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"example.com/training/internal/auth"
	"example.com/training/internal/domain"
	"example.com/training/internal/persistence"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	maxWeightKg = 1000
	maxReps     = 10000
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the router. OPTIONS is accepted on every route
// so preflight requests reach the CORS middleware.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	r.HandleFunc("/v1/exercises", h.listExercises).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/exercises", h.addExercise).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/v1/session", h.currentSession).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/session/start", h.startSession).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/session/complete", h.completeSession).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/session/cancel", h.cancelSession).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/v1/finished-exercises", h.listFinished).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/finished-exercises/weekly-calories", h.weeklyCalories).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/v1/progression", h.progression).Methods(http.MethodGet, http.MethodOptions)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listExercises(w http.ResponseWriter, r *http.Request) {
	claims, ok := readerClaims(w, r)
	if !ok {
		return
	}

	exercises, notes := h.service.LoadAvailableExercises(r.Context(), claims.Subject)
	writeJSON(w, http.StatusOK, ExerciseListResponse{
		Items:         exercises,
		Notifications: nonNil(notes),
	})
}

func (h *Handler) addExercise(w http.ResponseWriter, r *http.Request) {
	claims, ok := writerClaims(w, r)
	if !ok {
		return
	}

	var req AddExerciseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	created, notes := h.service.AddUserExercise(r.Context(), claims.Subject, domain.Exercise{
		Name:            strings.TrimSpace(req.Name),
		Kind:            domain.Kind(req.Kind),
		PlannedDuration: req.PlannedDuration,
		PlannedCalories: req.PlannedCalories,
	})

	status := http.StatusCreated
	if created == nil {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, AddExerciseResponse{Exercise: created, Notifications: nonNil(notes)})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := readerClaims(w, r)
	if !ok {
		return
	}
	running, active := h.service.ActiveExercise(claims.Subject)
	writeJSON(w, http.StatusOK, toSessionView(running, active))
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := writerClaims(w, r)
	if !ok {
		return
	}

	var req StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ExerciseID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "exercise_id is required")
		return
	}

	running, started := h.service.StartExercise(r.Context(), claims.Subject, req.ExerciseID)
	if !started {
		// An unknown id leaves any current session untouched.
		running, started = h.service.ActiveExercise(claims.Subject)
	}
	writeJSON(w, http.StatusOK, toSessionView(running, started))
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := writerClaims(w, r)
	if !ok {
		return
	}

	var req CompleteSessionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	outcome := h.service.CompleteExercise(r.Context(), claims.Subject, domain.CompletionResult{
		Duration: req.Duration,
		Weight:   req.Weight,
		Reps:     req.Reps,
	})
	writeJSON(w, http.StatusOK, toOutcomeView(outcome))
}

func (h *Handler) cancelSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := writerClaims(w, r)
	if !ok {
		return
	}

	var req CancelSessionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	if math.IsNaN(req.Progress) || math.IsInf(req.Progress, 0) {
		writeError(w, http.StatusBadRequest, "validation_failed", "progress must be a finite number")
		return
	}

	outcome := h.service.CancelExercise(r.Context(), claims.Subject, req.Progress)
	writeJSON(w, http.StatusOK, toOutcomeView(outcome))
}

func (h *Handler) listFinished(w http.ResponseWriter, r *http.Request) {
	claims, ok := readerClaims(w, r)
	if !ok {
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListFinishedExercises(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeHistoryError(w, err)
		return
	}

	items := make([]FinishedExerciseView, 0, len(records))
	for _, rec := range records {
		items = append(items, toFinishedView(rec))
	}
	writeJSON(w, http.StatusOK, ListFinishedResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) weeklyCalories(w http.ResponseWriter, r *http.Request) {
	claims, ok := readerClaims(w, r)
	if !ok {
		return
	}

	weeks, err := h.service.WeeklyCalories(r.Context(), claims.Subject)
	if err != nil {
		writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WeeklyCaloriesResponse{Weeks: weeks})
}

func (h *Handler) progression(w http.ResponseWriter, r *http.Request) {
	claims, ok := readerClaims(w, r)
	if !ok {
		return
	}

	view, err := h.service.FetchStats(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "stats_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func readerClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.CanRead() {
		writeError(w, http.StatusForbidden, "forbidden", "scope training:read required")
		return nil, false
	}
	return claims, true
}

func writerClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeTrainingWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope training:write required")
		return nil, false
	}
	return claims, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body as the zero request.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func writeHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrHistoryUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "history_unavailable", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func nonNil(notes []domain.Notification) []domain.Notification {
	if notes == nil {
		return []domain.Notification{}
	}
	return notes
}

func toSessionView(running domain.Exercise, active bool) SessionView {
	view := SessionView{Active: active, State: domain.SessionIdle.String()}
	if active {
		ex := running
		view.Exercise = &ex
		view.State = domain.SessionRunning.String()
	}
	return view
}

func toFinishedView(f domain.FinishedExercise) FinishedExerciseView {
	view := FinishedExerciseView{
		ID:         f.ID,
		ExerciseID: f.ExerciseID,
		Name:       f.Name,
		Kind:       string(f.Kind),
		State:      string(f.State),
		Date:       f.Date,
	}
	if f.Aerobic != nil {
		view.Duration = domain.Float(f.Aerobic.DurationSeconds)
		view.Calories = domain.Float(f.Aerobic.Calories)
	}
	if f.Resistance != nil {
		view.Weight = domain.Float(f.Resistance.WeightKg)
		view.Reps = domain.Int(f.Resistance.Reps)
	}
	return view
}

func toOutcomeView(outcome domain.Outcome) OutcomeView {
	view := OutcomeView{
		LevelUps:      []int{},
		Unlocked:      []domain.Achievement{},
		Notifications: nonNil(outcome.Notifications),
	}
	if outcome.Finished != nil {
		finished := toFinishedView(*outcome.Finished)
		view.Finished = &finished
	}
	if outcome.Score != nil {
		view.XPEarned = outcome.Score.XPEarned
		view.LevelUps = append(view.LevelUps, outcome.Score.LevelUps...)
		view.Unlocked = append(view.Unlocked, outcome.Score.Unlocked...)
		stats := outcome.Score.Stats
		view.Stats = &stats
	}
	return view
}

// AddExerciseRequest is the payload for POST /v1/exercises.
type AddExerciseRequest struct {
	Name            string   `json:"name"`
	Kind            string   `json:"kind"`
	PlannedDuration *float64 `json:"planned_duration,omitempty"`
	PlannedCalories *float64 `json:"planned_calories,omitempty"`
}

// Validate ensures request correctness.
func (r AddExerciseRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.PlannedDuration != nil && (*r.PlannedDuration < 0 || *r.PlannedDuration > domain.MaxSessionSeconds) {
		return fmt.Errorf("planned_duration must be between 0 and %d", domain.MaxSessionSeconds)
	}
	if r.PlannedCalories != nil && (*r.PlannedCalories < 0 || *r.PlannedCalories > domain.MaxSessionCalories) {
		return fmt.Errorf("planned_calories must be between 0 and %d", domain.MaxSessionCalories)
	}
	return nil
}

// StartSessionRequest is the payload for POST /v1/session/start.
type StartSessionRequest struct {
	ExerciseID string `json:"exercise_id"`
}

// CompleteSessionRequest carries the optional measured values for POST /v1/session/complete.
type CompleteSessionRequest struct {
	Duration *float64 `json:"duration,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
	Reps     *int     `json:"reps,omitempty"`
}

// Validate rejects measurements outside what a single session can plausibly record.
func (r CompleteSessionRequest) Validate() error {
	if r.Duration != nil && (*r.Duration < 0 || *r.Duration > domain.MaxSessionSeconds) {
		return fmt.Errorf("duration must be between 0 and %d", domain.MaxSessionSeconds)
	}
	if r.Weight != nil && (*r.Weight < 0 || *r.Weight > maxWeightKg) {
		return fmt.Errorf("weight must be between 0 and %d", maxWeightKg)
	}
	if r.Reps != nil && (*r.Reps < 0 || *r.Reps > maxReps) {
		return fmt.Errorf("reps must be between 0 and %d", maxReps)
	}
	return nil
}

// CancelSessionRequest is the payload for POST /v1/session/cancel. Progress is a percentage.
type CancelSessionRequest struct {
	Progress float64 `json:"progress"`
}

// ExerciseListResponse lists the exercises a user may start.
type ExerciseListResponse struct {
	Items         []domain.Exercise     `json:"items"`
	Notifications []domain.Notification `json:"notifications"`
}

// AddExerciseResponse returns the stored entry, or only notifications when the store failed.
type AddExerciseResponse struct {
	Exercise      *domain.Exercise      `json:"exercise,omitempty"`
	Notifications []domain.Notification `json:"notifications"`
}

// SessionView reports the user's session state.
type SessionView struct {
	Active   bool             `json:"active"`
	State    string           `json:"state"`
	Exercise *domain.Exercise `json:"exercise,omitempty"`
}

// FinishedExerciseView flattens the finished exercise payload for clients.
type FinishedExerciseView struct {
	ID         string    `json:"id,omitempty"`
	ExerciseID string    `json:"exercise_id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	State      string    `json:"state"`
	Date       time.Time `json:"date"`
	Duration   *float64  `json:"duration,omitempty"`
	Calories   *float64  `json:"calories,omitempty"`
	Weight     *float64  `json:"weight,omitempty"`
	Reps       *int      `json:"reps,omitempty"`
}

// OutcomeView is the response to complete and cancel requests.
type OutcomeView struct {
	Finished      *FinishedExerciseView    `json:"finished,omitempty"`
	XPEarned      int                      `json:"xp_earned"`
	LevelUps      []int                    `json:"level_ups"`
	Unlocked      []domain.Achievement     `json:"unlocked"`
	Stats         *domain.ProgressionStats `json:"stats,omitempty"`
	Notifications []domain.Notification    `json:"notifications"`
}

// ListFinishedResponse packages history results.
type ListFinishedResponse struct {
	Items      []FinishedExerciseView `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// WeeklyCaloriesResponse lists calories per ISO week, oldest first.
type WeeklyCaloriesResponse struct {
	Weeks []domain.WeeklyCalories `json:"weeks"`
}
