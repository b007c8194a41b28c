// Package api exposes HTTP handlers for the log service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/itayakad/juno-master/internal/auth"
	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/persistence"
	"github.com/itayakad/juno-master/internal/photos"
	"github.com/itayakad/juno-master/internal/views"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	views   views.Store
}

// NewHandler builds a Handler. A nil view store keeps expansion state in memory.
func NewHandler(service *domain.Service, viewStore views.Store) *Handler {
	if viewStore == nil {
		viewStore = views.NewMemoryStore()
	}
	return &Handler{service: service, views: viewStore}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/exercises", h.collection(domain.KindExercise))
	mux.HandleFunc("/v1/exercises/", h.logByID(domain.KindExercise))
	mux.HandleFunc("/v1/meals", h.collection(domain.KindMeal))
	mux.HandleFunc("/v1/meals/", h.logByID(domain.KindMeal))
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/views/", h.expansion)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) collection(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if kind == domain.KindExercise {
				h.logExercise(w, r)
			} else {
				h.logMeal(w, r)
			}
		case http.MethodGet:
			h.listLogs(w, r, kind)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
	}
}

// logByID serves /v1/{kind}/daily, /v1/{kind}/{id} and /v1/{kind}/{id}/photo.
func (h *Handler) logByID(kind domain.Kind) http.HandlerFunc {
	prefix := "/v1/" + kind.Plural() + "/"
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
		if rest == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "missing log id")
			return
		}
		if rest == "daily" {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
				return
			}
			h.daily(w, r, kind)
			return
		}

		id, sub, _ := strings.Cut(rest, "/")
		switch {
		case sub == "" && r.Method == http.MethodGet:
			h.getLog(w, r, kind, id)
		case sub == "" && r.Method == http.MethodDelete:
			h.deleteLog(w, r, kind, id)
		case sub == "photo" && r.Method == http.MethodDelete:
			h.detachPhoto(w, r, kind, id)
		case sub == "" || sub == "photo":
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		default:
			writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		}
	}
}

func (h *Handler) logExercise(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeLogsWrite)
	if !ok {
		return
	}

	var req LogExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	entry, replay, err := h.service.LogExercise(r.Context(), domain.LogExerciseInput{
		UserID:         claims.Subject,
		ExerciseType:   req.ExerciseType,
		DurationMin:    req.DurationMin,
		Notes:          req.Notes,
		PhotoURL:       req.PhotoURL,
		RecordWorkout:  req.RecordWorkout,
		RecordQuantity: req.RecordQuantity,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCreated(w, entry.ID, replay)
}

func (h *Handler) logMeal(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeLogsWrite)
	if !ok {
		return
	}

	var req LogMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	entry, replay, err := h.service.LogMeal(r.Context(), domain.LogMealInput{
		UserID:         claims.Subject,
		Description:    req.Description,
		Calories:       req.Calories,
		Carbs:          req.Carbs,
		Fat:            req.Fat,
		Protein:        req.Protein,
		Portion:        req.Portion,
		PhotoURL:       req.PhotoURL,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCreated(w, entry.ID, replay)
}

func writeCreated(w http.ResponseWriter, id string, replay bool) {
	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, CreateLogResponse{LogID: id, Replay: replay})
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request, kind domain.Kind, id string) {
	claims, ok := requireScope(w, r, auth.ScopeLogsRead)
	if !ok {
		return
	}

	if kind == domain.KindExercise {
		entry, err := h.service.GetExercise(r.Context(), claims.Subject, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExerciseView(*entry))
		return
	}
	entry, err := h.service.GetMeal(r.Context(), claims.Subject, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMealView(*entry))
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	claims, ok := requireScope(w, r, auth.ScopeLogsRead)
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

	if kind == domain.KindExercise {
		entries, next, err := h.service.ListExercises(r.Context(), claims.Subject, cursor, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := ListResponse[ExerciseView]{Items: make([]ExerciseView, 0, len(entries)), NextCursor: persistence.EncodeCursor(next)}
		for _, e := range entries {
			resp.Items = append(resp.Items, toExerciseView(e))
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	entries, next, err := h.service.ListMeals(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := ListResponse[MealView]{Items: make([]MealView, 0, len(entries)), NextCursor: persistence.EncodeCursor(next)}
	for _, m := range entries {
		resp.Items = append(resp.Items, toMealView(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request, kind domain.Kind) {
	claims, ok := requireScope(w, r, auth.ScopeLogsRead)
	if !ok {
		return
	}

	view, err := viewOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	state, err := h.views.Get(r.Context(), claims.Subject, string(kind))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	locale := h.service.Locale(view)
	if kind == domain.KindExercise {
		groups, err := h.service.DailyExercises(r.Context(), claims.Subject, view)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, DailyResponse[ExerciseView]{
			Kind:   string(kind),
			Locale: locale,
			Days:   toDays(groups, state, toExerciseView),
		})
		return
	}

	groups, err := h.service.DailyMeals(r.Context(), claims.Subject, view)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DailyResponse[MealView]{
		Kind:   string(kind),
		Locale: locale,
		Days:   toDays(groups, state, toMealView),
	})
}

func (h *Handler) deleteLog(w http.ResponseWriter, r *http.Request, kind domain.Kind, id string) {
	claims, ok := requireScope(w, r, auth.ScopeLogsWrite)
	if !ok {
		return
	}

	view, err := viewOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if err := h.service.DeleteLog(r.Context(), claims.Subject, kind, id, view); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachPhoto(w http.ResponseWriter, r *http.Request, kind domain.Kind, id string) {
	claims, ok := requireScope(w, r, auth.ScopeLogsWrite)
	if !ok {
		return
	}

	if err := h.service.DetachPhoto(r.Context(), claims.Subject, kind, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeLogsRead)
	if !ok {
		return
	}

	p, err := h.service.Profile(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := ProfileResponse{
		UserID:           p.UserID,
		ExerciseMinutes:  p.ExerciseMinutes,
		WorkoutDays:      p.WorkoutDays,
		CaloriesConsumed: p.CaloriesConsumed,
		ProteinConsumed:  p.ProteinConsumed,
	}
	if resp.WorkoutDays == nil {
		resp.WorkoutDays = []string{}
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = &p.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// expansion serves GET /v1/views/{kind}/expansion and
// POST /v1/views/{kind}/expansion/{date}. Date keys may contain slashes.
func (h *Handler) expansion(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/views/")
	rawKind, tail, _ := strings.Cut(rest, "/")
	kind, err := domain.ParseKind(rawKind)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if tail != "expansion" && !strings.HasPrefix(tail, "expansion/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	date := strings.TrimPrefix(strings.TrimPrefix(tail, "expansion"), "/")

	switch {
	case date == "" && r.Method == http.MethodGet:
		claims, ok := requireScope(w, r, auth.ScopeLogsRead)
		if !ok {
			return
		}
		state, err := h.views.Get(r.Context(), claims.Subject, string(kind))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ExpansionResponse{Kind: string(kind), Expanded: state})
	case date != "" && r.Method == http.MethodPost:
		claims, ok := requireScope(w, r, auth.ScopeLogsWrite)
		if !ok {
			return
		}
		state, err := h.views.Toggle(r.Context(), claims.Subject, string(kind), date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ExpansionResponse{Kind: string(kind), Expanded: state})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// viewOptions reads the tz, locale and sorted query parameters.
func viewOptions(r *http.Request) (domain.ViewOptions, error) {
	q := r.URL.Query()
	view := domain.ViewOptions{Locale: q.Get("locale")}
	if tz := q.Get("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return view, errors.New("unknown time zone " + strconv.Quote(tz))
		}
		view.Location = loc
	}
	if raw := q.Get("sorted"); raw != "" {
		sorted, err := strconv.ParseBool(raw)
		if err != nil {
			return view, errors.New("sorted must be a boolean")
		}
		view.Sorted = sorted
	}
	return view, nil
}

// requireScope writes 401/403 and returns false unless the caller holds scope.
// logs:write implies logs:read.
func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) || (scope == auth.ScopeLogsRead && claims.HasScope(auth.ScopeLogsWrite)) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return nil, false
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrLogNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNoPhoto):
		writeError(w, http.StatusConflict, "no_photo", err.Error())
	case errors.Is(err, photos.ErrForeignURL):
		writeError(w, http.StatusUnprocessableEntity, "foreign_photo", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
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
