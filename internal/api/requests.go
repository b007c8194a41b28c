package api

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/itayakad/juno-master/internal/aggregate"
	"github.com/itayakad/juno-master/internal/domain"
)

var validate = validator.New()

// LogExerciseRequest is the payload for POST /v1/exercises.
type LogExerciseRequest struct {
	ExerciseType   string `json:"exercise_type" validate:"required,max=100"`
	DurationMin    int    `json:"duration_min" validate:"required,gt=0,lte=1440"`
	Notes          string `json:"notes" validate:"max=2000"`
	PhotoURL       string `json:"photo_url" validate:"omitempty,url"`
	RecordWorkout  string `json:"record_workout" validate:"max=200"`
	RecordQuantity string `json:"record_quantity" validate:"max=100"`
}

// Validate ensures request correctness.
func (r LogExerciseRequest) Validate() error {
	return validate.Struct(r)
}

// LogMealRequest is the payload for POST /v1/meals. Nutrition values are
// per portion.
type LogMealRequest struct {
	Description string  `json:"description" validate:"required,max=200"`
	Calories    float64 `json:"calories" validate:"gte=0"`
	Carbs       float64 `json:"carbs" validate:"gte=0"`
	Fat         float64 `json:"fat" validate:"gte=0"`
	Protein     float64 `json:"protein" validate:"gte=0"`
	Portion     float64 `json:"portion" validate:"gte=0"`
	PhotoURL    string  `json:"photo_url" validate:"omitempty,url"`
}

// Validate ensures request correctness.
func (r LogMealRequest) Validate() error {
	return validate.Struct(r)
}

// CreateLogResponse describes the response body for create.
type CreateLogResponse struct {
	LogID  string `json:"log_id"`
	Replay bool   `json:"idempotent_replay"`
}

// ExerciseView exposes an exercise log.
type ExerciseView struct {
	LogID          string     `json:"log_id"`
	ExerciseType   string     `json:"exercise_type"`
	LoggedAt       *time.Time `json:"logged_at,omitempty"`
	DurationMin    int        `json:"duration_min"`
	CaloriesBurned float64    `json:"calories_burned"`
	Notes          string     `json:"notes,omitempty"`
	HasPhoto       bool       `json:"has_photo"`
	PhotoURL       string     `json:"photo_url,omitempty"`
	RecordWorkout  string     `json:"record_workout,omitempty"`
	RecordQuantity string     `json:"record_quantity,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MealView exposes a meal log.
type MealView struct {
	LogID       string     `json:"log_id"`
	Description string     `json:"description"`
	LoggedAt    *time.Time `json:"logged_at,omitempty"`
	Calories    float64    `json:"calories"`
	Carbs       float64    `json:"carbs"`
	Fat         float64    `json:"fat"`
	Protein     float64    `json:"protein"`
	HasPhoto    bool       `json:"has_photo"`
	PhotoURL    string     `json:"photo_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListResponse packages list results.
type ListResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// DayView is one date group of the daily view.
type DayView[T any] struct {
	Date         string           `json:"date"`
	Expanded     bool             `json:"expanded"`
	Count        int              `json:"count"`
	UndatedCount int              `json:"undated_count,omitempty"`
	Totals       aggregate.Totals `json:"totals"`
	Items        []T              `json:"items"`
}

// DailyResponse lists the date groups of one log kind.
type DailyResponse[T any] struct {
	Kind   string       `json:"kind"`
	Locale string       `json:"locale"`
	Days   []DayView[T] `json:"days"`
}

// ExpansionResponse reports the stored expansion state of a view.
type ExpansionResponse struct {
	Kind     string          `json:"kind"`
	Expanded map[string]bool `json:"expanded"`
}

// ProfileResponse exposes the projected user totals.
type ProfileResponse struct {
	UserID           string     `json:"user_id"`
	ExerciseMinutes  int        `json:"exercise_minutes"`
	WorkoutDays      []string   `json:"workout_days"`
	CaloriesConsumed float64    `json:"calories_consumed"`
	ProteinConsumed  float64    `json:"protein_consumed"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

func toExerciseView(e domain.ExerciseLog) ExerciseView {
	return ExerciseView{
		LogID:          e.ID,
		ExerciseType:   e.ExerciseType,
		LoggedAt:       e.LoggedAt,
		DurationMin:    e.DurationMin,
		CaloriesBurned: e.CaloriesBurned,
		Notes:          e.Notes,
		HasPhoto:       e.HasPhoto,
		PhotoURL:       e.PhotoURL,
		RecordWorkout:  e.RecordWorkout,
		RecordQuantity: e.RecordQuantity,
		CreatedAt:      e.CreatedAt,
	}
}

func toMealView(m domain.MealLog) MealView {
	return MealView{
		LogID:       m.ID,
		Description: m.Description,
		LoggedAt:    m.LoggedAt,
		Calories:    m.Calories,
		Carbs:       m.Carbs,
		Fat:         m.Fat,
		Protein:     m.Protein,
		HasPhoto:    m.HasPhoto,
		PhotoURL:    m.PhotoURL,
		CreatedAt:   m.CreatedAt,
	}
}

func toDays[R aggregate.Record, T any](groups []aggregate.DateGroup[R], state aggregate.ExpansionState, view func(R) T) []DayView[T] {
	days := make([]DayView[T], 0, len(groups))
	for _, g := range groups {
		items := make([]T, 0, len(g.Records))
		for _, rec := range g.Records {
			items = append(items, view(rec))
		}
		days = append(days, DayView[T]{
			Date:         g.Date,
			Expanded:     state.Expanded(g.Date),
			Count:        len(g.Records),
			UndatedCount: g.UndatedCount,
			Totals:       g.Totals,
			Items:        items,
		})
	}
	return days
}
