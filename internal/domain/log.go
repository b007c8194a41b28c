package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/itayakad/juno-master/internal/aggregate"
)

// Kind distinguishes the two log collections.
type Kind string

const (
	KindExercise Kind = "exercise"
	KindMeal     Kind = "meal"
)

// ParseKind accepts the singular or plural collection name.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "exercise", "exercises":
		return KindExercise, nil
	case "meal", "meals":
		return KindMeal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
}

// Plural returns the collection name used in routes and storage.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// ExerciseLog is one recorded workout.
type ExerciseLog struct {
	ID             string
	UserID         string
	ExerciseType   string
	LoggedAt       *time.Time
	DurationMin    int
	CaloriesBurned float64
	Notes          string
	HasPhoto       bool
	PhotoURL       string
	RecordWorkout  string
	RecordQuantity string
	CreatedAt      time.Time
}

// Timestamp implements aggregate.Record.
func (e ExerciseLog) Timestamp() (time.Time, bool) {
	if e.LoggedAt == nil {
		return time.Time{}, false
	}
	return *e.LoggedAt, true
}

// Measures implements aggregate.Record.
func (e ExerciseLog) Measures() aggregate.Totals {
	return aggregate.Totals{Calories: e.CaloriesBurned, DurationMinutes: e.DurationMin}
}

// MealLog is one recorded meal with its macro breakdown.
type MealLog struct {
	ID          string
	UserID      string
	Description string
	LoggedAt    *time.Time
	Calories    float64
	Carbs       float64
	Fat         float64
	Protein     float64
	HasPhoto    bool
	PhotoURL    string
	CreatedAt   time.Time
}

// Timestamp implements aggregate.Record.
func (m MealLog) Timestamp() (time.Time, bool) {
	if m.LoggedAt == nil {
		return time.Time{}, false
	}
	return *m.LoggedAt, true
}

// Measures implements aggregate.Record.
func (m MealLog) Measures() aggregate.Totals {
	return aggregate.Totals{Calories: m.Calories, Carbs: m.Carbs, Fat: m.Fat, Protein: m.Protein}
}

// Cursor models the pagination token.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Deletion describes a removed log for the outbox event.
type Deletion struct {
	Kind        Kind
	ID          string
	UserID      string
	DurationMin int
	Calories    float64
	Protein     float64
	SameDay     bool
	DeletedAt   time.Time
}
