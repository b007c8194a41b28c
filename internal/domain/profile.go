package domain

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/itayakad/juno-master/internal/events"
)

// UserProfile carries the running counters kept on the user document.
type UserProfile struct {
	UserID           string
	ExerciseMinutes  int
	WorkoutDays      []string
	CaloriesConsumed float64
	ProteinConsumed  float64
	UpdatedAt        time.Time
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	SaveProfile(ctx context.Context, profile UserProfile) error
}

var weekdayOrder = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ApplyCreated folds a new log into the profile counters.
func (p UserProfile) ApplyCreated(evt events.LogCreated, at time.Time) UserProfile {
	switch Kind(evt.Kind) {
	case KindExercise:
		p.ExerciseMinutes += evt.DurationMin
		if evt.Weekday != "" && !slices.Contains(p.WorkoutDays, evt.Weekday) {
			p.WorkoutDays = append(slices.Clone(p.WorkoutDays), evt.Weekday)
			slices.SortFunc(p.WorkoutDays, compareWeekdays)
		}
	case KindMeal:
		p.CaloriesConsumed += evt.Calories
		p.ProteinConsumed += evt.Protein
	default:
		return p
	}
	p.UpdatedAt = at
	return p
}

// ApplyDeleted reverses a meal deleted on the same day. Consumed calories
// never drop below zero. Exercise deletions leave the counters alone.
func (p UserProfile) ApplyDeleted(evt events.LogDeleted, at time.Time) UserProfile {
	if Kind(evt.Kind) != KindMeal || !evt.SameDay {
		return p
	}
	p.CaloriesConsumed = math.Max(0, p.CaloriesConsumed-evt.Calories)
	p.UpdatedAt = at
	return p
}

func compareWeekdays(a, b string) int {
	return slices.Index(weekdayOrder, a) - slices.Index(weekdayOrder, b)
}
