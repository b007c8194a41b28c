package domain

import "strings"

// ExerciseTypes lists the exercise types with a known burn rate.
var ExerciseTypes = []string{"Running", "Cycling", "Swimming", "Yoga", "Weightlifting"}

var caloriesPerMinute = map[string]float64{
	"running":       10,
	"cycling":       8,
	"swimming":      12,
	"yoga":          5,
	"weightlifting": 7,
}

// CaloriesBurned estimates the energy spent on an exercise. Unknown types
// and non-positive durations burn nothing.
func CaloriesBurned(exerciseType string, durationMin int) float64 {
	if durationMin <= 0 {
		return 0
	}
	rate := caloriesPerMinute[strings.ToLower(strings.TrimSpace(exerciseType))]
	return float64(durationMin) * rate
}
