// Package events defines the log event payloads shared by the API, the
// outbox dispatcher and the consumers.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeLogCreated    = "log.created"
	TypeLogDeleted    = "log.deleted"
	TypePhotoDetached = "log.photo_detached"
)

// LogCreated is emitted when an exercise or meal log is accepted.
type LogCreated struct {
	LogID          string     `json:"log_id"`
	UserID         string     `json:"user_id"`
	Kind           string     `json:"kind"`
	LoggedAt       *time.Time `json:"logged_at,omitempty"`
	Weekday        string     `json:"weekday,omitempty"`
	ExerciseType   string     `json:"exercise_type,omitempty"`
	DurationMin    int        `json:"duration_min,omitempty"`
	CaloriesBurned float64    `json:"calories_burned,omitempty"`
	Calories       float64    `json:"calories,omitempty"`
	Carbs          float64    `json:"carbs,omitempty"`
	Fat            float64    `json:"fat,omitempty"`
	Protein        float64    `json:"protein,omitempty"`
	HasPhoto       bool       `json:"has_photo"`
	Imported       bool       `json:"imported,omitempty"`
	Version        string     `json:"version"`
}

// LogDeleted is emitted when a log is removed. SameDay reports whether the
// log belonged to the user's current day at deletion time.
type LogDeleted struct {
	LogID       string    `json:"log_id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	DurationMin int       `json:"duration_min,omitempty"`
	Calories    float64   `json:"calories,omitempty"`
	Protein     float64   `json:"protein,omitempty"`
	SameDay     bool      `json:"same_day"`
	DeletedAt   time.Time `json:"deleted_at"`
}

// PhotoDetached is emitted when a photo is removed from a log.
type PhotoDetached struct {
	LogID      string    `json:"log_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	PhotoURL   string    `json:"photo_url"`
	DetachedAt time.Time `json:"detached_at"`
}
