// Package memory provides an in-process log repository for local development
// and tests.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/events"
)

// Event is an outbox entry recorded by the repository.
type Event struct {
	Type    string
	UserID  string
	Payload []byte
}

// EventSink receives events as they are committed.
type EventSink func(ctx context.Context, evt Event)

// Option configures the Repository.
type Option func(*Repository)

// WithEventSink delivers committed events synchronously, standing in for
// the outbox dispatcher when no broker is configured.
func WithEventSink(sink EventSink) Option {
	return func(r *Repository) {
		r.sink = sink
	}
}

// Repository stores logs in memory. Snapshots are returned in insertion order.
type Repository struct {
	mu          sync.RWMutex
	exercises   []domain.ExerciseLog
	meals       []domain.MealLog
	idempotency map[string]string
	profiles    map[string]domain.UserProfile
	events      []Event
	sink        EventSink
}

// NewRepository constructs an empty Repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		idempotency: make(map[string]string),
		profiles:    make(map[string]domain.UserProfile),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindExerciseByIdempotency implements domain.LogRepository.
func (r *Repository) FindExerciseByIdempotency(_ context.Context, userID, key string) (*domain.ExerciseLog, error) {
	if key == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idempotency[idemKey(domain.KindExercise, userID, key)]
	if !ok {
		return nil, nil
	}
	return findByID(r.exercises, func(e domain.ExerciseLog) bool { return e.ID == id && e.UserID == userID }), nil
}

// FindMealByIdempotency implements domain.LogRepository.
func (r *Repository) FindMealByIdempotency(_ context.Context, userID, key string) (*domain.MealLog, error) {
	if key == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idempotency[idemKey(domain.KindMeal, userID, key)]
	if !ok {
		return nil, nil
	}
	return findByID(r.meals, func(m domain.MealLog) bool { return m.ID == id && m.UserID == userID }), nil
}

// CreateExercise implements domain.LogRepository.
func (r *Repository) CreateExercise(ctx context.Context, entry domain.ExerciseLog, key string, created events.LogCreated) error {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	r.mu.Lock()
	r.exercises = append(r.exercises, entry)
	if key != "" {
		r.idempotency[idemKey(domain.KindExercise, entry.UserID, key)] = entry.ID
	}
	evt := r.recordLocked(events.TypeLogCreated, entry.UserID, created)
	r.mu.Unlock()
	r.publish(ctx, evt)
	return nil
}

// CreateMeal implements domain.LogRepository.
func (r *Repository) CreateMeal(ctx context.Context, entry domain.MealLog, key string, created events.LogCreated) error {
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	r.mu.Lock()
	r.meals = append(r.meals, entry)
	if key != "" {
		r.idempotency[idemKey(domain.KindMeal, entry.UserID, key)] = entry.ID
	}
	evt := r.recordLocked(events.TypeLogCreated, entry.UserID, created)
	r.mu.Unlock()
	r.publish(ctx, evt)
	return nil
}

// GetExercise implements domain.LogRepository.
func (r *Repository) GetExercise(_ context.Context, userID, id string) (*domain.ExerciseLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return findByID(r.exercises, func(e domain.ExerciseLog) bool { return e.ID == id && e.UserID == userID }), nil
}

// GetMeal implements domain.LogRepository.
func (r *Repository) GetMeal(_ context.Context, userID, id string) (*domain.MealLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return findByID(r.meals, func(m domain.MealLog) bool { return m.ID == id && m.UserID == userID }), nil
}

// ListExercises implements domain.LogRepository.
func (r *Repository) ListExercises(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.ExerciseLog, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.exercises, userID, cursor, limit, func(e domain.ExerciseLog) (string, domain.Cursor) {
		return e.UserID, domain.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
}

// ListMeals implements domain.LogRepository.
func (r *Repository) ListMeals(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.MealLog, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return page(r.meals, userID, cursor, limit, func(m domain.MealLog) (string, domain.Cursor) {
		return m.UserID, domain.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
}

// AllExercises implements domain.LogRepository.
func (r *Repository) AllExercises(_ context.Context, userID string) ([]domain.ExerciseLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ExerciseLog, 0)
	for _, e := range r.exercises {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AllMeals implements domain.LogRepository.
func (r *Repository) AllMeals(_ context.Context, userID string) ([]domain.MealLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.MealLog, 0)
	for _, m := range r.meals {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// DeleteLog implements domain.LogRepository.
func (r *Repository) DeleteLog(ctx context.Context, d domain.Deletion) error {
	r.mu.Lock()
	var removed bool
	switch d.Kind {
	case domain.KindExercise:
		r.exercises, removed = remove(r.exercises, func(e domain.ExerciseLog) bool { return e.ID == d.ID && e.UserID == d.UserID })
	case domain.KindMeal:
		r.meals, removed = remove(r.meals, func(m domain.MealLog) bool { return m.ID == d.ID && m.UserID == d.UserID })
	default:
		r.mu.Unlock()
		return domain.ErrInvalidKind
	}
	if !removed {
		r.mu.Unlock()
		return domain.ErrLogNotFound
	}
	evt := r.recordLocked(events.TypeLogDeleted, d.UserID, events.LogDeleted{
		LogID:       d.ID,
		UserID:      d.UserID,
		Kind:        string(d.Kind),
		DurationMin: d.DurationMin,
		Calories:    d.Calories,
		Protein:     d.Protein,
		SameDay:     d.SameDay,
		DeletedAt:   d.DeletedAt,
	})
	r.mu.Unlock()
	r.publish(ctx, evt)
	return nil
}

// ClearPhoto implements domain.LogRepository.
func (r *Repository) ClearPhoto(ctx context.Context, kind domain.Kind, userID, id string, detached events.PhotoDetached) error {
	r.mu.Lock()
	found := false
	switch kind {
	case domain.KindExercise:
		for i := range r.exercises {
			if r.exercises[i].ID == id && r.exercises[i].UserID == userID {
				r.exercises[i].HasPhoto, r.exercises[i].PhotoURL = false, ""
				found = true
			}
		}
	case domain.KindMeal:
		for i := range r.meals {
			if r.meals[i].ID == id && r.meals[i].UserID == userID {
				r.meals[i].HasPhoto, r.meals[i].PhotoURL = false, ""
				found = true
			}
		}
	default:
		r.mu.Unlock()
		return domain.ErrInvalidKind
	}
	if !found {
		r.mu.Unlock()
		return domain.ErrLogNotFound
	}
	evt := r.recordLocked(events.TypePhotoDetached, userID, detached)
	r.mu.Unlock()
	r.publish(ctx, evt)
	return nil
}

// GetProfile implements domain.ProfileStore.
func (r *Repository) GetProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	p.WorkoutDays = slices.Clone(p.WorkoutDays)
	return &p, nil
}

// SaveProfile implements domain.ProfileStore.
func (r *Repository) SaveProfile(_ context.Context, profile domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile.WorkoutDays = slices.Clone(profile.WorkoutDays)
	r.profiles[profile.UserID] = profile
	return nil
}

// Events returns the recorded outbox entries in commit order.
func (r *Repository) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}

func (r *Repository) recordLocked(eventType, userID string, payload any) Event {
	body, err := json.Marshal(payload)
	if err != nil {
		body = nil
	}
	evt := Event{Type: eventType, UserID: userID, Payload: body}
	r.events = append(r.events, evt)
	return evt
}

func (r *Repository) publish(ctx context.Context, evt Event) {
	if r.sink != nil {
		r.sink(ctx, evt)
	}
}

func idemKey(kind domain.Kind, userID, key string) string {
	return string(kind) + "|" + userID + "|" + key
}

func findByID[T any](items []T, match func(T) bool) *T {
	for i := range items {
		if match(items[i]) {
			found := items[i]
			return &found
		}
	}
	return nil
}

func remove[T any](items []T, match func(T) bool) ([]T, bool) {
	before := len(items)
	items = slices.DeleteFunc(items, match)
	return items, len(items) != before
}

// page mirrors the Postgres listing: newest first by (created_at, id),
// strictly after the cursor.
func page[T any](items []T, userID string, cursor *domain.Cursor, limit int, keyOf func(T) (string, domain.Cursor)) ([]T, *domain.Cursor, error) {
	type keyed struct {
		item T
		key  domain.Cursor
	}
	matches := make([]keyed, 0, len(items))
	for _, item := range items {
		owner, key := keyOf(item)
		if owner != userID {
			continue
		}
		if cursor != nil && compareCursor(key, *cursor) >= 0 {
			continue
		}
		matches = append(matches, keyed{item: item, key: key})
	}
	slices.SortFunc(matches, func(a, b keyed) int {
		return compareCursor(b.key, a.key)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]T, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.item)
	}
	var next *domain.Cursor
	if limit > 0 && len(matches) == limit {
		last := matches[len(matches)-1].key
		next = &last
	}
	return results, next, nil
}

func compareCursor(a, b domain.Cursor) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
