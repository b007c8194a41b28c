// Package domain defines the business logic for exercise and meal logs.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itayakad/juno-master/internal/aggregate"
	"github.com/itayakad/juno-master/internal/events"
	"github.com/itayakad/juno-master/internal/observability"
)

var (
	// ErrLogNotFound is returned when a log cannot be located for the user.
	ErrLogNotFound = errors.New("log not found")
	// ErrInvalidKind is returned for an unknown log collection.
	ErrInvalidKind = errors.New("invalid log kind")
	// ErrInvalidInput wraps validation failures on create payloads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoPhoto is returned when detaching a photo from a log without one.
	ErrNoPhoto = errors.New("log has no photo")
)

const eventVersion = "v1"

// LogRepository captures persistence operations for both log kinds.
type LogRepository interface {
	FindExerciseByIdempotency(ctx context.Context, userID, idempotencyKey string) (*ExerciseLog, error)
	FindMealByIdempotency(ctx context.Context, userID, idempotencyKey string) (*MealLog, error)
	CreateExercise(ctx context.Context, entry ExerciseLog, idempotencyKey string, created events.LogCreated) error
	CreateMeal(ctx context.Context, entry MealLog, idempotencyKey string, created events.LogCreated) error
	GetExercise(ctx context.Context, userID, id string) (*ExerciseLog, error)
	GetMeal(ctx context.Context, userID, id string) (*MealLog, error)
	ListExercises(ctx context.Context, userID string, cursor *Cursor, limit int) ([]ExerciseLog, *Cursor, error)
	ListMeals(ctx context.Context, userID string, cursor *Cursor, limit int) ([]MealLog, *Cursor, error)
	AllExercises(ctx context.Context, userID string) ([]ExerciseLog, error)
	AllMeals(ctx context.Context, userID string) ([]MealLog, error)
	DeleteLog(ctx context.Context, deletion Deletion) error
	ClearPhoto(ctx context.Context, kind Kind, userID, id string, detached events.PhotoDetached) error
}

// PhotoStore removes photo blobs referenced by logs.
type PhotoStore interface {
	Delete(ctx context.Context, photoURL string) error
}

// NoopPhotoStore leaves blobs in place.
type NoopPhotoStore struct{}

// Delete performs no action.
func (NoopPhotoStore) Delete(context.Context, string) error { return nil }

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the default location used to decide calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLocale sets the default locale used to format date keys.
func WithLocale(locale string) Option {
	return func(s *Service) {
		s.keys = aggregate.NewDateKeyer(locale)
	}
}

// WithLogger overrides the logger used to report data-quality issues.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service orchestrates log workflows.
type Service struct {
	repo     LogRepository
	profiles ProfileStore
	photos   PhotoStore
	now      func() time.Time
	loc      *time.Location
	keys     aggregate.DateKeyer
	logger   *log.Logger
}

// NewService constructs a Service. A nil photo store leaves blobs in place.
func NewService(repo LogRepository, profiles ProfileStore, photos PhotoStore, opts ...Option) *Service {
	if photos == nil {
		photos = NoopPhotoStore{}
	}
	s := &Service{
		repo:     repo,
		profiles: profiles,
		photos:   photos,
		now:      time.Now,
		loc:      time.Local,
		keys:     aggregate.DefaultKeyer,
		logger:   log.New(log.Writer(), "[logs] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogExerciseInput captures an exercise submission.
type LogExerciseInput struct {
	UserID         string
	ExerciseType   string
	DurationMin    int
	Notes          string
	PhotoURL       string
	RecordWorkout  string
	RecordQuantity string
	IdempotencyKey string
}

// LogMealInput captures a meal submission. Nutrition values are per
// portion; Portion scales them (0 means 1).
type LogMealInput struct {
	UserID         string
	Description    string
	Calories       float64
	Carbs          float64
	Fat            float64
	Protein        float64
	Portion        float64
	PhotoURL       string
	IdempotencyKey string
}

// ViewOptions selects how calendar days are computed for a request.
// Zero fields fall back to the service defaults.
type ViewOptions struct {
	Location *time.Location
	Locale   string
	Sorted   bool
}

// LogExercise records an exercise with its estimated calories burned.
func (s *Service) LogExercise(ctx context.Context, input LogExerciseInput) (*ExerciseLog, bool, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.ExerciseType) == "" {
		return nil, false, fmt.Errorf("%w: exercise type is required", ErrInvalidInput)
	}
	if input.DurationMin <= 0 {
		return nil, false, fmt.Errorf("%w: duration must be > 0", ErrInvalidInput)
	}

	if existing, err := s.repo.FindExerciseByIdempotency(ctx, input.UserID, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	now := s.now().UTC()
	entry := ExerciseLog{
		ID:             uuid.NewString(),
		UserID:         input.UserID,
		ExerciseType:   strings.TrimSpace(input.ExerciseType),
		LoggedAt:       &now,
		DurationMin:    input.DurationMin,
		CaloriesBurned: CaloriesBurned(input.ExerciseType, input.DurationMin),
		Notes:          input.Notes,
		HasPhoto:       input.PhotoURL != "",
		PhotoURL:       input.PhotoURL,
		RecordWorkout:  input.RecordWorkout,
		RecordQuantity: input.RecordQuantity,
		CreatedAt:      now,
	}

	if err := s.repo.CreateExercise(ctx, entry, input.IdempotencyKey, s.exerciseCreated(entry, false)); err != nil {
		return nil, false, err
	}
	observability.RecordLogPersisted(string(KindExercise), now)
	return &entry, false, nil
}

// LogMeal records a meal, rounding each nutrition value after applying the
// portion multiplier.
func (s *Service) LogMeal(ctx context.Context, input LogMealInput) (*MealLog, bool, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, false, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	if existing, err := s.repo.FindMealByIdempotency(ctx, input.UserID, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	portion := input.Portion
	if portion <= 0 || math.IsNaN(portion) || math.IsInf(portion, 0) {
		portion = 1
	}

	now := s.now().UTC()
	entry := MealLog{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		Description: strings.TrimSpace(input.Description),
		LoggedAt:    &now,
		Calories:    scaled(input.Calories, portion),
		Carbs:       scaled(input.Carbs, portion),
		Fat:         scaled(input.Fat, portion),
		Protein:     scaled(input.Protein, portion),
		HasPhoto:    input.PhotoURL != "",
		PhotoURL:    input.PhotoURL,
		CreatedAt:   now,
	}

	if err := s.repo.CreateMeal(ctx, entry, input.IdempotencyKey, s.mealCreated(entry, false)); err != nil {
		return nil, false, err
	}
	observability.RecordLogPersisted(string(KindMeal), now)
	return &entry, false, nil
}

// ImportExercises stores previously recorded exercises as-is, keeping their
// recorded timestamps (including missing ones).
func (s *Service) ImportExercises(ctx context.Context, userID string, entries []ExerciseLog) (int, error) {
	now := s.now().UTC()
	imported := 0
	var err error
	for _, entry := range entries {
		entry.UserID = userID
		if strings.TrimSpace(entry.ID) == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if createErr := s.repo.CreateExercise(ctx, entry, "", s.exerciseCreated(entry, true)); createErr != nil {
			err = errors.Join(err, fmt.Errorf("import exercise %s: %w", entry.ID, createErr))
			continue
		}
		imported++
	}
	return imported, err
}

// ImportMeals stores previously recorded meals as-is.
func (s *Service) ImportMeals(ctx context.Context, userID string, entries []MealLog) (int, error) {
	now := s.now().UTC()
	imported := 0
	var err error
	for _, entry := range entries {
		entry.UserID = userID
		if strings.TrimSpace(entry.ID) == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if createErr := s.repo.CreateMeal(ctx, entry, "", s.mealCreated(entry, true)); createErr != nil {
			err = errors.Join(err, fmt.Errorf("import meal %s: %w", entry.ID, createErr))
			continue
		}
		imported++
	}
	return imported, err
}

// GetExercise fetches by ID.
func (s *Service) GetExercise(ctx context.Context, userID, id string) (*ExerciseLog, error) {
	entry, err := s.repo.GetExercise(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrLogNotFound
	}
	return entry, nil
}

// GetMeal fetches by ID.
func (s *Service) GetMeal(ctx context.Context, userID, id string) (*MealLog, error) {
	entry, err := s.repo.GetMeal(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrLogNotFound
	}
	return entry, nil
}

// ListExercises fetches exercises with cursor pagination, newest first.
func (s *Service) ListExercises(ctx context.Context, userID string, cursor *Cursor, limit int) ([]ExerciseLog, *Cursor, error) {
	return s.repo.ListExercises(ctx, userID, cursor, limit)
}

// ListMeals fetches meals with cursor pagination, newest first.
func (s *Service) ListMeals(ctx context.Context, userID string, cursor *Cursor, limit int) ([]MealLog, *Cursor, error) {
	return s.repo.ListMeals(ctx, userID, cursor, limit)
}

// DailyExercises groups every exercise of the user by calendar day.
func (s *Service) DailyExercises(ctx context.Context, userID string, view ViewOptions) ([]aggregate.DateGroup[ExerciseLog], error) {
	entries, err := s.repo.AllExercises(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups := group(entries, s.aggregateOptions(view), view.Sorted)
	s.reportUndated(KindExercise, userID, aggregate.Undated(groups))
	return groups, nil
}

// DailyMeals groups every meal of the user by calendar day.
func (s *Service) DailyMeals(ctx context.Context, userID string, view ViewOptions) ([]aggregate.DateGroup[MealLog], error) {
	entries, err := s.repo.AllMeals(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups := group(entries, s.aggregateOptions(view), view.Sorted)
	s.reportUndated(KindMeal, userID, aggregate.Undated(groups))
	return groups, nil
}

// DeleteLog removes a log and records whether it belonged to the user's
// current day.
func (s *Service) DeleteLog(ctx context.Context, userID string, kind Kind, id string, view ViewOptions) error {
	opts := s.aggregateOptions(view)
	deletion := Deletion{Kind: kind, ID: id, UserID: userID, DeletedAt: opts.Now.UTC()}

	var rec aggregate.Record
	switch kind {
	case KindExercise:
		entry, err := s.GetExercise(ctx, userID, id)
		if err != nil {
			return err
		}
		deletion.DurationMin = entry.DurationMin
		deletion.Calories = entry.CaloriesBurned
		rec = entry
	case KindMeal:
		entry, err := s.GetMeal(ctx, userID, id)
		if err != nil {
			return err
		}
		deletion.Calories = entry.Calories
		deletion.Protein = entry.Protein
		rec = entry
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	loggedAt, ok := rec.Timestamp()
	if !ok {
		loggedAt = opts.Now
	}
	deletion.SameDay = opts.Keys.SameDay(loggedAt, opts.Now, opts.Location)

	return s.repo.DeleteLog(ctx, deletion)
}

// DetachPhoto deletes the photo blob and clears the photo fields on the log.
func (s *Service) DetachPhoto(ctx context.Context, userID string, kind Kind, id string) error {
	var photoURL string
	switch kind {
	case KindExercise:
		entry, err := s.GetExercise(ctx, userID, id)
		if err != nil {
			return err
		}
		photoURL = entry.PhotoURL
	case KindMeal:
		entry, err := s.GetMeal(ctx, userID, id)
		if err != nil {
			return err
		}
		photoURL = entry.PhotoURL
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if photoURL == "" {
		return ErrNoPhoto
	}

	if err := s.photos.Delete(ctx, photoURL); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}

	return s.repo.ClearPhoto(ctx, kind, userID, id, events.PhotoDetached{
		LogID:      id,
		UserID:     userID,
		Kind:       string(kind),
		PhotoURL:   photoURL,
		DetachedAt: s.now().UTC(),
	})
}

// Profile returns the projected counters for a user. Users without a stored
// profile get an empty one.
func (s *Service) Profile(ctx context.Context, userID string) (UserProfile, error) {
	if s.profiles == nil {
		return UserProfile{UserID: userID}, nil
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	if profile == nil {
		return UserProfile{UserID: userID}, nil
	}
	return *profile, nil
}

// Locale reports the locale tag date keys are formatted with for view.
func (s *Service) Locale(view ViewOptions) string {
	return s.aggregateOptions(view).Keys.Locale()
}

func (s *Service) aggregateOptions(view ViewOptions) aggregate.Options {
	opts := aggregate.Options{Now: s.now(), Location: s.loc, Keys: s.keys}
	if view.Location != nil {
		opts.Location = view.Location
	}
	if view.Locale != "" {
		opts.Keys = aggregate.NewDateKeyer(view.Locale)
	}
	return opts
}

func (s *Service) reportUndated(kind Kind, userID string, undated int) {
	if undated == 0 {
		return
	}
	observability.RecordUndatedFallback(string(kind), undated)
	s.logger.Printf("daily view: %d %s logs without timestamp grouped under today (user=%s)", undated, kind, userID)
}

func (s *Service) exerciseCreated(entry ExerciseLog, imported bool) events.LogCreated {
	evt := events.LogCreated{
		LogID:          entry.ID,
		UserID:         entry.UserID,
		Kind:           string(KindExercise),
		LoggedAt:       entry.LoggedAt,
		ExerciseType:   entry.ExerciseType,
		DurationMin:    entry.DurationMin,
		CaloriesBurned: entry.CaloriesBurned,
		HasPhoto:       entry.HasPhoto,
		Imported:       imported,
		Version:        eventVersion,
	}
	if entry.LoggedAt != nil {
		evt.Weekday = entry.LoggedAt.In(s.loc).Format("Mon")
	}
	return evt
}

func (s *Service) mealCreated(entry MealLog, imported bool) events.LogCreated {
	return events.LogCreated{
		LogID:    entry.ID,
		UserID:   entry.UserID,
		Kind:     string(KindMeal),
		LoggedAt: entry.LoggedAt,
		Calories: entry.Calories,
		Carbs:    entry.Carbs,
		Fat:      entry.Fat,
		Protein:  entry.Protein,
		HasPhoto: entry.HasPhoto,
		Imported: imported,
		Version:  eventVersion,
	}
}

func group[R aggregate.Record](entries []R, opts aggregate.Options, sorted bool) []aggregate.DateGroup[R] {
	if sorted {
		return aggregate.GroupByDateSorted(entries, opts)
	}
	return aggregate.GroupByDate(entries, opts)
}

func scaled(value, portion float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return math.Round(value * portion)
}
