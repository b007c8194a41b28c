package domain_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/events"
	"github.com/itayakad/juno-master/internal/persistence/memory"
)

var monday = time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC)

type recordingPhotos struct {
	deleted []string
	err     error
}

func (p *recordingPhotos) Delete(_ context.Context, url string) error {
	if p.err != nil {
		return p.err
	}
	p.deleted = append(p.deleted, url)
	return nil
}

func newService(repo *memory.Repository, photos domain.PhotoStore) *domain.Service {
	return domain.NewService(repo, repo, photos,
		domain.WithClock(func() time.Time { return monday }),
		domain.WithLocation(time.UTC),
	)
}

func at(day, hour int) *time.Time {
	ts := time.Date(2024, time.June, day, hour, 0, 0, 0, time.UTC)
	return &ts
}

func TestLogExerciseComputesCaloriesAndRecordsEvent(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, nil)

	entry, replay, err := svc.LogExercise(context.Background(), domain.LogExerciseInput{
		UserID:       "u1",
		ExerciseType: "Running",
		DurationMin:  30,
		PhotoURL:     "https://photos.example.com/u1/run.jpg",
	})
	require.NoError(t, err)
	require.False(t, replay)
	require.Equal(t, 300.0, entry.CaloriesBurned)
	require.True(t, entry.HasPhoto)
	require.Equal(t, monday, *entry.LoggedAt)

	recorded := repo.Events()
	require.Len(t, recorded, 1)
	require.Equal(t, events.TypeLogCreated, recorded[0].Type)

	var created events.LogCreated
	require.NoError(t, json.Unmarshal(recorded[0].Payload, &created))
	require.Equal(t, "Mon", created.Weekday)
	require.Equal(t, 30, created.DurationMin)
	require.False(t, created.Imported)
}

func TestLogExerciseIdempotentReplay(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, nil)
	input := domain.LogExerciseInput{UserID: "u1", ExerciseType: "Yoga", DurationMin: 20, IdempotencyKey: "abc"}

	first, _, err := svc.LogExercise(context.Background(), input)
	require.NoError(t, err)
	second, replay, err := svc.LogExercise(context.Background(), input)
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.Events(), 1)
}

func TestLogExerciseValidation(t *testing.T) {
	svc := newService(memory.NewRepository(), nil)

	_, _, err := svc.LogExercise(context.Background(), domain.LogExerciseInput{UserID: "u1", ExerciseType: "Running"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = svc.LogExercise(context.Background(), domain.LogExerciseInput{UserID: "u1", DurationMin: 10})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLogMealAppliesPortionAndRounds(t *testing.T) {
	svc := newService(memory.NewRepository(), nil)

	meal, _, err := svc.LogMeal(context.Background(), domain.LogMealInput{
		UserID:      "u1",
		Description: "Pasta",
		Calories:    250.4,
		Carbs:       40.3,
		Fat:         -3,
		Protein:     10.2,
		Portion:     2,
	})
	require.NoError(t, err)
	require.Equal(t, 501.0, meal.Calories)
	require.Equal(t, 81.0, meal.Carbs)
	require.Zero(t, meal.Fat)
	require.Equal(t, 20.0, meal.Protein)

	single, _, err := svc.LogMeal(context.Background(), domain.LogMealInput{UserID: "u1", Description: "Apple", Calories: 94.6})
	require.NoError(t, err)
	require.Equal(t, 95.0, single.Calories)
}

func TestDailyMealsGroupsInFirstSeenOrder(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, nil)

	n, err := svc.ImportMeals(context.Background(), "u1", []domain.MealLog{
		{ID: "a", Description: "Breakfast", LoggedAt: at(1, 8), Calories: 300},
		{ID: "b", Description: "Lunch", LoggedAt: at(2, 12), Calories: 200},
		{ID: "c", Description: "Dinner", LoggedAt: at(1, 19), Calories: 500},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	groups, err := svc.DailyMeals(context.Background(), "u1", domain.ViewOptions{})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Equal(t, "6/1/2024", groups[0].Date)
	require.Equal(t, 800.0, groups[0].Totals.Calories)
	require.Equal(t, "6/2/2024", groups[1].Date)
	require.Equal(t, 200.0, groups[1].Totals.Calories)

	sorted, err := svc.DailyMeals(context.Background(), "u1", domain.ViewOptions{Sorted: true, Locale: "de"})
	require.NoError(t, err)
	require.Equal(t, "2.6.2024", sorted[0].Date)
	require.Equal(t, "1.6.2024", sorted[1].Date)
}

func TestDailyExercisesPutsUndatedUnderToday(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, nil)

	_, err := svc.ImportExercises(context.Background(), "u1", []domain.ExerciseLog{
		{ID: "a", ExerciseType: "Running", LoggedAt: at(3, 7), DurationMin: 30, CaloriesBurned: 300},
		{ID: "b", ExerciseType: "Yoga", DurationMin: 20, CaloriesBurned: 100},
	})
	require.NoError(t, err)

	groups, err := svc.DailyExercises(context.Background(), "u1", domain.ViewOptions{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "6/3/2024", groups[0].Date)
	require.Equal(t, 50, groups[0].Totals.DurationMinutes)
	require.Equal(t, 1, groups[0].UndatedCount)

	var created events.LogCreated
	require.NoError(t, json.Unmarshal(repo.Events()[1].Payload, &created))
	require.True(t, created.Imported)
	require.Empty(t, created.Weekday)
}

func TestDeleteLogReportsSameDay(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	today, _, err := svc.LogMeal(ctx, domain.LogMealInput{UserID: "u1", Description: "Soup", Calories: 150, Protein: 8})
	require.NoError(t, err)
	_, err = svc.ImportMeals(ctx, "u1", []domain.MealLog{{ID: "old", Description: "Cake", LoggedAt: at(1, 15), Calories: 400}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLog(ctx, "u1", domain.KindMeal, today.ID, domain.ViewOptions{}))
	require.NoError(t, svc.DeleteLog(ctx, "u1", domain.KindMeal, "old", domain.ViewOptions{}))

	recorded := repo.Events()
	require.Len(t, recorded, 4)

	var first, second events.LogDeleted
	require.NoError(t, json.Unmarshal(recorded[2].Payload, &first))
	require.NoError(t, json.Unmarshal(recorded[3].Payload, &second))
	require.True(t, first.SameDay)
	require.Equal(t, 150.0, first.Calories)
	require.Equal(t, 8.0, first.Protein)
	require.False(t, second.SameDay)

	remaining, err := svc.DailyMeals(ctx, "u1", domain.ViewOptions{})
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestDeleteLogSameDayUsesViewLocation(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	// 23:30 UTC on June 2 is already June 3 in Tokyo.
	late := time.Date(2024, time.June, 2, 23, 30, 0, 0, time.UTC)
	_, err := svc.ImportMeals(ctx, "u1", []domain.MealLog{{ID: "late", Description: "Ramen", LoggedAt: &late, Calories: 600}})
	require.NoError(t, err)

	tokyo := time.FixedZone("JST", 9*60*60)
	require.NoError(t, svc.DeleteLog(ctx, "u1", domain.KindMeal, "late", domain.ViewOptions{Location: tokyo}))

	var deleted events.LogDeleted
	require.NoError(t, json.Unmarshal(repo.Events()[1].Payload, &deleted))
	require.True(t, deleted.SameDay)
}

func TestDeleteLogNotFound(t *testing.T) {
	svc := newService(memory.NewRepository(), nil)
	err := svc.DeleteLog(context.Background(), "u1", domain.KindExercise, "missing", domain.ViewOptions{})
	require.ErrorIs(t, err, domain.ErrLogNotFound)
}

func TestDetachPhotoDeletesBlobThenClearsLog(t *testing.T) {
	repo := memory.NewRepository()
	photos := &recordingPhotos{}
	svc := newService(repo, photos)
	ctx := context.Background()

	entry, _, err := svc.LogExercise(ctx, domain.LogExerciseInput{UserID: "u1", ExerciseType: "Cycling", DurationMin: 10, PhotoURL: "https://cdn/u1/bike.jpg"})
	require.NoError(t, err)

	require.NoError(t, svc.DetachPhoto(ctx, "u1", domain.KindExercise, entry.ID))
	require.Equal(t, []string{"https://cdn/u1/bike.jpg"}, photos.deleted)

	stored, err := svc.GetExercise(ctx, "u1", entry.ID)
	require.NoError(t, err)
	require.False(t, stored.HasPhoto)
	require.Empty(t, stored.PhotoURL)
	require.Equal(t, events.TypePhotoDetached, repo.Events()[1].Type)

	require.ErrorIs(t, svc.DetachPhoto(ctx, "u1", domain.KindExercise, entry.ID), domain.ErrNoPhoto)
}

func TestDetachPhotoKeepsLogWhenBlobDeleteFails(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, &recordingPhotos{err: errors.New("bucket offline")})
	ctx := context.Background()

	meal, _, err := svc.LogMeal(ctx, domain.LogMealInput{UserID: "u1", Description: "Salad", Calories: 120, PhotoURL: "https://cdn/u1/salad.jpg"})
	require.NoError(t, err)

	require.Error(t, svc.DetachPhoto(ctx, "u1", domain.KindMeal, meal.ID))
	stored, err := svc.GetMeal(ctx, "u1", meal.ID)
	require.NoError(t, err)
	require.True(t, stored.HasPhoto)
}

func TestProfileDefaultsToEmpty(t *testing.T) {
	svc := newService(memory.NewRepository(), nil)
	profile, err := svc.Profile(context.Background(), "u9")
	require.NoError(t, err)
	require.Equal(t, domain.UserProfile{UserID: "u9"}, profile)
}

func TestListExercisesPaginatesNewestFirst(t *testing.T) {
	repo := memory.NewRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.ImportExercises(ctx, "u1", []domain.ExerciseLog{
		{ID: "a", ExerciseType: "Running", DurationMin: 10, CreatedAt: *at(1, 1)},
		{ID: "b", ExerciseType: "Running", DurationMin: 10, CreatedAt: *at(2, 1)},
		{ID: "c", ExerciseType: "Running", DurationMin: 10, CreatedAt: *at(3, 1)},
	})
	require.NoError(t, err)

	page, next, err := svc.ListExercises(ctx, "u1", nil, 2)
	require.NoError(t, err)
	require.Equal(t, "c", page[0].ID)
	require.Equal(t, "b", page[1].ID)
	require.NotNil(t, next)

	page, next, err = svc.ListExercises(ctx, "u1", next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "a", page[0].ID)
	require.Nil(t, next)
}
