package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itayakad/juno-master/internal/events"
	"github.com/itayakad/juno-master/internal/persistence/memory"
)

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

func newProjection(store *memory.Repository) *ProjectionHandler {
	h := NewProjectionHandler(store)
	h.now = func() time.Time { return time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestProjectionAppliesCreatedAndDeleted(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRepository()
	h := newProjection(store)

	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeLogCreated, Payload: payload(t, events.LogCreated{
		UserID: "u1", Kind: "exercise", DurationMin: 30, Weekday: "Mon",
	})}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeLogCreated, Payload: payload(t, events.LogCreated{
		UserID: "u1", Kind: "meal", Calories: 600, Protein: 25,
	})}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeLogDeleted, Payload: payload(t, events.LogDeleted{
		UserID: "u1", Kind: "meal", Calories: 200, SameDay: true,
	})}))

	profile, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 30, profile.ExerciseMinutes)
	require.Equal(t, []string{"Mon"}, profile.WorkoutDays)
	require.Equal(t, 400.0, profile.CaloriesConsumed)
	require.Equal(t, 25.0, profile.ProteinConsumed)
}

func TestProjectionSkipsImportedAndUnknownEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRepository()
	h := newProjection(store)

	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeLogCreated, Payload: payload(t, events.LogCreated{
		UserID: "u1", Kind: "meal", Calories: 900, Imported: true,
	})}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypePhotoDetached, Payload: payload(t, events.PhotoDetached{UserID: "u1"})}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeLogDeleted, Payload: payload(t, events.LogDeleted{
		UserID: "u1", Kind: "meal", Calories: 100, SameDay: false,
	})}))

	profile, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, profile)
}

func TestProjectionRejectsMalformedPayload(t *testing.T) {
	h := newProjection(memory.NewRepository())
	err := h.Handle(context.Background(), Message{EventType: events.TypeLogCreated, Payload: json.RawMessage(`{"user_id":`)})
	require.Error(t, err)
}

func TestProjectionFollowsMemoryRepositoryEvents(t *testing.T) {
	ctx := context.Background()
	h := NewProjectionHandler(nil)
	repo := memory.NewRepository(memory.WithEventSink(func(ctx context.Context, evt memory.Event) {
		require.NoError(t, h.Apply(ctx, evt.Type, evt.Payload))
	}))
	h.profiles = repo

	require.NoError(t, repo.CreateMeal(ctx, mealFixture("m1", "u1"), "", events.LogCreated{UserID: "u1", Kind: "meal", Calories: 250, Protein: 10}))

	profile, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 250.0, profile.CaloriesConsumed)
}
