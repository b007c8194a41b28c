//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/events"
)

func TestRepositoryStoresLogsWithOutbox(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	userID := uuid.NewString()
	loggedAt := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	meal := domain.MealLog{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: "Oats",
		LoggedAt:    &loggedAt,
		Calories:    350,
		Protein:     12,
		CreatedAt:   loggedAt,
	}
	require.NoError(t, repo.CreateMeal(ctx, meal, "key-1", events.LogCreated{LogID: meal.ID, UserID: userID, Kind: "meal", Calories: 350, Version: "v1"}))

	replay, err := repo.FindMealByIdempotency(ctx, userID, "key-1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	require.Equal(t, meal.ID, replay.ID)

	undated := domain.MealLog{ID: uuid.NewString(), UserID: userID, Description: "Snack", Calories: 90, CreatedAt: loggedAt.Add(time.Minute)}
	require.NoError(t, repo.CreateMeal(ctx, undated, "", events.LogCreated{LogID: undated.ID, UserID: userID, Kind: "meal", Imported: true, Version: "v1"}))

	all, err := repo.AllMeals(ctx, userID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, meal.ID, all[0].ID)
	require.Nil(t, all[1].LoggedAt)

	require.NoError(t, repo.DeleteLog(ctx, domain.Deletion{Kind: domain.KindMeal, ID: meal.ID, UserID: userID, Calories: 350, DeletedAt: time.Now().UTC()}))
	require.ErrorIs(t, repo.DeleteLog(ctx, domain.Deletion{Kind: domain.KindMeal, ID: meal.ID, UserID: userID}), domain.ErrLogNotFound)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE user_id=$1 AND topic='log_events'`, userID).Scan(&outboxRows))
	require.Equal(t, 3, outboxRows)

	stored, err := repo.GetMeal(ctx, uuid.NewString(), undated.ID)
	require.NoError(t, err)
	require.Nil(t, stored, "logs must not leak across users")
}

func TestProfileStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(startPostgres(t, ctx))

	missing, err := store.GetProfile(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing)

	profile := domain.UserProfile{UserID: "u1", ExerciseMinutes: 30, WorkoutDays: []string{"Mon"}, UpdatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	require.NoError(t, store.SaveProfile(ctx, profile))
	profile.CaloriesConsumed = 500
	require.NoError(t, store.SaveProfile(ctx, profile))

	stored, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 500.0, stored.CaloriesConsumed)
	require.Equal(t, []string{"Mon"}, stored.WorkoutDays)
}

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()
	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("juno"),
		postgrescontainer.WithUsername("juno"),
		postgrescontainer.WithPassword("juno"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	contents, err := os.ReadFile(resolvePath(t, "../../../db/postgres/migrations/0001_init.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
	return pool
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}
